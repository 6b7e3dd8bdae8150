package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type memJobs struct {
	jobs       []*model.Job
	enqueueErr error
}

func (m *memJobs) List() []*model.Job { return m.jobs }

func (m *memJobs) Get(id string) (*model.Job, error) {
	for _, j := range m.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memJobs) Enqueue(ctx context.Context, names, urls []string) ([]*model.Job, error) {
	if m.enqueueErr != nil {
		return nil, m.enqueueErr
	}
	if len(names) == 0 || len(names) != len(urls) {
		return nil, domain.ErrInvalidArgument
	}
	var out []*model.Job
	for i := range names {
		j := model.NewJob(fmt.Sprintf("J%d", len(m.jobs)+1), names[i], urls[i], time.Now())
		m.jobs = append(m.jobs, j)
		out = append(out, j)
	}
	return out, nil
}

func (m *memJobs) CancelPending(ctx context.Context) (int, error) {
	n := 0
	for _, j := range m.jobs {
		if j.Cancel(time.Now()) {
			n++
		}
	}
	return n, nil
}

type memKeys []model.Credential

func (m memKeys) List(ctx context.Context) ([]model.Credential, error) { return m, nil }

const secret = "test-admin-jwt-secret-please-change"

func newTestServer(t *testing.T) (*Server, *memJobs, string) {
	t.Helper()
	jobs := &memJobs{}
	done := model.NewJob("J0", "done", "u0", time.Now())
	_ = done.Advance(model.JobStatusCompleted, time.Now())
	jobs.jobs = append(jobs.jobs, done)

	cred := model.NewCredential("AIzaSyABCDEFGH1234")
	cred.Usage["gemini-2.5-flash"] = 2
	auth := NewAuthManager(secret, time.Minute)
	tok, err := auth.Mint("cli")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return NewServer(jobs, memKeys{cred}, auth, newTestLogger()), jobs, tok
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Buffer
	if body != "" {
		rdr = bytes.NewBufferString(body)
	} else {
		rdr = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	s, _, tok := newTestServer(t)
	r := s.Router()

	t.Run("no credentials -> 401", func(t *testing.T) {
		if rec := do(t, r, http.MethodGet, "/api/v1/jobs", "", ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})
	t.Run("foreign signature -> 401", func(t *testing.T) {
		other, _ := NewAuthManager("another-secret-entirely-different", time.Minute).Mint("x")
		if rec := do(t, r, http.MethodGet, "/api/v1/jobs", other, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})
	t.Run("expired -> 401", func(t *testing.T) {
		a := NewAuthManager(secret, time.Minute)
		a.now = func() time.Time { return time.Now().Add(-time.Hour) }
		old, _ := a.Mint("x")
		if rec := do(t, r, http.MethodGet, "/api/v1/jobs", old, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})
	t.Run("valid -> 200", func(t *testing.T) {
		if rec := do(t, r, http.MethodGet, "/api/v1/jobs", tok, ""); rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})
	t.Run("unconfigured secret -> 403", func(t *testing.T) {
		bare := NewServer(&memJobs{}, nil, NewAuthManager("", time.Minute), newTestLogger()).Router()
		if rec := do(t, bare, http.MethodGet, "/api/v1/jobs", tok, ""); rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})
	t.Run("health is public", func(t *testing.T) {
		if rec := do(t, r, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})
}

func TestJobsEndpoints(t *testing.T) {
	s, jobs, tok := newTestServer(t)
	r := s.Router()

	rec := do(t, r, http.MethodPost, "/api/v1/jobs", tok, `{"names":["a"," b "],"urls":["u1","u2"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if jobs.jobs[2].Name != "b" {
		t.Fatalf("names must be trimmed, got %q", jobs.jobs[2].Name)
	}

	if rec := do(t, r, http.MethodPost, "/api/v1/jobs", tok, `{"names":["a"],"urls":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for mismatched input, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/api/v1/jobs", tok, `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for bad json, got %d", rec.Code)
	}
	jobs.enqueueErr = errors.New("disk full")
	if rec := do(t, r, http.MethodPost, "/api/v1/jobs", tok, `{"names":["a"],"urls":["u"]}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
	jobs.enqueueErr = nil

	rec = do(t, r, http.MethodGet, "/api/v1/jobs?status=pending", tok, "")
	var body struct {
		Items []jobView `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 2 {
		t.Fatalf("expected 2 pending jobs, got %d", len(body.Items))
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/jobs?status=bogus", tok, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for bad status filter, got %d", rec.Code)
	}

	if rec := do(t, r, http.MethodGet, "/api/v1/jobs/J0", tok, ""); rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/jobs/nope", tok, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/api/v1/jobs/cancel-pending", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cancelled":2`) {
		t.Fatalf("unexpected cancel response %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, "/api/v1/stats", tok, "")
	if !strings.Contains(rec.Body.String(), `"pending":0`) || !strings.Contains(rec.Body.String(), `"cancelled":2`) {
		t.Fatalf("unexpected stats %s", rec.Body.String())
	}
}

func TestKeysAreMasked(t *testing.T) {
	s, _, tok := newTestServer(t)
	rec := do(t, s.Router(), http.MethodGet, "/api/v1/keys", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	b := rec.Body.String()
	if strings.Contains(b, "AIzaSyABCDEFGH1234") || !strings.Contains(b, "AIza...1234") {
		t.Fatalf("key must be masked, got %s", b)
	}
}
