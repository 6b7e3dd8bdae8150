package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Deliverer = (*NotionPublisher)(nil)

const (
	notionVersion = "2022-06-28"
	// Notion caps rich text content and children per request.
	notionTextLimit  = 2000
	notionBlockLimit = 100
)

// NotionPublisher creates one database page per job holding the notes as
// paragraph blocks.
type NotionPublisher struct {
	secret     string
	databaseID string
	baseURL    string
	client     *http.Client
	maxElapsed time.Duration
}

func NewNotionPublisher(secret, databaseID, baseURL string) *NotionPublisher {
	return &NotionPublisher{
		secret:     secret,
		databaseID: databaseID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 30 * time.Second},
		maxElapsed: 30 * time.Second,
	}
}

func (n *NotionPublisher) Name() string { return "notion" }

type notionText struct {
	Type string `json:"type"`
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

type notionBlock struct {
	Object    string `json:"object"`
	Type      string `json:"type"`
	Paragraph struct {
		RichText []notionText `json:"rich_text"`
	} `json:"paragraph"`
}

func richText(s string) []notionText {
	var t notionText
	t.Type = "text"
	t.Text.Content = s
	return []notionText{t}
}

// paragraphs splits notes on blank lines and then on the text limit.
func paragraphs(notes string) []notionBlock {
	var out []notionBlock
	for _, para := range strings.Split(notes, "\n\n") {
		para = strings.TrimSpace(para)
		for para != "" {
			cut := len(para)
			if cut > notionTextLimit {
				cut = notionTextLimit
				for cut > 0 && !utf8Start(para[cut]) {
					cut--
				}
			}
			var b notionBlock
			b.Object, b.Type = "block", "paragraph"
			b.Paragraph.RichText = richText(para[:cut])
			out = append(out, b)
			para = para[cut:]
		}
	}
	return out
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

func (n *NotionPublisher) Deliver(ctx context.Context, job *model.Job) error {
	blocks := paragraphs(job.Notes)
	first := blocks
	if len(first) > notionBlockLimit {
		first = blocks[:notionBlockLimit]
	}

	page := map[string]any{
		"parent": map[string]string{"database_id": n.databaseID},
		"properties": map[string]any{
			"Name": map[string]any{"title": richText(job.Name)},
		},
		"children": first,
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := n.do(ctx, http.MethodPost, "/v1/pages", page, &created); err != nil {
		return fmt.Errorf("create notion page: %w", err)
	}

	for rest := blocks[len(first):]; len(rest) > 0; {
		batch := rest
		if len(batch) > notionBlockLimit {
			batch = rest[:notionBlockLimit]
		}
		body := map[string]any{"children": batch}
		if err := n.do(ctx, http.MethodPatch, "/v1/blocks/"+created.ID+"/children", body, nil); err != nil {
			return fmt.Errorf("append notion blocks: %w", err)
		}
		rest = rest[len(batch):]
	}
	return nil
}

// do sends one JSON request, retrying transport errors, 429 and 5xx.
func (n *NotionPublisher) do(ctx context.Context, method, path string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = n.maxElapsed
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+n.secret)
		req.Header.Set("Notion-Version", notionVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("notion http %d: %s", resp.StatusCode, raw)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("notion http %d: %s", resp.StatusCode, raw))
		}
		if target != nil {
			if err := json.Unmarshal(raw, target); err != nil {
				return backoff.Permanent(fmt.Errorf("decode notion response: %w", err))
			}
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
