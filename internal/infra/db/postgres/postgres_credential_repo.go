package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/repository"
)

var _ repository.CredentialRepository = (*credentialRepo)(nil)

// credentialRepo stores the key pool as a single JSONB document.
type credentialRepo struct {
	pool *pgxpool.Pool
}

func NewCredentialRepo(pool *pgxpool.Pool) *credentialRepo {
	return &credentialRepo{pool: pool}
}

func (r *credentialRepo) Load(ctx context.Context) (*model.CredentialPool, error) {
	row, err := pickRow(ctx, r.pool, nil, `SELECT doc FROM credential_pool WHERE id = 1;`)
	if err != nil {
		return nil, err
	}
	var raw []byte
	var p model.CredentialPool
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &p, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

func (r *credentialRepo) Save(ctx context.Context, p *model.CredentialPool) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO credential_pool (id, doc, updated_at)
VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET
  doc = EXCLUDED.doc,
  updated_at = EXCLUDED.updated_at;`
	_, err = execSQL(ctx, r.pool, nil, q, string(doc))
	return err
}
