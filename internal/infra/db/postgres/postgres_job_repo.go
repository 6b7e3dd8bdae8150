package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

// jobRepo keeps the job collection in the jobs table. SaveAll replaces the
// whole collection in one transaction, keeping store order in position.
type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

func (r *jobRepo) Load(ctx context.Context) ([]*model.Job, error) {
	const q = `
SELECT id, name, url, status, checkpoint, source_path, chunks, transcriptions, notes, last_error,
       added_at, updated_at, completed_at
FROM jobs
ORDER BY position;`

	rows, err := queryRows(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		var (
			j                        model.Job
			status, checkpoint       string
			chunksRaw, transcriptRaw []byte
			completedAt              *time.Time
		)
		if err := rows.Scan(&j.ID, &j.Name, &j.URL, &status, &checkpoint, &j.SourcePath, &chunksRaw, &transcriptRaw,
			&j.Notes, &j.LastError, &j.AddedAt, &j.UpdatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		if j.Status, err = model.ParseJobStatus(status); err != nil {
			return nil, err
		}
		if checkpoint != "" {
			if j.Checkpoint, err = model.ParseJobStatus(checkpoint); err != nil {
				return nil, err
			}
		}
		if len(chunksRaw) > 0 {
			if err := json.Unmarshal(chunksRaw, &j.Chunks); err != nil {
				return nil, fmt.Errorf("decode chunks of %s: %w", j.ID, err)
			}
		}
		j.Transcriptions = map[int]string{}
		if len(transcriptRaw) > 0 {
			if err := json.Unmarshal(transcriptRaw, &j.Transcriptions); err != nil {
				return nil, fmt.Errorf("decode transcriptions of %s: %w", j.ID, err)
			}
		}
		j.CompletedAt = completedAt
		out = append(out, &j)
	}
	return out, rows.Err()
}

func (r *jobRepo) SaveAll(ctx context.Context, jobs []*model.Job) error {
	const ins = `
INSERT INTO jobs (id, position, name, url, status, checkpoint, source_path, chunks, transcriptions,
                  notes, last_error, added_at, updated_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);`

	return r.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM jobs;`); err != nil {
			return err
		}
		for i, j := range jobs {
			chunks, err := json.Marshal(j.Chunks)
			if err != nil {
				return err
			}
			transcripts, err := json.Marshal(j.Transcriptions)
			if err != nil {
				return err
			}
			if _, err := execSQL(ctx, r.pool, tx, ins,
				j.ID, i, j.Name, j.URL, string(j.Status), string(j.Checkpoint), j.SourcePath,
				string(chunks), string(transcripts), j.Notes, j.LastError,
				j.AddedAt, j.UpdatedAt, j.CompletedAt); err != nil {
				return fmt.Errorf("insert job %s: %w", j.ID, err)
			}
		}
		return nil
	})
}
