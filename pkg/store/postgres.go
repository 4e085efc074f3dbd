package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/platform/pkg/apperr"
)

// Postgres is a pgx/v5-backed Store. Every collection lives in its own
// table with a jsonb `data` column holding the full document plus a small
// set of generated columns for the fields components actually filter on
// (project_id, agent_id, status, role) — the same indexed-field idea as
// the teacher's ent schema, without requiring ent's code generator.
//
// Table shape (see migrations under cmd/taskforge/migrations):
//
//	CREATE TABLE <collection> (
//	    id          text PRIMARY KEY,
//	    project_id  text GENERATED ALWAYS AS (data->>'project_id') STORED,
//	    agent_id    text GENERATED ALWAYS AS (data->>'agent_id') STORED,
//	    status      text GENERATED ALWAYS AS (data->>'status') STORED,
//	    role        text GENERATED ALWAYS AS (data->>'role') STORED,
//	    created_at  timestamptz NOT NULL,
//	    updated_at  timestamptz NOT NULL,
//	    data        jsonb NOT NULL
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool. Callers build the pool with
// pgxpool.New against a DSN from pkg/config, matching the teacher's
// pattern of accepting a pre-built connection in NewClientFromEnt for tests.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Insert(ctx context.Context, collection string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: marshal document for %s: %w", collection, err)
	}
	now := time.Now().UTC()
	if doc.GetCreatedAt().IsZero() {
		doc.SetCreatedAt(now)
	}
	doc.SetUpdatedAt(now)
	q := fmt.Sprintf(
		`INSERT INTO %s (id, created_at, updated_at, data) VALUES ($1, $2, $3, $4)`,
		pgIdent(collection),
	)
	_, err = p.pool.Exec(ctx, q, doc.GetID(), doc.GetCreatedAt(), doc.GetUpdatedAt(), data)
	if err != nil {
		return fmt.Errorf("store: insert into %s: %w: %v", collection, apperr.Transport, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string, out Document) error {
	q := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, pgIdent(collection))
	var raw []byte
	err := p.pool.QueryRow(ctx, q, id).Scan(&raw)
	if err != nil {
		return fmt.Errorf("store: get %s/%s: %w: %v", collection, id, apperr.NotFound, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("store: decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// pgFilterColumns is the closed set of fields promoted to generated
// columns; any other filter key falls back to a jsonb containment probe.
var pgFilterColumns = map[string]bool{
	"project_id": true,
	"agent_id":   true,
	"status":     true,
	"role":       true,
}

func (p *Postgres) Find(ctx context.Context, collection string, filter Filter, newOut func() Document) ([]Document, error) {
	q := fmt.Sprintf(`SELECT data FROM %s`, pgIdent(collection))
	args := make([]any, 0, len(filter))
	var where []string
	for k, v := range filter {
		args = append(args, v)
		if pgFilterColumns[k] {
			where = append(where, fmt.Sprintf("%s = $%d", pgIdent(k), len(args)))
		} else {
			where = append(where, fmt.Sprintf("data->>'%s' = $%d::text", k, len(args)))
		}
	}
	if len(where) > 0 {
		q += " WHERE "
		for i, w := range where {
			if i > 0 {
				q += " AND "
			}
			q += w
		}
	}
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find in %s: %w: %v", collection, apperr.Transport, err)
	}
	defer rows.Close()
	var results []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan row in %s: %w", collection, err)
		}
		out := newOut()
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("store: decode row in %s: %w", collection, err)
		}
		results = append(results, out)
	}
	return results, rows.Err()
}

func (p *Postgres) Update(ctx context.Context, collection, id string, patch Patch) error {
	now := time.Now().UTC()
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("store: marshal patch for %s: %w", collection, err)
	}
	q := fmt.Sprintf(
		`UPDATE %s SET data = data || $2::jsonb, updated_at = $3 WHERE id = $1`,
		pgIdent(collection),
	)
	tag, err := p.pool.Exec(ctx, q, id, patchJSON, now)
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w: %v", collection, id, apperr.Transport, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: update %s/%s: %w", collection, id, apperr.NotFound)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pgIdent(collection))
	_, err := p.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w: %v", collection, id, apperr.Transport, err)
	}
	return nil
}

func (p *Postgres) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	q := fmt.Sprintf(`SELECT count(*) FROM %s`, pgIdent(collection))
	args := make([]any, 0, len(filter))
	var where []string
	for k, v := range filter {
		args = append(args, v)
		if pgFilterColumns[k] {
			where = append(where, fmt.Sprintf("%s = $%d", pgIdent(k), len(args)))
		} else {
			where = append(where, fmt.Sprintf("data->>'%s' = $%d::text", k, len(args)))
		}
	}
	if len(where) > 0 {
		q += " WHERE "
		for i, w := range where {
			if i > 0 {
				q += " AND "
			}
			q += w
		}
	}
	var n int
	if err := p.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count in %s: %w: %v", collection, apperr.Transport, err)
	}
	return n, nil
}

// pgIdent quotes a collection/column name as a Postgres identifier. Names
// only ever come from this package's own Collection* constants, never from
// request input, so this is a formatting step, not an injection boundary.
func pgIdent(name string) string {
	return `"` + name + `"`
}
