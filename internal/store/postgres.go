package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"basegraph.app/standup/core/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	namespace  TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	value      JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, id)
)`

// PostgresKV keeps one row per (namespace, id).
type PostgresKV struct {
	db *db.DB
}

var _ KV = (*PostgresKV)(nil)

func NewPostgresKV(database *db.DB) *PostgresKV {
	return &PostgresKV{db: database}
}

func (p *PostgresKV) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Pool().Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating kv_entries: %w", err)
	}
	return nil
}

func (p *PostgresKV) GetAll(ctx context.Context, ns Namespace) (map[string]json.RawMessage, error) {
	rows, err := p.db.Pool().Query(ctx, `SELECT id, value FROM kv_entries WHERE namespace = $1`, string(ns))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", ns, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			id    string
			value []byte
		)
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", ns, err)
		}
		out[id] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", ns, err)
	}
	return out, nil
}

func (p *PostgresKV) SetAll(ctx context.Context, ns Namespace, values map[string]json.RawMessage) error {
	return p.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM kv_entries WHERE namespace = $1`, string(ns)); err != nil {
			return fmt.Errorf("clear %s: %w", ns, err)
		}
		for id, v := range values {
			_, err := tx.Exec(ctx,
				`INSERT INTO kv_entries (namespace, id, value) VALUES ($1, $2, $3::jsonb)`,
				string(ns), id, string(v))
			if err != nil {
				return fmt.Errorf("insert %s/%s: %w", ns, id, err)
			}
		}
		return nil
	})
}

func (p *PostgresKV) GetOne(ctx context.Context, ns Namespace, id string) (json.RawMessage, error) {
	var value []byte
	err := p.db.Pool().QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE namespace = $1 AND id = $2`,
		string(ns), id).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", ns, id, err)
	}
	return json.RawMessage(value), nil
}

// MergeOne lets the database do the shallow merge so concurrent writers never lose keys.
func (p *PostgresKV) MergeOne(ctx context.Context, ns Namespace, id string, value json.RawMessage) error {
	_, err := p.db.Pool().Exec(ctx, `
		INSERT INTO kv_entries (namespace, id, value) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (namespace, id) DO UPDATE SET
			value = CASE
				WHEN jsonb_typeof(kv_entries.value) = 'object' AND jsonb_typeof(EXCLUDED.value) = 'object'
				THEN kv_entries.value || EXCLUDED.value
				ELSE EXCLUDED.value
			END,
			updated_at = now()`,
		string(ns), id, string(value))
	if err != nil {
		return fmt.Errorf("merge %s/%s: %w", ns, id, err)
	}
	return nil
}
