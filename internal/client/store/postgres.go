package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
)

// Postgres grava o estado na tabela client_kv (ver db.Migrate)
type Postgres struct {
	db *sql.DB
	ns string
}

func NewPostgres(db *sql.DB, namespace string) *Postgres { return &Postgres{db: db, ns: namespace} }

func (p *Postgres) Get(ctx context.Context, key string, dst any) (bool, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM client_kv WHERE namespace=$1 AND key=$2`, p.ns, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

// Set faz upsert; a última escrita vence
func (p *Postgres) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO client_kv (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		p.ns, key, string(b))
	return err
}

func (p *Postgres) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM client_kv WHERE namespace=$1 AND key = ANY($2)`, p.ns, pq.Array(keys))
	return err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }
