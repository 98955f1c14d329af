package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fundwatch/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const holdingsKey = "hold_funds"

const schema = `CREATE TABLE IF NOT EXISTS kv_blobs (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresSink stores the same JSON array the FileSink writes, as a single
// row of a key-value table.
type PostgresSink struct {
	db  *sqlx.DB
	key string
	log *logrus.Logger
}

func NewPostgresSink(db *sqlx.DB, log *logrus.Logger) *PostgresSink {
	return &PostgresSink{db: db, key: holdingsKey, log: log}
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	return db, nil
}

func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create kv_blobs: %w", err)
	}
	return nil
}

func (p *PostgresSink) Load(ctx context.Context) ([]models.Holding, error) {
	var blob string
	err := p.db.GetContext(ctx, &blob, `SELECT value FROM kv_blobs WHERE key = $1`, p.key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("key %s: %w", p.key, ErrNotFound)
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
			return nil, fmt.Errorf("table kv_blobs: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("select %s: %w", p.key, err)
	}
	holdings, err := decodeHoldings([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.key, err)
	}
	return holdings, nil
}

func (p *PostgresSink) Save(ctx context.Context, holdings []models.Holding) error {
	data, err := encodeHoldings(holdings)
	if err != nil {
		return err
	}
	q := `INSERT INTO kv_blobs (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := p.db.ExecContext(ctx, q, p.key, string(data)); err != nil {
		return fmt.Errorf("upsert %s: %w", p.key, err)
	}
	p.log.Debugf("saved %d holdings to kv_blobs[%s]", len(holdings), p.key)
	return nil
}
