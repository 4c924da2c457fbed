package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reorder-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT        NOT NULL,
	id         BIGINT      NOT NULL,
	version    INTEGER     NOT NULL,
	body       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
)`

// PostgresBackend stores every collection as JSONB rows of one table
type PostgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend connects to PostgreSQL
func NewPostgresBackend(databaseURL string) (*PostgresBackend, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresBackend{db: db}, nil
}

// NewPostgresBackendFromDB wraps an existing connection
func NewPostgresBackendFromDB(db *sqlx.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Migrate creates the records table
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate records table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

// RunInTx runs fn inside a database transaction
func (b *PostgresBackend) RunInTx(ctx context.Context, fn func(Documents) error) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx *sqlx.Tx
}

type recordRow struct {
	ID      int64  `db:"id"`
	Version int    `db:"version"`
	Body    []byte `db:"body"`
}

// NextID takes a transaction-scoped advisory lock on the collection so
// concurrent creators cannot compute the same max(id)+1.
func (t *postgresTx) NextID(ctx context.Context, collection string) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", collection); err != nil {
		return 0, fmt.Errorf("failed to lock collection: %w", err)
	}

	var next int64
	err := t.tx.GetContext(ctx, &next,
		"SELECT COALESCE(MAX(id), 0) + 1 FROM records WHERE collection = $1", collection)
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (t *postgresTx) Insert(ctx context.Context, collection string, doc Document) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO records (collection, id, version, body) VALUES ($1, $2, $3, $4)",
		collection, doc.ID, doc.Version, doc.Body)
	return err
}

func (t *postgresTx) Update(ctx context.Context, collection string, expectedVersion int, doc Document) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE records SET version = $1, body = $2, updated_at = NOW()
		 WHERE collection = $3 AND id = $4 AND version = $5`,
		doc.Version, doc.Body, collection, doc.ID, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = t.tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM records WHERE collection = $1 AND id = $2)", collection, doc.ID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNoDocument
	}
	return fmt.Errorf("%s %d changed since version %d: %w", collection, doc.ID, expectedVersion, models.ErrVersionConflict)
}

func (t *postgresTx) Get(ctx context.Context, collection string, id int64) (Document, error) {
	var row recordRow
	err := t.tx.GetContext(ctx, &row,
		"SELECT id, version, body FROM records WHERE collection = $1 AND id = $2", collection, id)
	if err == sql.ErrNoRows {
		return Document{}, ErrNoDocument
	}
	if err != nil {
		return Document{}, err
	}
	return Document{ID: row.ID, Version: row.Version, Body: row.Body}, nil
}

func (t *postgresTx) List(ctx context.Context, collection string) ([]Document, error) {
	var rows []recordRow
	err := t.tx.SelectContext(ctx, &rows,
		"SELECT id, version, body FROM records WHERE collection = $1 ORDER BY id", collection)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(rows))
	for i, row := range rows {
		docs[i] = Document{ID: row.ID, Version: row.Version, Body: row.Body}
	}
	return docs, nil
}
