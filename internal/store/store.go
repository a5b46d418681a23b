// Package store persists document lifecycle state in SQLite. It exposes only
// the narrow mutators the ingestion pipeline needs; chunk content lives in
// the vector index, not here.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lukasmraz/docflow/internal/document"
)

// ErrNotFound is returned when no document row matches the given ID.
var ErrNotFound = errors.New("store: document not found")

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	transaction_id TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	file_path      TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	category       TEXT NOT NULL DEFAULT 'unknown',
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	processed_at   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_transaction ON documents(transaction_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
`

// Store is a SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database at dataDir/docflow.db and applies the
// schema. WAL mode keeps concurrent pipeline invocations from blocking each
// other on status writes.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "docflow.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a new document row in Pending state.
func (s *Store) Create(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if doc.Status == "" {
		doc.Status = document.StatusPending
	}
	if doc.Category == "" {
		doc.Category = document.CategoryUnknown
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, transaction_id, file_name, file_path, status, category, failure_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.TransactionID, doc.FileName, doc.FilePath,
		string(doc.Status), string(doc.Category), doc.FailureReason, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

// Get loads one document row by ID.
func (s *Store) Get(ctx context.Context, id string) (*document.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, transaction_id, file_name, file_path, status, category, failure_reason, created_at, processed_at
		 FROM documents WHERE id = ?`, id)

	var doc document.Document
	var status, category string
	var processedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.TransactionID, &doc.FileName, &doc.FilePath,
		&status, &category, &doc.FailureReason, &doc.CreatedAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}

	doc.Status = document.ProcessingStatus(status)
	doc.Category = document.Category(category)
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	return &doc, nil
}

// FilePath resolves a document ID to its storage path.
func (s *Store) FilePath(ctx context.Context, id string) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.FilePath, nil
}

// SetStatus transitions a document's status, enforcing forward-only moves.
func (s *Store) SetStatus(ctx context.Context, id string, status document.ProcessingStatus) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !doc.Status.CanTransitionTo(status) {
		return fmt.Errorf("document %s: illegal transition %s -> %s", id, doc.Status, status)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating status for %s: %w", id, err)
	}
	return nil
}

// SetCategory records the classifier's result.
func (s *Store) SetCategory(ctx context.Context, id string, category document.Category) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET category = ? WHERE id = ?`, string(category), id)
	if err != nil {
		return fmt.Errorf("updating category for %s: %w", id, err)
	}
	return checkFound(res, id)
}

// SetProcessedAt records the completion timestamp.
func (s *Store) SetProcessedAt(ctx context.Context, id string, ts time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET processed_at = ? WHERE id = ?`, ts.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating processed_at for %s: %w", id, err)
	}
	return checkFound(res, id)
}

// MarkFailed transitions a document to Failed and records the reason. Unlike
// SetStatus it accepts failure from Pending or Processing alike. Completed
// documents never move to Failed.
func (s *Store) MarkFailed(ctx context.Context, id string, reason string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status == document.StatusCompleted {
		return fmt.Errorf("document %s: illegal transition %s -> %s", id, doc.Status, document.StatusFailed)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, failure_reason = ? WHERE id = ?`,
		string(document.StatusFailed), reason, id)
	if err != nil {
		return fmt.Errorf("marking %s failed: %w", id, err)
	}
	return nil
}

// ResetForReingestion returns a document to Pending so a re-drive can run,
// clearing the failure reason and completion timestamp. Unlike SetStatus it
// is permitted from every state, terminal ones included; it exists for the
// reindex path, which would otherwise be blocked by the transition guard.
func (s *Store) ResetForReingestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, failure_reason = '', processed_at = NULL WHERE id = ?`,
		string(document.StatusPending), id)
	if err != nil {
		return fmt.Errorf("resetting %s for reingestion: %w", id, err)
	}
	return checkFound(res, id)
}

// Delete removes the document row. The caller is responsible for deleting the
// indexed chunks and the stored file first.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return checkFound(res, id)
}

// ListByTransaction returns all documents attached to a transaction, oldest
// first.
func (s *Store) ListByTransaction(ctx context.Context, transactionID string) ([]*document.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, transaction_id, file_name, file_path, status, category, failure_reason, created_at, processed_at
		 FROM documents WHERE transaction_id = ? ORDER BY created_at`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("listing documents for transaction %s: %w", transactionID, err)
	}
	defer rows.Close()

	var docs []*document.Document
	for rows.Next() {
		var doc document.Document
		var status, category string
		var processedAt sql.NullTime
		if err := rows.Scan(&doc.ID, &doc.TransactionID, &doc.FileName, &doc.FilePath,
			&status, &category, &doc.FailureReason, &doc.CreatedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		doc.Status = document.ProcessingStatus(status)
		doc.Category = document.Category(category)
		if processedAt.Valid {
			t := processedAt.Time
			doc.ProcessedAt = &t
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func checkFound(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}
