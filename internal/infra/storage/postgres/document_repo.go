package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

const documentColumns = `id, event_id, pipeline_type, status, event, result, last_error, created_at, updated_at`

type documentRow struct {
	ID           string    `db:"id"`
	EventID      string    `db:"event_id"`
	PipelineType string    `db:"pipeline_type"`
	Status       string    `db:"status"`
	Event        []byte    `db:"event"`
	Result       []byte    `db:"result"`
	LastError    string    `db:"last_error"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r documentRow) toDomain() (*domain.Document, error) {
	doc := &domain.Document{
		ID:           r.ID,
		EventID:      r.EventID,
		PipelineType: r.PipelineType,
		Status:       domain.DocumentStatus(r.Status),
		Error:        r.LastError,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Event, &doc.Event); err != nil {
		return nil, fmt.Errorf("failed to decode event of document %s: %w", r.ID, err)
	}
	if len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, &doc.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result of document %s: %w", r.ID, err)
		}
	}
	return doc, nil
}

// DocumentRepo implements storage.DocumentRepository using PostgreSQL.
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new PostgreSQL document repository.
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Store upserts a document by event id.
func (r *DocumentRepo) Store(ctx context.Context, doc *domain.Document) (string, error) {
	eventJSON, err := json.Marshal(doc.Event)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}

	var result sql.NullString
	if doc.Result != nil {
		data, err := json.Marshal(doc.Result)
		if err != nil {
			return "", fmt.Errorf("failed to encode result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO documents (id, event_id, pipeline_type, status, event, result, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			pipeline_type = EXCLUDED.pipeline_type,
			status = EXCLUDED.status,
			event = EXCLUDED.event,
			result = COALESCE(EXCLUDED.result, documents.result),
			last_error = EXCLUDED.last_error,
			updated_at = NOW()
		RETURNING id
	`

	var stored string
	err = r.db.QueryRowxContext(ctx, query,
		id,
		doc.EventID,
		doc.PipelineType,
		string(doc.Status),
		string(eventJSON),
		result,
		doc.Error,
	).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to store document: %w", err)
	}
	return stored, nil
}

// Get retrieves a document by id.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*domain.Document, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

// GetByEventID retrieves the document recorded for an event.
func (r *DocumentRepo) GetByEventID(ctx context.Context, eventID string) (*domain.Document, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE event_id = $1`, eventID)
}

func (r *DocumentRepo) getOne(ctx context.Context, query string, arg any) (*domain.Document, error) {
	var row documentRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return row.toDomain()
}

// GetPending returns up to batchSize pending documents, oldest first.
func (r *DocumentRepo) GetPending(ctx context.Context, batchSize int) ([]*domain.Document, error) {
	var rows []documentRow
	query := `SELECT ` + documentColumns + ` FROM documents WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, string(domain.DocumentStatusPending), batchSize); err != nil {
		return nil, fmt.Errorf("failed to get pending documents: %w", err)
	}

	docs := make([]*domain.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// MarkStatus updates the status and last error of a document.
func (r *DocumentRepo) MarkStatus(ctx context.Context, id string, status domain.DocumentStatus, lastError string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $2, last_error = $3, updated_at = NOW() WHERE id = $1`,
		id, string(status), lastError,
	)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrDocumentNotFound
	}
	return nil
}

// TouchIfStatus refreshes updated_at when the document still has status.
func (r *DocumentRepo) TouchIfStatus(ctx context.Context, id string, status domain.DocumentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("failed to touch document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// CountByStatus returns document counts grouped by status.
func (r *DocumentRepo) CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM documents GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	counts := make(map[domain.DocumentStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.DocumentStatus(row.Status)] = row.Count
	}
	return counts, nil
}
