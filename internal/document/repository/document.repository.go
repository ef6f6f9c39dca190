package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"draftroom/internal/document/model"
	"draftroom/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionNotFound = errors.New("version not found")
)

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(ctx context.Context, id, title, createdBy string) (*model.Document, error) {
	var doc model.Document
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO documents (id, title, content, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, title, content, created_by, created_at, updated_at`,
		id, title, []byte{}, createdBy,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document %s: %v", id, err)
		return nil, fmt.Errorf("create document %s: %w", id, err)
	}
	return &doc, nil
}

func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, title, content, created_by, created_at, updated_at FROM documents WHERE id = $1", id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load document %s: %v", id, err)
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return &doc, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]model.DocumentMetadata, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, title, created_by, created_at, updated_at FROM documents ORDER BY updated_at DESC")
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []model.DocumentMetadata{}
	for rows.Next() {
		var d model.DocumentMetadata
		if err := rows.Scan(&d.ID, &d.Title, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
			continue
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) GetCreatedBy(ctx context.Context, docID string) (string, error) {
	var createdBy string
	err := r.DB.QueryRowContext(ctx, "SELECT created_by FROM documents WHERE id = $1", docID).Scan(&createdBy)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get creator of doc %s: %v", docID, err)
		return "", fmt.Errorf("get creator of %s: %w", docID, err)
	}
	return createdBy, nil
}

// SaveState makes state the current content and appends it to the version
// log in a single transaction. The document is created on first save with
// its id as title. Either both writes land or neither does.
func (r *DocumentRepository) SaveState(ctx context.Context, docID string, state []byte, updatedBy, createdBy string) (model.Version, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin save for doc %s: %v", docID, err)
		return model.Version{}, fmt.Errorf("begin save for %s: %w", docID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, created_by, created_at, updated_at)
		VALUES ($1, $1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()`,
		docID, state, createdBy)
	if err != nil {
		logger.Sugar.Errorf("Failed to update content for doc %s: %v", docID, err)
		return model.Version{}, fmt.Errorf("update content of %s: %w", docID, err)
	}

	version := model.Version{
		ID:        uuid.NewString(),
		Content:   state,
		UpdatedBy: updatedBy,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_versions (id, document_id, content, updated_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		version.ID, docID, version.Content, version.UpdatedBy, version.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to append version for doc %s: %v", docID, err)
		return model.Version{}, fmt.Errorf("append version for %s: %w", docID, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit save for doc %s: %v", docID, err)
		return model.Version{}, fmt.Errorf("commit save for %s: %w", docID, err)
	}
	return version, nil
}

// ListVersions returns the document's full history in append order.
func (r *DocumentRepository) ListVersions(ctx context.Context, docID string) ([]model.Version, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)", docID).Scan(&exists)
	if err != nil {
		logger.Sugar.Errorf("Failed to check document %s: %v", docID, err)
		return nil, fmt.Errorf("check document %s: %w", docID, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, content, updated_by, created_at FROM document_versions
		WHERE document_id = $1 ORDER BY seq ASC`, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list versions for doc %s: %v", docID, err)
		return nil, fmt.Errorf("list versions of %s: %w", docID, err)
	}
	defer rows.Close()

	versions := []model.Version{}
	for rows.Next() {
		var v model.Version
		if err := rows.Scan(&v.ID, &v.Content, &v.UpdatedBy, &v.CreatedAt); err != nil {
			continue
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *DocumentRepository) FindVersion(ctx context.Context, docID, versionID string) (model.Version, error) {
	var v model.Version
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, content, updated_by, created_at FROM document_versions
		WHERE document_id = $1 AND id = $2`, docID, versionID,
	).Scan(&v.ID, &v.Content, &v.UpdatedBy, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Version{}, ErrVersionNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load version %s of doc %s: %v", versionID, docID, err)
		return model.Version{}, fmt.Errorf("load version %s of %s: %w", versionID, docID, err)
	}
	return v, nil
}

// Delete removes the document; its version log goes with it via the
// ON DELETE CASCADE constraint.
func (r *DocumentRepository) Delete(ctx context.Context, docID string) error {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", docID, err)
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
