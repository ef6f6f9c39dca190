package service

import (
	"context"
	"errors"
	"fmt"

	"draftroom/internal/document/model"
	"draftroom/internal/document/repository"
	"draftroom/internal/identity"
	"draftroom/internal/syncadapter"

	"github.com/google/uuid"
)

// ErrInvalidID rejects malformed identifiers before they reach storage.
var ErrInvalidID = errors.New("invalid identifier")

// RoomReaper evicts a live room when its document is deleted, so cached
// state cannot be flushed back after the delete.
type RoomReaper interface {
	RemoveRoom(roomID string)
}

type DocumentService struct {
	Repo    *repository.DocumentRepository
	Adapter *syncadapter.Adapter
	Rooms   RoomReaper
}

func NewDocumentService(repo *repository.DocumentRepository, adapter *syncadapter.Adapter, rooms RoomReaper) *DocumentService {
	return &DocumentService{Repo: repo, Adapter: adapter, Rooms: rooms}
}

func (s *DocumentService) GetDocuments(ctx context.Context) ([]model.DocumentMetadata, error) {
	return s.Repo.List(ctx)
}

// CreateDocument registers a document under a client-supplied id with empty
// content and an empty version log. The first state flush fills both.
func (s *DocumentService) CreateDocument(ctx context.Context, who identity.Identity, req model.CreateDocRequest) (*model.Document, error) {
	if err := uuid.Validate(req.ID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, req.ID)
	}
	title := req.Title
	if title == "" {
		title = req.ID
	}
	return s.Repo.Create(ctx, req.ID, title, who.UserID)
}

// DeleteDocument removes a document and its version log. Only the recorded
// creator may delete; anyone else gets ErrForbidden.
func (s *DocumentService) DeleteDocument(ctx context.Context, docID string, who identity.Identity) error {
	if err := uuid.Validate(docID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, docID)
	}

	createdBy, err := s.Repo.GetCreatedBy(ctx, docID)
	if err != nil {
		return err
	}
	if createdBy != who.UserID {
		return fmt.Errorf("%w: only the creator can delete document %s", identity.ErrForbidden, docID)
	}

	if err := s.Repo.Delete(ctx, docID); err != nil {
		return err
	}
	if s.Rooms != nil {
		s.Rooms.RemoveRoom(docID)
	}
	return nil
}

func (s *DocumentService) GetVersions(ctx context.Context, docID string) ([]model.Version, error) {
	if err := uuid.Validate(docID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, docID)
	}
	return s.Repo.ListVersions(ctx, docID)
}

// Rollback goes through the sync adapter so it contends for the same
// per-room slot as engine flushes.
func (s *DocumentService) Rollback(ctx context.Context, docID, versionID string, who identity.Identity) ([]byte, error) {
	if err := uuid.Validate(versionID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, versionID)
	}
	return s.Adapter.Rollback(ctx, docID, versionID, who)
}
