package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"draftroom/internal/document/model"
	"draftroom/internal/document/repository"
	"draftroom/internal/identity"
	"draftroom/internal/syncadapter"
	"draftroom/pkg/roomlock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReaper struct {
	removed []string
}

func (f *fakeReaper) RemoveRoom(roomID string) {
	f.removed = append(f.removed, roomID)
}

func newTestService(t *testing.T) (*DocumentService, sqlmock.Sqlmock, *fakeReaper) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewDocumentRepository(db)
	gate := identity.NewGate([]byte("service-test-secret"))
	adapter := syncadapter.New(repo, roomlock.New(), gate, time.Second)
	reaper := &fakeReaper{}
	return NewDocumentService(repo, adapter, reaper), mock, reaper
}

func TestRollbackPersistsProvenanceVersion(t *testing.T) {
	svc, mock, _ := newTestService(t)
	docID := uuid.NewString()
	versionID := uuid.NewString()
	now := time.Now()
	oldState := []byte("old-state")

	mock.ExpectQuery("SELECT id, title, content, created_by, created_at, updated_at FROM documents").
		WithArgs(docID).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "title", "content", "created_by", "created_at", "updated_at"}).
			AddRow(docID, "Doc", []byte("new-state"), "user-1", now, now))
	mock.ExpectQuery("SELECT id, content, updated_by, created_at FROM document_versions").
		WithArgs(docID, versionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "updated_by", "created_at"}).
			AddRow(versionID, oldState, "user-1", now))

	provenance := fmt.Sprintf("rolled_to_%s_by_user-3", versionID)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(docID, oldState, "user-3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_versions").
		WithArgs(sqlmock.AnyArg(), docID, oldState, provenance, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	content, err := svc.Rollback(context.Background(), docID, versionID, identity.Identity{UserID: "user-3"})
	require.NoError(t, err)
	assert.Equal(t, oldState, content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentEvictsRoom(t *testing.T) {
	svc, mock, reaper := newTestService(t)
	docID := uuid.NewString()

	mock.ExpectQuery("SELECT created_by FROM documents").
		WithArgs(docID).
		WillReturnRows(sqlmock.NewRows([]string{"created_by"}).AddRow("user-1"))
	mock.ExpectExec("DELETE FROM documents").
		WithArgs(docID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.DeleteDocument(context.Background(), docID, identity.Identity{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{docID}, reaper.removed, "deleting a document must evict its live room")
}

func TestDeleteDocumentMalformedID(t *testing.T) {
	svc, mock, reaper := newTestService(t)

	err := svc.DeleteDocument(context.Background(), "drop table documents", identity.Identity{UserID: "user-1"})
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Empty(t, reaper.removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocumentKeepsExplicitTitle(t *testing.T) {
	svc, mock, _ := newTestService(t)
	docID := uuid.NewString()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(docID, "My Draft", []byte{}, "user-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "title", "content", "created_by", "created_at", "updated_at"}).
			AddRow(docID, "My Draft", []byte{}, "user-1", now, now))

	doc, err := svc.CreateDocument(context.Background(), identity.Identity{UserID: "user-1"},
		model.CreateDocRequest{ID: docID, Title: "My Draft"})
	require.NoError(t, err)
	assert.Equal(t, "My Draft", doc.Title)
	assert.Empty(t, doc.Content)
}
