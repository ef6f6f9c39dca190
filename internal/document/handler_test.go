package handler_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"draftroom/internal/document/model"
	"draftroom/internal/document/repository"
	"draftroom/internal/document/service"
	"draftroom/internal/identity"
	"draftroom/internal/syncadapter"
	"draftroom/pkg/roomlock"
	"draftroom/router"
	"draftroom/socket"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("handler-test-secret")

func bearerFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + token
}

func newTestAPI(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gate := identity.NewGate(testSecret)
	repo := repository.NewDocumentRepository(db)
	adapter := syncadapter.New(repo, roomlock.New(), gate, time.Second)
	hub := socket.NewHub(adapter)
	svc := service.NewDocumentService(repo, adapter, hub)

	return router.Setup(gate, svc, hub), mock
}

func doRequest(handler http.Handler, method, path, auth string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGetDocumentsRequiresToken(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doRequest(api, http.MethodGet, "/api/documents", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetDocumentsRejectsBadToken(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doRequest(api, http.MethodGet, "/api/documents", "Bearer not-a-token", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetDocumentsReturnsList(t *testing.T) {
	api, mock := newTestAPI(t)
	now := time.Now()

	mock.ExpectQuery("SELECT id, title, created_by, created_at, updated_at FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_by", "created_at", "updated_at"}).
			AddRow("doc-1", "First", "user-1", now, now).
			AddRow("doc-2", "Second", "user-2", now, now))

	rec := doRequest(api, http.MethodGet, "/api/documents", bearerFor(t, "user-1"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var docs []model.DocumentMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "First", docs[0].Title)
}

func TestCreateDocumentRejectsMalformedID(t *testing.T) {
	api, mock := newTestAPI(t)

	rec := doRequest(api, http.MethodPost, "/api/documents", bearerFor(t, "user-1"),
		`{"id":"../../etc","title":"sneaky"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "malformed ids must never reach storage")
}

func TestCreateDocumentDefaultsTitleToID(t *testing.T) {
	api, mock := newTestAPI(t)
	docID := uuid.NewString()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(docID, docID, []byte{}, "user-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "title", "content", "created_by", "created_at", "updated_at"}).
			AddRow(docID, docID, []byte{}, "user-1", now, now))

	rec := doRequest(api, http.MethodPost, "/api/documents", bearerFor(t, "user-1"),
		`{"id":"`+docID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var doc model.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, docID, doc.Title)
}

func TestDeleteDocumentForbiddenForNonOwner(t *testing.T) {
	api, mock := newTestAPI(t)
	docID := uuid.NewString()

	mock.ExpectQuery("SELECT created_by FROM documents").
		WithArgs(docID).
		WillReturnRows(sqlmock.NewRows([]string{"created_by"}).AddRow("someone-else"))

	rec := doRequest(api, http.MethodDelete, "/api/documents/"+docID, bearerFor(t, "user-1"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteDocumentNotFound(t *testing.T) {
	api, mock := newTestAPI(t)
	docID := uuid.NewString()

	mock.ExpectQuery("SELECT created_by FROM documents").
		WithArgs(docID).
		WillReturnError(sql.ErrNoRows)

	rec := doRequest(api, http.MethodDelete, "/api/documents/"+docID, bearerFor(t, "user-1"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetVersionsUnknownDocument(t *testing.T) {
	api, mock := newTestAPI(t)
	docID := uuid.NewString()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(docID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	rec := doRequest(api, http.MethodGet, "/api/documents/"+docID+"/versions", bearerFor(t, "user-1"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRollbackMalformedVersionID(t *testing.T) {
	api, mock := newTestAPI(t)
	docID := uuid.NewString()

	rec := doRequest(api, http.MethodPost, "/api/rollback/"+docID+"/nope", bearerFor(t, "user-1"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackVersionNotFound(t *testing.T) {
	api, mock := newTestAPI(t)
	docID := uuid.NewString()
	versionID := uuid.NewString()
	now := time.Now()

	mock.ExpectQuery("SELECT id, title, content, created_by, created_at, updated_at FROM documents").
		WithArgs(docID).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "title", "content", "created_by", "created_at", "updated_at"}).
			AddRow(docID, "Doc", []byte("state"), "user-1", now, now))
	mock.ExpectQuery("SELECT id, content, updated_by, created_at FROM document_versions").
		WithArgs(docID, versionID).
		WillReturnError(sql.ErrNoRows)

	rec := doRequest(api, http.MethodPost, "/api/rollback/"+docID+"/"+versionID, bearerFor(t, "user-1"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
