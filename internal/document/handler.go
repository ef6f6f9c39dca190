package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"draftroom/internal/document/model"
	"draftroom/internal/document/repository"
	"draftroom/internal/document/service"
	"draftroom/internal/identity"
	"draftroom/internal/syncadapter"
	"draftroom/middleware"
	"draftroom/pkg/logger"
)

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Service.GetDocuments(r.Context())
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list documents: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	who := callerIdentity(r)

	var req model.CreateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.CreateDocument(r.Context(), who, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document %s: %v", req.ID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	who := callerIdentity(r)

	if err := h.Service.DeleteDocument(r.Context(), docID, who); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete document %s: %v", docID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}

func (h *DocumentHandler) GetVersions(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	versions, err := h.Service.GetVersions(r.Context(), docID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list versions for doc %s: %v", docID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *DocumentHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("documentId")
	versionID := r.PathValue("versionId")
	who := callerIdentity(r)

	content, err := h.Service.Rollback(r.Context(), docID, versionID, who)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to roll back doc %s to version %s: %v", docID, versionID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RollbackResponse{Message: "Document rolled back", Content: content})
}

func callerIdentity(r *http.Request) identity.Identity {
	userID, _ := r.Context().Value(middleware.UserIDKey).(string)
	return identity.Identity{UserID: userID}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidID), errors.Is(err, syncadapter.ErrInvalidRoomID):
		http.Error(w, "Invalid identifier format", http.StatusBadRequest)
	case errors.Is(err, identity.ErrForbidden):
		http.Error(w, "You do not have permission to perform this action", http.StatusForbidden)
	case errors.Is(err, repository.ErrVersionNotFound):
		http.Error(w, "Version not found", http.StatusNotFound)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "Document not found", http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Operation timed out", http.StatusGatewayTimeout)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
