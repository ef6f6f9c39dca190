package router

import (
	"net/http"

	handler "draftroom/internal/document"
	"draftroom/internal/document/service"
	"draftroom/internal/identity"
	"draftroom/middleware"
	"draftroom/socket"
)

func Setup(gate *identity.Gate, svc *service.DocumentService, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	// WebSocket clients authenticate inside ServeWs via the sync adapter's
	// authenticate hook, not through the REST middleware.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	docHandler := handler.NewDocumentHandler(svc)
	auth := middleware.Auth(gate)

	mux.Handle("GET /api/documents", auth(http.HandlerFunc(docHandler.GetDocuments)))
	mux.Handle("POST /api/documents", auth(http.HandlerFunc(docHandler.CreateDocument)))
	mux.Handle("DELETE /api/documents/{id}", auth(http.HandlerFunc(docHandler.DeleteDocument)))
	mux.Handle("GET /api/documents/{id}/versions", auth(http.HandlerFunc(docHandler.GetVersions)))
	mux.Handle("POST /api/rollback/{documentId}/{versionId}", auth(http.HandlerFunc(docHandler.Rollback)))

	return mux
}
