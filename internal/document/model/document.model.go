package model

import "time"

// Version is one immutable snapshot in a document's history. The log is
// append-only: versions are never edited or removed, rollback included.
type Version struct {
	ID        string    `json:"id"`
	Content   []byte    `json:"content"`
	UpdatedBy string    `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Document owns the latest merged state plus its full version log. Content
// is the opaque blob the synchronization engine produced; it is never
// interpreted here.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   []byte    `json:"content"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Versions  []Version `json:"versions,omitempty"`
}

type DocumentMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateDocRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type RollbackResponse struct {
	Message string `json:"message"`
	Content []byte `json:"content"`
}
