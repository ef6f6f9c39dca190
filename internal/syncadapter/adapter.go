package syncadapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"draftroom/internal/document/model"
	"draftroom/internal/document/repository"
	"draftroom/internal/identity"
	"draftroom/pkg/logger"
	"draftroom/pkg/roomlock"

	"github.com/google/uuid"
)

// ErrInvalidRoomID is returned before any storage access when a room
// identifier is not a well-formed UUID.
var ErrInvalidRoomID = errors.New("invalid room id")

// Store is the slice of the document repository the adapter needs.
type Store interface {
	FindByID(ctx context.Context, id string) (*model.Document, error)
	SaveState(ctx context.Context, docID string, state []byte, updatedBy, createdBy string) (model.Version, error)
	FindVersion(ctx context.Context, docID, versionID string) (model.Version, error)
}

// Adapter implements the authenticate/fetch/store hooks the synchronization
// engine drives, plus rollback, which contends for the same per-room slot.
// State blobs pass through untouched; the adapter only guarantees they come
// back byte-for-byte equal.
type Adapter struct {
	store       Store
	locks       *roomlock.Locker
	gate        *identity.Gate
	saveTimeout time.Duration
}

func New(store Store, locks *roomlock.Locker, gate *identity.Gate, saveTimeout time.Duration) *Adapter {
	if saveTimeout <= 0 {
		saveTimeout = 10 * time.Second
	}
	return &Adapter{store: store, locks: locks, gate: gate, saveTimeout: saveTimeout}
}

// Authenticate is the connection hook: it must pass before the engine is
// allowed to call Fetch or Store for the connection.
func (a *Adapter) Authenticate(token string) (identity.Identity, error) {
	return a.gate.Authenticate(token)
}

// Fetch returns the last persisted state for a room. An unknown room and a
// document that has never stored content both come back as ErrNotFound so
// the engine starts fresh; neither is a failure.
func (a *Adapter) Fetch(ctx context.Context, roomID string, who identity.Identity) ([]byte, error) {
	if err := uuid.Validate(roomID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoomID, roomID)
	}

	doc, err := a.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, repository.ErrNotFound
	}
	return doc.Content, nil
}

// Store persists a merged state flush, creating the document on first flush
// with the room id as title. Empty flushes are discarded without touching
// storage or history. Flushes for the same room are serialized; the slot is
// released on every path.
func (a *Adapter) Store(ctx context.Context, roomID string, who identity.Identity, state []byte) error {
	if err := uuid.Validate(roomID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRoomID, roomID)
	}
	if len(state) == 0 {
		logger.Sugar.Warnf("Discarding empty state flush for room %s", roomID)
		return nil
	}

	if err := a.locks.Acquire(ctx, roomID); err != nil {
		return err
	}
	defer a.locks.Release(roomID)

	saveCtx, cancel := context.WithTimeout(ctx, a.saveTimeout)
	defer cancel()
	_, err := a.store.SaveState(saveCtx, roomID, state, who.UserID, who.UserID)
	return err
}

// Rollback makes a prior version current by appending a copy of it. History
// is never rewritten: the target version stays in place and the new head
// records both the triggering identity and the source version.
func (a *Adapter) Rollback(ctx context.Context, docID, versionID string, who identity.Identity) ([]byte, error) {
	if err := uuid.Validate(docID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoomID, docID)
	}

	if err := a.locks.Acquire(ctx, docID); err != nil {
		return nil, err
	}
	defer a.locks.Release(docID)

	if _, err := a.store.FindByID(ctx, docID); err != nil {
		return nil, err
	}
	target, err := a.store.FindVersion(ctx, docID, versionID)
	if err != nil {
		return nil, err
	}

	saveCtx, cancel := context.WithTimeout(ctx, a.saveTimeout)
	defer cancel()
	provenance := fmt.Sprintf("rolled_to_%s_by_%s", versionID, who.UserID)
	if _, err := a.store.SaveState(saveCtx, docID, target.Content, provenance, who.UserID); err != nil {
		return nil, err
	}
	return target.Content, nil
}
