// Package store persists conversation records.
//
// Backends are plain record stores: they read and write whole records and
// do not serialize concurrent writers. The service layer owns per-id
// locking and all record semantics (titles, timestamps, append-only turns).
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/titi-ai/titi/internal/model"
)

var (
	// ErrNotFound is returned for ids that have no record.
	ErrNotFound = errors.New("conversation not found")

	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("conversation record is corrupt")
)

// Store is a durable conversation record store.
type Store interface {
	// Get returns a fresh copy of the record or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Conversation, error)

	// Put writes the full record, replacing any previous version.
	Put(ctx context.Context, conv *model.Conversation) error

	// Delete removes the record or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns every readable record. Order is unspecified.
	List(ctx context.Context) ([]*model.Conversation, error)

	// Close releases backend resources.
	Close() error
}

// validID reports whether id can name a record. Ids are uuids, which also
// keeps them safe to use as file names.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
