package store

import (
	"context"
	"errors"

	"github.com/nhle/tempmail/internal/model"
)

// ErrNotFound is returned when an archived message does not exist.
var ErrNotFound = errors.New("not found")

// ArchiveFilter controls filtering and pagination for archive queries.
type ArchiveFilter struct {
	Mailbox *string
	Query   *string
	Limit   int
	Offset  int
}

// Store defines the persistence interface for the local message archive.
// Sessions and tokens are never persisted.
type Store interface {
	// SaveMessage archives msg delivered to mailbox. Saving the same
	// message twice updates the existing entry. It returns the archive ID.
	SaveMessage(ctx context.Context, mailbox string, msg model.MessageDetail) (string, error)

	GetSaved(ctx context.Context, id string) (*model.SavedMessage, error)

	// ListSaved returns archived messages, most recently saved first.
	ListSaved(ctx context.Context, filter ArchiveFilter) ([]model.SavedMessage, error)

	DeleteSaved(ctx context.Context, id string) error
	CountSaved(ctx context.Context) (int, error)
}
