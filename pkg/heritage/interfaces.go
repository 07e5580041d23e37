package heritage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for entry, category and favorite persistence.
//
// Counter-bearing operations are atomic at the store: implementations must not
// expose a way to write views, likes, liked_by or category counts directly.
type Repository interface {
	// Entry operations

	// CreateEntry inserts the entry and increments its category count in one
	// transaction. Returns ErrCategoryNotFound when the category is unknown.
	CreateEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]*Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*Entry, int, error)
	// UpdateEntry writes the editable fields and status of entry, but only
	// while the stored updated_at still equals unmodifiedSince; otherwise it
	// returns ErrEntryChanged and writes nothing. When the category changes,
	// one unit of count moves from the old category to the new one in the
	// same transaction. The stored updated_at always advances.
	UpdateEntry(ctx context.Context, entry *Entry, unmodifiedSince time.Time) error
	// DeleteEntry removes the entry and decrements its category count in one
	// transaction, returning the removed entry.
	DeleteEntry(ctx context.Context, id uuid.UUID) (*Entry, error)

	// Counter primitives
	IncrementViews(ctx context.Context, id uuid.UUID) (*Entry, error)
	ToggleLike(ctx context.Context, id, user uuid.UUID) (*LikeResult, error)
	// TransitionStatus sets the status to `to` only if it is currently `from`,
	// stamping updated_at with at (or just past the stored value if that is
	// later). Returns ErrInvalidTransition when the entry exists in another state.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Entry, error)

	// Category operations
	CreateCategory(ctx context.Context, category *Category) error
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	GetCategoriesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	// RecountCategories sets every category count to the number of entries
	// referencing it, atomically with respect to entry writes, and returns
	// the categories whose stored count was wrong.
	RecountCategories(ctx context.Context) ([]CountRepair, error)

	// Favorite operations
	ToggleFavorite(ctx context.Context, user, entry uuid.UUID) ([]uuid.UUID, error)
	ListFavorites(ctx context.Context, user uuid.UUID) ([]uuid.UUID, error)
}

// EntryFilter is the store-level predicate and window for ListEntries.
type EntryFilter struct {
	Status        Status
	CategoryID    *uuid.UUID
	State         string // case-insensitive literal substring
	SearchTerms   []string
	Featured      bool
	ContributedBy *uuid.UUID
	Offset        int
	Limit         int // 0 means no limit
}

// ImageStore turns uploaded image bytes into content references.
type ImageStore interface {
	// Name identifies the backend in errors and logs.
	Name() string

	// Put stores the upload under key and returns its content reference.
	Put(ctx context.Context, key string, upload ImageUpload) (string, error)

	// Delete removes a previously returned content reference.
	Delete(ctx context.Context, ref string) error
}

// EventSink defines the interface for lifecycle notifications
type EventSink interface {
	// EntrySubmitted is fired when a contribution is persisted
	EntrySubmitted(ctx context.Context, entry *Entry) error

	// EntryStatusChanged is fired after a moderation transition
	EntryStatusChanged(ctx context.Context, entry *Entry, from Status) error

	// EntryDeleted is fired when an entry is removed
	EntryDeleted(ctx context.Context, entryID uuid.UUID) error

	// EntryLiked is fired after every like toggle
	EntryLiked(ctx context.Context, entryID, userID uuid.UUID, result LikeResult) error
}

// Logger is the logging surface the service needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
