package heritage

import (
	"context"

	"github.com/google/uuid"
)

// Service is the main interface for the heritage catalogue
type Service interface {
	// Query operations
	ListEntries(ctx context.Context, query ListQuery, access Access) (*ListResult, error)
	// GetEntry records a view and returns the entry with its category.
	GetEntry(ctx context.Context, id uuid.UUID) (*EntryView, error)

	// Contribution workflow
	SubmitEntry(ctx context.Context, req SubmitEntryRequest) (*EntryView, error)
	ApproveEntry(ctx context.Context, id uuid.UUID, actor Identity) (*EntryView, error)
	RejectEntry(ctx context.Context, id uuid.UUID, actor Identity) (*EntryView, error)
	UpdateEntry(ctx context.Context, req UpdateEntryRequest) (*EntryView, error)
	DeleteEntry(ctx context.Context, id uuid.UUID, actor Identity) error

	// Engagement
	RecordView(ctx context.Context, id uuid.UUID) (*Entry, error)
	ToggleLike(ctx context.Context, id uuid.UUID, viewer Identity) (*LikeResult, error)

	// Categories
	ListCategories(ctx context.Context) ([]*Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	CreateCategory(ctx context.Context, req CreateCategoryRequest, actor Identity) (*Category, error)

	// Favorites and profile
	ToggleFavorite(ctx context.Context, user Identity, entryID uuid.UUID) ([]uuid.UUID, error)
	GetProfile(ctx context.Context, user Identity) (*Profile, error)
}
