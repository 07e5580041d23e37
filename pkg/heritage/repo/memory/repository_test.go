package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swadeshi/heritage/pkg/heritage"
	"github.com/swadeshi/heritage/pkg/heritage/repo/memory"
)

func newCategory(t *testing.T, repo heritage.Repository, name string) *heritage.Category {
	t.Helper()
	c := &heritage.Category{
		ID:        uuid.New(),
		Name:      name,
		Color:     heritage.DefaultCategoryColor,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, repo.CreateCategory(context.Background(), c))
	return c
}

func newEntry(categoryID uuid.UUID, title string, created time.Time) *heritage.Entry {
	return &heritage.Entry{
		ID:            uuid.New(),
		Title:         title,
		Description:   "A test entry",
		CategoryID:    categoryID,
		State:         "Rajasthan",
		Tags:          []string{},
		Status:        heritage.StatusActive,
		ContributedBy: uuid.New(),
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func countOf(t *testing.T, repo heritage.Repository, id uuid.UUID) int {
	t.Helper()
	c, err := repo.GetCategory(context.Background(), id)
	require.NoError(t, err)
	return c.Count
}

func TestMemoryRepository_EntryOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	category := newCategory(t, repo, "Monuments")

	t.Run("CreateEntry", func(t *testing.T) {
		entry := newEntry(category.ID, "Amber Fort", time.Now())
		require.NoError(t, repo.CreateEntry(ctx, entry))
		assert.Equal(t, 1, countOf(t, repo, category.ID))

		got, err := repo.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "Amber Fort", got.Title)
		assert.NotNil(t, got.LikedBy)
	})

	t.Run("CreateEntry unknown category", func(t *testing.T) {
		err := repo.CreateEntry(ctx, newEntry(uuid.New(), "Nowhere", time.Now()))
		assert.ErrorIs(t, err, heritage.ErrCategoryNotFound)
	})

	t.Run("GetEntry returns a copy", func(t *testing.T) {
		entry := newEntry(category.ID, "City Palace", time.Now())
		entry.Tags = []string{"palace"}
		require.NoError(t, repo.CreateEntry(ctx, entry))

		got, err := repo.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		got.Tags[0] = "mutated"
		got.Title = "mutated"

		again, err := repo.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "City Palace", again.Title)
		assert.Equal(t, []string{"palace"}, again.Tags)
	})

	t.Run("GetEntry not found", func(t *testing.T) {
		_, err := repo.GetEntry(ctx, uuid.New())
		assert.ErrorIs(t, err, heritage.ErrEntryNotFound)
	})

	t.Run("GetEntriesByIDs keeps order and skips unknown", func(t *testing.T) {
		a := newEntry(category.ID, "A", time.Now())
		b := newEntry(category.ID, "B", time.Now())
		require.NoError(t, repo.CreateEntry(ctx, a))
		require.NoError(t, repo.CreateEntry(ctx, b))

		got, err := repo.GetEntriesByIDs(ctx, []uuid.UUID{b.ID, uuid.New(), a.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "B", got[0].Title)
		assert.Equal(t, "A", got[1].Title)
	})

	t.Run("UpdateEntry moves category count", func(t *testing.T) {
		other := newCategory(t, repo, "Forts")
		entry := newEntry(category.ID, "Mehrangarh", time.Now())
		require.NoError(t, repo.CreateEntry(ctx, entry))
		before := countOf(t, repo, category.ID)

		read := entry.UpdatedAt
		entry.CategoryID = other.ID
		entry.Views = 999
		entry.Likes = 7
		entry.Status = heritage.StatusArchived
		entry.UpdatedAt = read.Add(time.Second)
		require.NoError(t, repo.UpdateEntry(ctx, entry, read))

		assert.Equal(t, before-1, countOf(t, repo, category.ID))
		assert.Equal(t, 1, countOf(t, repo, other.ID))

		got, err := repo.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Views, "views are not writable through UpdateEntry")
		assert.Equal(t, 0, got.Likes, "likes are not writable through UpdateEntry")
		assert.Equal(t, heritage.StatusArchived, got.Status)
		assert.True(t, got.UpdatedAt.Equal(read.Add(time.Second)))
	})

	t.Run("UpdateEntry rejects a stale read", func(t *testing.T) {
		other := newCategory(t, repo, "Stepwells")
		entry := newEntry(category.ID, "Chand Baori", time.Now())
		require.NoError(t, repo.CreateEntry(ctx, entry))
		before := countOf(t, repo, category.ID)

		stale := entry.UpdatedAt.Add(-time.Minute)
		entry.Title = "Rani ki Vav"
		entry.CategoryID = other.ID
		err := repo.UpdateEntry(ctx, entry, stale)
		assert.ErrorIs(t, err, heritage.ErrEntryChanged)

		got, err := repo.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "Chand Baori", got.Title)
		assert.Equal(t, before, countOf(t, repo, category.ID))
		assert.Equal(t, 0, countOf(t, repo, other.ID))

		assert.ErrorIs(t, repo.UpdateEntry(ctx, newEntry(category.ID, "Ghost", time.Now()), time.Now()), heritage.ErrEntryNotFound)
	})

	t.Run("UpdateEntry always advances updated_at", func(t *testing.T) {
		entry := newEntry(category.ID, "Nahargarh", time.Now())
		require.NoError(t, repo.CreateEntry(ctx, entry))

		read := entry.UpdatedAt
		entry.UpdatedAt = read
		require.NoError(t, repo.UpdateEntry(ctx, entry, read))

		got, err := repo.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(read))
		assert.ErrorIs(t, repo.UpdateEntry(ctx, entry, read), heritage.ErrEntryChanged)
	})

	t.Run("DeleteEntry decrements count and clears favorites", func(t *testing.T) {
		entry := newEntry(category.ID, "Jal Mahal", time.Now())
		require.NoError(t, repo.CreateEntry(ctx, entry))
		user := uuid.New()
		_, err := repo.ToggleFavorite(ctx, user, entry.ID)
		require.NoError(t, err)
		before := countOf(t, repo, category.ID)

		deleted, err := repo.DeleteEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, deleted.ID)
		assert.Equal(t, before-1, countOf(t, repo, category.ID))

		favorites, err := repo.ListFavorites(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, favorites)

		_, err = repo.DeleteEntry(ctx, entry.ID)
		assert.ErrorIs(t, err, heritage.ErrEntryNotFound)
	})
}

func TestMemoryRepository_ListEntries(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	monuments := newCategory(t, repo, "Monuments")
	festivals := newCategory(t, repo, "Festivals")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	amber := newEntry(monuments.ID, "Amber Fort", base)
	amber.Description = "Hilltop fort near Jaipur"
	hawa := newEntry(monuments.ID, "Hawa Mahal", base.Add(time.Hour))
	hawa.Featured = true
	diwali := newEntry(festivals.ID, "Diwali", base.Add(2*time.Hour))
	diwali.State = "Uttar Pradesh"
	diwali.Tags = []string{"lights"}
	pending := newEntry(festivals.ID, "Pushkar Fair", base.Add(3*time.Hour))
	pending.Status = heritage.StatusPending
	for _, e := range []*heritage.Entry{amber, hawa, diwali, pending} {
		require.NoError(t, repo.CreateEntry(ctx, e))
	}

	titles := func(entries []*heritage.Entry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Title)
		}
		return out
	}

	tests := []struct {
		name      string
		filter    heritage.EntryFilter
		want      []string
		wantTotal int
	}{
		{
			name:      "active newest first",
			filter:    heritage.EntryFilter{Status: heritage.StatusActive},
			want:      []string{"Diwali", "Hawa Mahal", "Amber Fort"},
			wantTotal: 3,
		},
		{
			name:      "pending",
			filter:    heritage.EntryFilter{Status: heritage.StatusPending},
			want:      []string{"Pushkar Fair"},
			wantTotal: 1,
		},
		{
			name:      "category",
			filter:    heritage.EntryFilter{Status: heritage.StatusActive, CategoryID: &festivals.ID},
			want:      []string{"Diwali"},
			wantTotal: 1,
		},
		{
			name:      "state substring ignores case",
			filter:    heritage.EntryFilter{Status: heritage.StatusActive, State: "pradesh"},
			want:      []string{"Diwali"},
			wantTotal: 1,
		},
		{
			name:      "featured",
			filter:    heritage.EntryFilter{Status: heritage.StatusActive, Featured: true},
			want:      []string{"Hawa Mahal"},
			wantTotal: 1,
		},
		{
			name:      "search matches tags",
			filter:    heritage.EntryFilter{Status: heritage.StatusActive, SearchTerms: []string{"lights"}},
			want:      []string{"Diwali"},
			wantTotal: 1,
		},
		{
			name:      "search terms are ORed",
			filter:    heritage.EntryFilter{Status: heritage.StatusActive, SearchTerms: []string{"fort", "mahal"}},
			want:      []string{"Amber Fort", "Hawa Mahal"},
			wantTotal: 2,
		},
		{
			name:      "window keeps total",
			filter:    heritage.EntryFilter{Status: heritage.StatusActive, Offset: 1, Limit: 1},
			want:      []string{"Hawa Mahal"},
			wantTotal: 3,
		},
		{
			name:      "offset past end",
			filter:    heritage.EntryFilter{Status: heritage.StatusActive, Offset: 10, Limit: 5},
			want:      []string{},
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := repo.ListEntries(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestMemoryRepository_Counters(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	category := newCategory(t, repo, "Traditions")
	entry := newEntry(category.ID, "Holi", time.Now())
	require.NoError(t, repo.CreateEntry(ctx, entry))

	t.Run("IncrementViews", func(t *testing.T) {
		got, err := repo.IncrementViews(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Views)

		_, err = repo.IncrementViews(ctx, uuid.New())
		assert.ErrorIs(t, err, heritage.ErrEntryNotFound)
	})

	t.Run("ToggleLike is concurrency safe", func(t *testing.T) {
		const users = 64
		var wg sync.WaitGroup
		for i := 0; i < users; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.ToggleLike(ctx, entry.ID, uuid.New())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, users, got.Likes)
		assert.Len(t, got.LikedBy, users)
	})

	t.Run("ToggleLike from one user never double applies", func(t *testing.T) {
		target := newEntry(category.ID, "Diwali", time.Now())
		require.NoError(t, repo.CreateEntry(ctx, target))
		user := uuid.New()

		const toggles = 51
		var wg sync.WaitGroup
		for i := 0; i < toggles; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.ToggleLike(ctx, target.ID, user)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GetEntry(ctx, target.ID)
		require.NoError(t, err)
		assert.True(t, got.LikedByUser(user), "an odd number of toggles leaves the like set")
		assert.Equal(t, 1, got.Likes)
		assert.Len(t, got.LikedBy, 1)
	})

	t.Run("TransitionStatus is conditional", func(t *testing.T) {
		created := time.Now().Add(-time.Hour)
		queued := newEntry(category.ID, "Onam", created)
		queued.Status = heritage.StatusPending
		require.NoError(t, repo.CreateEntry(ctx, queued))

		at := time.Now()
		got, err := repo.TransitionStatus(ctx, queued.ID, heritage.StatusPending, heritage.StatusActive, at)
		require.NoError(t, err)
		assert.Equal(t, heritage.StatusActive, got.Status)
		assert.True(t, got.UpdatedAt.Equal(at))

		_, err = repo.TransitionStatus(ctx, queued.ID, heritage.StatusPending, heritage.StatusArchived, at)
		assert.ErrorIs(t, err, heritage.ErrInvalidTransition)
		_, err = repo.TransitionStatus(ctx, uuid.New(), heritage.StatusPending, heritage.StatusActive, at)
		assert.ErrorIs(t, err, heritage.ErrEntryNotFound)
	})

	t.Run("TransitionStatus never moves updated_at back", func(t *testing.T) {
		created := time.Now()
		queued := newEntry(category.ID, "Pongal", created)
		queued.Status = heritage.StatusPending
		require.NoError(t, repo.CreateEntry(ctx, queued))

		got, err := repo.TransitionStatus(ctx, queued.ID, heritage.StatusPending, heritage.StatusActive, created.Add(-time.Hour))
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(created))
	})
}

func TestMemoryRepository_CategoryOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	crafts := newCategory(t, repo, "Arts & Crafts")
	newCategory(t, repo, "Cuisine")

	t.Run("duplicate name", func(t *testing.T) {
		err := repo.CreateCategory(ctx, &heritage.Category{ID: uuid.New(), Name: "Arts & Crafts"})
		assert.ErrorIs(t, err, heritage.ErrCategoryExists)
	})

	t.Run("list sorted by name", func(t *testing.T) {
		list, err := repo.ListCategories(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Arts & Crafts", list[0].Name)
		assert.Equal(t, "Cuisine", list[1].Name)
	})

	t.Run("RecountCategories", func(t *testing.T) {
		require.NoError(t, repo.CreateEntry(ctx, newEntry(crafts.ID, "Blue Pottery", time.Now())))
		imported := &heritage.Category{ID: uuid.New(), Name: "Textiles", Count: 42}
		require.NoError(t, repo.CreateCategory(ctx, imported))

		repairs, err := repo.RecountCategories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []heritage.CountRepair{
			{CategoryID: imported.ID, Name: "Textiles", From: 42, To: 0},
		}, repairs)
		assert.Equal(t, 1, countOf(t, repo, crafts.ID))
		assert.Equal(t, 0, countOf(t, repo, imported.ID))

		repairs, err = repo.RecountCategories(ctx)
		require.NoError(t, err)
		assert.Empty(t, repairs)
	})

	t.Run("RecountCategories races entry writes", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.CreateEntry(ctx, newEntry(crafts.ID, "Bandhani", time.Now())))
			}()
			go func() {
				defer wg.Done()
				_, err := repo.RecountCategories(ctx)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		repairs, err := repo.RecountCategories(ctx)
		require.NoError(t, err)
		assert.Empty(t, repairs, "no recount may leave a count behind its entries")
		assert.Equal(t, 33, countOf(t, repo, crafts.ID))
	})

	t.Run("GetCategoriesByIDs skips unknown", func(t *testing.T) {
		got, err := repo.GetCategoriesByIDs(ctx, []uuid.UUID{crafts.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, "Arts & Crafts", got[crafts.ID].Name)
	})
}

func TestMemoryRepository_Favorites(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	user := uuid.New()
	a, b := uuid.New(), uuid.New()

	favorites, err := repo.ListFavorites(ctx, user)
	require.NoError(t, err)
	assert.NotNil(t, favorites)
	assert.Empty(t, favorites)

	_, err = repo.ToggleFavorite(ctx, user, a)
	require.NoError(t, err)
	favorites, err = repo.ToggleFavorite(ctx, user, b)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, favorites)

	favorites, err = repo.ToggleFavorite(ctx, user, a)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b}, favorites)

	favorites, err = repo.ToggleFavorite(ctx, user, b)
	require.NoError(t, err)
	assert.NotNil(t, favorites)
	assert.Empty(t, favorites)
}
