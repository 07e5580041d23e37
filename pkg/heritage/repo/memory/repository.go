package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/swadeshi/heritage/pkg/heritage"
)

// Repository implements heritage.Repository using in-memory storage.
// A single mutex guards entries and categories together so the two-record
// operations (create, delete, category move) are one critical section.
type Repository struct {
	mu            sync.RWMutex
	entries       map[uuid.UUID]*heritage.Entry
	categories    map[uuid.UUID]*heritage.Category
	categoryNames map[string]uuid.UUID
	favorites     map[uuid.UUID][]uuid.UUID // user_id -> ordered entry ids
}

// New creates a new in-memory repository
func New() heritage.Repository {
	return &Repository{
		entries:       make(map[uuid.UUID]*heritage.Entry),
		categories:    make(map[uuid.UUID]*heritage.Category),
		categoryNames: make(map[string]uuid.UUID),
		favorites:     make(map[uuid.UUID][]uuid.UUID),
	}
}

// Entry operations

func (r *Repository) CreateEntry(ctx context.Context, entry *heritage.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	category, ok := r.categories[entry.CategoryID]
	if !ok {
		return heritage.ErrCategoryNotFound
	}

	stored := entry.Clone()
	if stored.LikedBy == nil {
		stored.LikedBy = []uuid.UUID{}
	}
	stored.Likes = len(stored.LikedBy)
	r.entries[entry.ID] = stored
	category.Count++

	return nil
}

func (r *Repository) GetEntry(ctx context.Context, id uuid.UUID) (*heritage.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, heritage.ErrEntryNotFound
	}
	return entry.Clone(), nil
}

func (r *Repository) GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]*heritage.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*heritage.Entry, 0, len(ids))
	for _, id := range ids {
		if entry, ok := r.entries[id]; ok {
			result = append(result, entry.Clone())
		}
	}
	return result, nil
}

type scored struct {
	entry *heritage.Entry
	score int
}

func (r *Repository) ListEntries(ctx context.Context, filter heritage.EntryFilter) ([]*heritage.Entry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := strings.ToLower(filter.State)
	var matched []scored
	for _, e := range r.entries {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.CategoryID != nil && e.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.ContributedBy != nil && e.ContributedBy != *filter.ContributedBy {
			continue
		}
		if filter.Featured && !e.Featured {
			continue
		}
		if state != "" && !strings.Contains(strings.ToLower(e.State), state) {
			continue
		}
		score := 0
		if len(filter.SearchTerms) > 0 {
			score = relevance(e, filter.SearchTerms)
			if score == 0 {
				continue
			}
		}
		matched = append(matched, scored{entry: e, score: score})
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].entry.CreatedAt.After(matched[j].entry.CreatedAt)
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	result := make([]*heritage.Entry, 0, end-start)
	for _, m := range matched[start:end] {
		result = append(result, m.entry.Clone())
	}
	return result, total, nil
}

// relevance counts search term occurrences across title, description and
// tags. Title hits weigh more, mirroring a weighted text index.
func relevance(e *heritage.Entry, terms []string) int {
	want := make(map[string]bool, len(terms))
	for _, t := range terms {
		want[t] = true
	}
	count := func(text string, weight int) int {
		n := 0
		for _, w := range heritage.SearchTerms(text) {
			if want[w] {
				n += weight
			}
		}
		return n
	}
	score := count(e.Title, 2) + count(e.Description, 1)
	for _, tag := range e.Tags {
		score += count(tag, 1)
	}
	return score
}

func (r *Repository) UpdateEntry(ctx context.Context, entry *heritage.Entry, unmodifiedSince time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.entries[entry.ID]
	if !ok {
		return heritage.ErrEntryNotFound
	}
	if !stored.UpdatedAt.Equal(unmodifiedSince) {
		return heritage.ErrEntryChanged
	}

	if entry.CategoryID != stored.CategoryID {
		next, ok := r.categories[entry.CategoryID]
		if !ok {
			return heritage.ErrCategoryNotFound
		}
		if prev, ok := r.categories[stored.CategoryID]; ok {
			prev.Count--
		}
		next.Count++
	}

	src := entry.Clone()
	stored.Title = src.Title
	stored.Description = src.Description
	stored.DetailedDescription = src.DetailedDescription
	stored.CategoryID = src.CategoryID
	stored.Subcategory = src.Subcategory
	stored.State = src.State
	stored.City = src.City
	stored.HistoricalSignificance = src.HistoricalSignificance
	stored.CulturalImportance = src.CulturalImportance
	stored.YearEstablished = src.YearEstablished
	stored.Tags = src.Tags
	stored.Location = src.Location
	stored.Status = src.Status
	stored.Featured = src.Featured
	stored.Verified = src.Verified
	stored.UpdatedAt = advance(stored.UpdatedAt, src.UpdatedAt)

	return nil
}

func (r *Repository) DeleteEntry(ctx context.Context, id uuid.UUID) (*heritage.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, heritage.ErrEntryNotFound
	}
	delete(r.entries, id)
	if category, ok := r.categories[entry.CategoryID]; ok {
		category.Count--
	}
	for user, ids := range r.favorites {
		r.favorites[user] = removeID(ids, id)
	}
	return entry, nil
}

// Counter primitives

func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) (*heritage.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, heritage.ErrEntryNotFound
	}
	entry.Views++
	return entry.Clone(), nil
}

func (r *Repository) ToggleLike(ctx context.Context, id, user uuid.UUID) (*heritage.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, heritage.ErrEntryNotFound
	}

	liked := true
	next := make([]uuid.UUID, 0, len(entry.LikedBy)+1)
	for _, u := range entry.LikedBy {
		if u == user {
			liked = false
			continue
		}
		next = append(next, u)
	}
	if liked {
		next = append(next, user)
	}
	entry.LikedBy = next
	entry.Likes = len(next)

	return &heritage.LikeResult{Likes: entry.Likes, Liked: liked}, nil
}

// advance returns at, or one microsecond past stored when at is not later,
// so every write moves updated_at forward.
func advance(stored, at time.Time) time.Time {
	if at.After(stored) {
		return at
	}
	return stored.Add(time.Microsecond)
}

func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to heritage.Status, at time.Time) (*heritage.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, heritage.ErrEntryNotFound
	}
	if entry.Status != from {
		return nil, heritage.ErrInvalidTransition
	}
	entry.Status = to
	entry.UpdatedAt = advance(entry.UpdatedAt, at)
	return entry.Clone(), nil
}

// Category operations

func (r *Repository) CreateCategory(ctx context.Context, category *heritage.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.categoryNames[category.Name]; exists {
		return heritage.ErrCategoryExists
	}
	c := *category
	r.categories[category.ID] = &c
	r.categoryNames[category.Name] = category.ID
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (*heritage.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category, ok := r.categories[id]
	if !ok {
		return nil, heritage.ErrCategoryNotFound
	}
	c := *category
	return &c, nil
}

func (r *Repository) GetCategoriesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*heritage.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[uuid.UUID]*heritage.Category, len(ids))
	for _, id := range ids {
		if category, ok := r.categories[id]; ok {
			c := *category
			result[id] = &c
		}
	}
	return result, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]*heritage.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*heritage.Category, 0, len(r.categories))
	for _, category := range r.categories {
		c := *category
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// RecountCategories counts and repairs under the write lock, so no entry
// write can land between the count and the update.
func (r *Repository) RecountCategories(ctx context.Context) ([]heritage.CountRepair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	actual := make(map[uuid.UUID]int, len(r.categories))
	for _, e := range r.entries {
		actual[e.CategoryID]++
	}

	var repairs []heritage.CountRepair
	for id, category := range r.categories {
		want := actual[id]
		if category.Count == want {
			continue
		}
		repairs = append(repairs, heritage.CountRepair{CategoryID: id, Name: category.Name, From: category.Count, To: want})
		category.Count = want
	}
	sort.Slice(repairs, func(i, j int) bool {
		return repairs[i].Name < repairs[j].Name
	})
	return repairs, nil
}

// Favorite operations

func (r *Repository) ToggleFavorite(ctx context.Context, user, entry uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.favorites[user]
	next := make([]uuid.UUID, 0, len(current)+1)
	removed := false
	for _, id := range current {
		if id == entry {
			removed = true
			continue
		}
		next = append(next, id)
	}
	if !removed {
		next = append(next, entry)
	}
	r.favorites[user] = next

	return append([]uuid.UUID{}, next...), nil
}

func (r *Repository) ListFavorites(ctx context.Context, user uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]uuid.UUID{}, r.favorites[user]...), nil
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
