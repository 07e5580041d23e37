package heritage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	imageStore ImageStore
	eventSink  EventSink
	logger     Logger
	policy     Policy
	limits     MediaLimits
	now        func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithImageStore sets where submitted images are stored
func WithImageStore(store ImageStore) Option {
	return func(s *service) {
		s.imageStore = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger used for non-fatal failures
func WithLogger(logger Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithPolicy sets the publication policy for new submissions
func WithPolicy(policy Policy) Option {
	return func(s *service) {
		s.policy = policy
	}
}

// WithMediaLimits overrides the image count and size limits
func WithMediaLimits(limits MediaLimits) Option {
	return func(s *service) {
		s.limits = limits
	}
}

// WithClock overrides the time source for created/updated timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink: NewNoopEventSink(),
		logger:    nopLogger{},
		policy:    PolicyAutoPublish,
		limits:    DefaultMediaLimits(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.imageStore == nil {
		return nil, fmt.Errorf("image store is required")
	}
	if !s.policy.IsValid() {
		return nil, fmt.Errorf("unknown publication policy %q", s.policy)
	}
	if s.limits.MaxImages <= 0 || s.limits.MaxImageBytes <= 0 {
		return nil, fmt.Errorf("media limits must be positive")
	}

	return s, nil
}

// Query operations

func (s *service) ListEntries(ctx context.Context, query ListQuery, access Access) (*ListResult, error) {
	status, err := query.visibleStatus(access)
	if err != nil {
		return nil, err
	}
	if query.Page < 1 {
		query.Page = DefaultPage
	}
	if query.Limit < 1 || query.Limit > MaxLimit {
		query.Limit = DefaultLimit
	}

	entries, total, err := s.repository.ListEntries(ctx, query.filter(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	items, err := s.views(ctx, entries)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Items:      items,
		Pagination: NewPagination(query.Page, query.Limit, total),
	}, nil
}

func (s *service) GetEntry(ctx context.Context, id uuid.UUID) (*EntryView, error) {
	entry, err := s.RecordView(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, entry)
}

// Contribution workflow

func (s *service) SubmitEntry(ctx context.Context, req SubmitEntryRequest) (*EntryView, error) {
	draft := req.Draft
	verr := &ValidationError{}

	title := strings.TrimSpace(draft.Title)
	description := strings.TrimSpace(draft.Description)
	state := strings.TrimSpace(draft.State)
	if title == "" {
		verr.Add("title", "is required")
	}
	if description == "" {
		verr.Add("description", "is required")
	}
	if state == "" {
		verr.Add("state", "is required")
	}

	categoryID, ok := parseCategoryField(verr, draft.CategoryID)
	if len(req.Images) > s.limits.MaxImages {
		verr.Add("images", fmt.Sprintf("at most %d images are allowed", s.limits.MaxImages))
	}

	var category *Category
	if ok {
		c, err := s.repository.GetCategory(ctx, categoryID)
		switch {
		case errors.Is(err, ErrCategoryNotFound):
			verr.Add("category", "does not exist")
		case err != nil:
			return nil, fmt.Errorf("failed to look up category: %w", err)
		default:
			category = c
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.limits.checkImages(req.Images); err != nil {
		return nil, err
	}

	now := s.now()
	entry := &Entry{
		ID:                     uuid.New(),
		Title:                  title,
		Description:            description,
		DetailedDescription:    strings.TrimSpace(draft.DetailedDescription),
		CategoryID:             categoryID,
		Subcategory:            strings.TrimSpace(draft.Subcategory),
		State:                  state,
		City:                   strings.TrimSpace(draft.City),
		HistoricalSignificance: strings.TrimSpace(draft.HistoricalSignificance),
		CulturalImportance:     strings.TrimSpace(draft.CulturalImportance),
		YearEstablished:        strings.TrimSpace(draft.YearEstablished),
		Tags:                   NormalizeTags(draft.Tags),
		Location:               draft.Location,
		Status:                 s.policy.InitialStatus(),
		LikedBy:                []uuid.UUID{},
		ContributedBy:          req.Contributor.UserID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	images, err := s.storeImages(ctx, entry.ID, req.Images)
	if err != nil {
		return nil, err
	}
	entry.Images = images

	if err := s.repository.CreateEntry(ctx, entry); err != nil {
		s.discardImages(ctx, entry.ID, images)
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, &ValidationError{Fields: []FieldError{{Field: "category", Message: "does not exist"}}}
		}
		return nil, &EntryError{EntryID: entry.ID, Op: "create", Err: err}
	}

	if err := s.eventSink.EntrySubmitted(ctx, entry); err != nil {
		// Log error but don't fail the operation
		s.logger.Warnf("entry submitted event failed for %s: %v", entry.ID, err)
	}

	return &EntryView{Entry: entry, Category: category.Summary()}, nil
}

func (s *service) ApproveEntry(ctx context.Context, id uuid.UUID, actor Identity) (*EntryView, error) {
	return s.moderate(ctx, id, actor, StatusActive, "approve")
}

func (s *service) RejectEntry(ctx context.Context, id uuid.UUID, actor Identity) (*EntryView, error) {
	return s.moderate(ctx, id, actor, StatusArchived, "reject")
}

func (s *service) moderate(ctx context.Context, id uuid.UUID, actor Identity, to Status, op string) (*EntryView, error) {
	if !actor.IsAdmin() {
		return nil, &AuthorizationError{UserID: actor.UserID, Op: op, Reason: "admin role required"}
	}

	current, err := s.repository.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	entry, err := s.transition(ctx, current, to, op)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, entry)
}

// transition moves current to the target status with a conditional store
// update, so a concurrent moderation of the same entry fails instead of
// applying twice.
func (s *service) transition(ctx context.Context, current *Entry, to Status, op string) (*Entry, error) {
	if _, err := canTransition(current.Status, to); err != nil {
		return nil, &EntryError{EntryID: current.ID, Op: op, Err: err}
	}

	entry, err := s.repository.TransitionStatus(ctx, current.ID, current.Status, to, s.now())
	if err != nil {
		return nil, &EntryError{EntryID: current.ID, Op: op, Err: err}
	}

	s.statusChanged(ctx, entry, current.Status)
	return entry, nil
}

func (s *service) statusChanged(ctx context.Context, entry *Entry, from Status) {
	if err := s.eventSink.EntryStatusChanged(ctx, entry, from); err != nil {
		// Log error but don't fail the operation
		s.logger.Warnf("status changed event failed for %s: %v", entry.ID, err)
	}
}

// updateAttempts bounds how often an update is re-read and re-merged after
// losing a race with another writer.
const updateAttempts = 3

func (s *service) UpdateEntry(ctx context.Context, req UpdateEntryRequest) (*EntryView, error) {
	var err error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		var fresh *Entry
		fresh, err = s.updateOnce(ctx, req)
		if err == nil {
			return s.view(ctx, fresh)
		}
		if !errors.Is(err, ErrEntryChanged) {
			return nil, err
		}
	}
	return nil, err
}

// updateOnce merges the patch onto the current entry and writes it back
// conditionally on the updated_at that was read. Status travels in the same
// write, so a failed update leaves neither the fields nor the status changed.
func (s *service) updateOnce(ctx context.Context, req UpdateEntryRequest) (*Entry, error) {
	current, err := s.repository.GetEntry(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if !req.Actor.IsAdmin() && current.ContributedBy != req.Actor.UserID {
		return nil, &AuthorizationError{UserID: req.Actor.UserID, Op: "update", Reason: "only the contributor or an admin may edit this entry"}
	}
	if req.Patch.moderates() && !req.Actor.IsAdmin() {
		return nil, &AuthorizationError{UserID: req.Actor.UserID, Op: "update", Reason: "status, featured and verified are admin-only"}
	}

	updated, err := s.applyPatch(ctx, current, req.Patch)
	if err != nil {
		return nil, err
	}

	status := req.Patch.Status
	statusChanged := status != nil && *status != current.Status
	if statusChanged {
		if _, err := canTransition(current.Status, *status); err != nil {
			return nil, &EntryError{EntryID: current.ID, Op: "update", Err: err}
		}
		updated.Status = *status
	}

	updated.UpdatedAt = s.now()
	if err := s.repository.UpdateEntry(ctx, updated, current.UpdatedAt); err != nil {
		return nil, &EntryError{EntryID: current.ID, Op: "update", Err: err}
	}

	fresh, err := s.repository.GetEntry(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	if statusChanged {
		s.statusChanged(ctx, fresh, current.Status)
	}
	return fresh, nil
}

// applyPatch shallow-merges p onto a copy of current. Required fields may
// not be cleared and a new category must exist.
func (s *service) applyPatch(ctx context.Context, current *Entry, p EntryPatch) (*Entry, error) {
	e := current.Clone()
	verr := &ValidationError{}

	setRequired := func(field string, dst *string, v *string) {
		if v == nil {
			return
		}
		t := strings.TrimSpace(*v)
		if t == "" {
			verr.Add(field, "is required")
			return
		}
		*dst = t
	}
	setOptional := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}

	setRequired("title", &e.Title, p.Title)
	setRequired("description", &e.Description, p.Description)
	setRequired("state", &e.State, p.State)
	setOptional(&e.DetailedDescription, p.DetailedDescription)
	setOptional(&e.Subcategory, p.Subcategory)
	setOptional(&e.City, p.City)
	setOptional(&e.HistoricalSignificance, p.HistoricalSignificance)
	setOptional(&e.CulturalImportance, p.CulturalImportance)
	setOptional(&e.YearEstablished, p.YearEstablished)

	if p.Tags != nil {
		e.Tags = normalizeTagList(*p.Tags)
	}
	if p.Location != nil {
		loc := *p.Location
		e.Location = &loc
	}
	if p.Featured != nil {
		e.Featured = *p.Featured
	}
	if p.Verified != nil {
		e.Verified = *p.Verified
	}
	if p.Status != nil && !p.Status.IsValid() {
		verr.Add("status", "must be one of pending, active, archived")
	}

	if p.CategoryID != nil {
		if id, ok := parseCategoryField(verr, *p.CategoryID); ok && id != current.CategoryID {
			_, err := s.repository.GetCategory(ctx, id)
			switch {
			case errors.Is(err, ErrCategoryNotFound):
				verr.Add("category", "does not exist")
			case err != nil:
				return nil, fmt.Errorf("failed to look up category: %w", err)
			default:
				e.CategoryID = id
			}
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *service) DeleteEntry(ctx context.Context, id uuid.UUID, actor Identity) error {
	if !actor.IsAdmin() {
		return &AuthorizationError{UserID: actor.UserID, Op: "delete", Reason: "admin role required"}
	}

	deleted, err := s.repository.DeleteEntry(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return &EntryError{EntryID: id, Op: "delete", Err: err}
	}

	s.discardImages(ctx, id, deleted.Images)

	if err := s.eventSink.EntryDeleted(ctx, id); err != nil {
		// Log error but don't fail the operation
		s.logger.Warnf("entry deleted event failed for %s: %v", id, err)
	}
	return nil
}

// Engagement

func (s *service) RecordView(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repository.IncrementViews(ctx, id)
}

func (s *service) ToggleLike(ctx context.Context, id uuid.UUID, viewer Identity) (*LikeResult, error) {
	if viewer.UserID == uuid.Nil {
		return nil, &AuthorizationError{Op: "like", Reason: "authentication required"}
	}

	result, err := s.repository.ToggleLike(ctx, id, viewer.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.eventSink.EntryLiked(ctx, id, viewer.UserID, *result); err != nil {
		// Log error but don't fail the operation
		s.logger.Warnf("entry liked event failed for %s: %v", id, err)
	}
	return result, nil
}

// Categories

func (s *service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.repository.ListCategories(ctx)
}

func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	return s.repository.GetCategory(ctx, id)
}

func (s *service) CreateCategory(ctx context.Context, req CreateCategoryRequest, actor Identity) (*Category, error) {
	if !actor.IsAdmin() {
		return nil, &AuthorizationError{UserID: actor.UserID, Op: "create category", Reason: "admin role required"}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "name", Message: "is required"}}}
	}
	color := strings.TrimSpace(req.Color)
	if color == "" {
		color = DefaultCategoryColor
	}

	now := s.now()
	category := &Category{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Icon:        req.Icon,
		Color:       color,
		Image:       req.Image,
		Featured:    req.Featured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repository.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Favorites and profile

func (s *service) ToggleFavorite(ctx context.Context, user Identity, entryID uuid.UUID) ([]uuid.UUID, error) {
	if user.UserID == uuid.Nil {
		return nil, &AuthorizationError{Op: "favorite", Reason: "authentication required"}
	}
	if _, err := s.repository.GetEntry(ctx, entryID); err != nil {
		return nil, err
	}
	return s.repository.ToggleFavorite(ctx, user.UserID, entryID)
}

func (s *service) GetProfile(ctx context.Context, user Identity) (*Profile, error) {
	favoriteIDs, err := s.repository.ListFavorites(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	favorites, err := s.repository.GetEntriesByIDs(ctx, favoriteIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}

	contributor := user.UserID
	contributions, _, err := s.repository.ListEntries(ctx, EntryFilter{ContributedBy: &contributor})
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}

	profile := &Profile{UserID: user.UserID, Role: user.Role}
	if profile.Favorites, err = s.views(ctx, favorites); err != nil {
		return nil, err
	}
	if profile.Contributions, err = s.views(ctx, contributions); err != nil {
		return nil, err
	}
	return profile, nil
}

// Helpers

// storeImages turns uploads into content references. On failure every
// reference already stored is removed again.
func (s *service) storeImages(ctx context.Context, entryID uuid.UUID, uploads []ImageUpload) ([]Image, error) {
	images := make([]Image, 0, len(uploads))
	for i, u := range uploads {
		key := fmt.Sprintf("entries/%s/%d%s", entryID, i, strings.ToLower(filepath.Ext(u.Filename)))
		ref, err := s.imageStore.Put(ctx, key, u)
		if err != nil {
			s.discardImages(ctx, entryID, images)
			return nil, &StorageError{Backend: s.imageStore.Name(), Key: key, Op: "put", Err: err}
		}
		images = append(images, Image{
			URL:      ref,
			Caption:  u.Caption,
			Filename: u.Filename,
			Size:     u.Size(),
		})
	}
	return images, nil
}

// discardImages deletes stored references, logging failures.
func (s *service) discardImages(ctx context.Context, entryID uuid.UUID, images []Image) {
	for _, img := range images {
		if err := s.imageStore.Delete(ctx, img.URL); err != nil {
			s.logger.Warnf("failed to delete image %s of entry %s from %s: %v", img.Filename, entryID, s.imageStore.Name(), err)
		}
	}
}

func (s *service) view(ctx context.Context, entry *Entry) (*EntryView, error) {
	views, err := s.views(ctx, []*Entry{entry})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// views joins entries with their category summaries.
func (s *service) views(ctx context.Context, entries []*Entry) ([]*EntryView, error) {
	ids := make([]uuid.UUID, 0, len(entries))
	seen := make(map[uuid.UUID]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.CategoryID]; ok {
			continue
		}
		seen[e.CategoryID] = struct{}{}
		ids = append(ids, e.CategoryID)
	}

	categories, err := s.repository.GetCategoriesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	out := make([]*EntryView, 0, len(entries))
	for _, e := range entries {
		v := &EntryView{Entry: e}
		if c, ok := categories[e.CategoryID]; ok {
			v.Category = c.Summary()
		}
		out = append(out, v)
	}
	return out, nil
}

// parseCategoryField validates a raw category id into verr.
func parseCategoryField(verr *ValidationError, raw string) (uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Add("category", "is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		verr.Add("category", "must be a valid category id")
		return uuid.Nil, false
	}
	return id, true
}
