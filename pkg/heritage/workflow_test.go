package heritage_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swadeshi/heritage/pkg/heritage"
	"github.com/swadeshi/heritage/pkg/heritage/imagestore/inline"
	"github.com/swadeshi/heritage/pkg/heritage/repo/memory"
)

func TestSubmitEntry_NormalizesTags(t *testing.T) {
	svc, _ := setupTestService(t)
	c := createCategory(t, svc, "Traditions")

	d := validDraft(c.ID)
	d.Tags = "a, b ,b,c"
	entry := submit(t, svc, newUser(), d)
	assert.Equal(t, []string{"a", "b", "c"}, entry.Tags)

	d.Tags = " , ,"
	entry = submit(t, svc, newUser(), d)
	assert.NotNil(t, entry.Tags)
	assert.Empty(t, entry.Tags)
}

func TestSubmitEntry_ReportsEveryFailingField(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.SubmitEntry(context.Background(), heritage.SubmitEntryRequest{
		Draft: heritage.EntryDraft{
			Title:       "   ",
			Description: "",
			CategoryID:  "",
			State:       "",
		},
		Contributor: newUser(),
	})

	var verr *heritage.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"title", "description", "category", "state"} {
		assert.True(t, verr.Has(field), "missing field error for %s", field)
	}
}

func TestSubmitEntry_CategoryReference(t *testing.T) {
	svc, _ := setupTestService(t)

	tests := []struct {
		name     string
		category string
		message  string
	}{
		{"malformed id", "not-a-uuid", "must be a valid category id"},
		{"unknown category", uuid.New().String(), "does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft(uuid.Nil)
			d.CategoryID = tt.category
			_, err := svc.SubmitEntry(context.Background(), heritage.SubmitEntryRequest{Draft: d, Contributor: newUser()})

			var verr *heritage.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, "category", verr.Fields[0].Field)
			assert.Equal(t, tt.message, verr.Fields[0].Message)
		})
	}
}

func TestSubmitEntry_ImageBoundaries(t *testing.T) {
	const mib = 1 << 20

	many := func(n int) []heritage.ImageUpload {
		images := make([]heritage.ImageUpload, n)
		for i := range images {
			images[i] = jpegUpload("photo.jpg", 16)
		}
		return images
	}

	tests := []struct {
		name       string
		images     []heritage.ImageUpload
		validation bool
		media      bool
	}{
		{name: "no images", images: nil},
		{name: "exactly five images", images: many(5)},
		{name: "six images", images: many(6), validation: true},
		{name: "exactly 5 MiB", images: []heritage.ImageUpload{jpegUpload("big.jpg", 5*mib)}},
		{name: "5 MiB plus one byte", images: []heritage.ImageUpload{jpegUpload("big.jpg", 5*mib+1)}, media: true},
		{name: "png", images: []heritage.ImageUpload{{Filename: "a.png", MimeType: "image/png", Data: []byte{1}}}},
		{name: "webp", images: []heritage.ImageUpload{{Filename: "a.webp", MimeType: "image/webp", Data: []byte{1}}}},
		{name: "svg type", images: []heritage.ImageUpload{{Filename: "a.svg", MimeType: "image/svg+xml", Data: []byte{1}}}, media: true},
		{name: "pdf disguised as jpg", images: []heritage.ImageUpload{{Filename: "a.jpg", MimeType: "application/pdf", Data: []byte{1}}}, media: true},
		{name: "jpeg type with exe extension", images: []heritage.ImageUpload{{Filename: "a.exe", MimeType: "image/jpeg", Data: []byte{1}}}, media: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := setupTestService(t)
			c := createCategory(t, svc, "Monuments")

			entry, err := svc.SubmitEntry(context.Background(), heritage.SubmitEntryRequest{
				Draft:       validDraft(c.ID),
				Images:      tt.images,
				Contributor: newUser(),
			})

			switch {
			case tt.validation:
				var verr *heritage.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.True(t, verr.Has("images"))
			case tt.media:
				var merr *heritage.UnsupportedMediaError
				require.ErrorAs(t, err, &merr)
			default:
				require.NoError(t, err)
				require.Len(t, entry.Images, len(tt.images))
				for i, img := range entry.Images {
					assert.Equal(t, tt.images[i].Size(), img.Size)
					assert.Equal(t, tt.images[i].Filename, img.Filename)
					mimeType, data, err := inline.Decode(img.URL)
					require.NoError(t, err)
					assert.Equal(t, tt.images[i].MimeType, mimeType)
					assert.Equal(t, tt.images[i].Data, data)
				}
				return
			}

			// rejected submissions leave no trace
			got, err := repo.GetCategory(context.Background(), c.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Count)
		})
	}
}

func TestSubmitEntry_CaptionsDefaultEmpty(t *testing.T) {
	svc, _ := setupTestService(t)
	c := createCategory(t, svc, "Monuments")

	withCaption := jpegUpload("front.jpg", 8)
	withCaption.Caption = "Main gate"
	entry, err := svc.SubmitEntry(context.Background(), heritage.SubmitEntryRequest{
		Draft:       validDraft(c.ID),
		Images:      []heritage.ImageUpload{withCaption, jpegUpload("side.jpg", 8)},
		Contributor: newUser(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Main gate", entry.Images[0].Caption)
	assert.Equal(t, "", entry.Images[1].Caption)
}

func TestSubmitEntry_Policy(t *testing.T) {
	tests := []struct {
		policy heritage.Policy
		want   heritage.Status
	}{
		{heritage.PolicyAutoPublish, heritage.StatusActive},
		{heritage.PolicyModerationQueue, heritage.StatusPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			svc, _ := setupTestService(t, heritage.WithPolicy(tt.policy))
			c := createCategory(t, svc, "Festivals")

			contributor := newUser()
			entry := submit(t, svc, contributor, validDraft(c.ID))
			assert.Equal(t, tt.want, entry.Status)
			assert.Equal(t, contributor.UserID, entry.ContributedBy)
			assert.Equal(t, 0, entry.Likes)
			assert.Equal(t, int64(0), entry.Views)
			assert.Empty(t, entry.LikedBy)
			assert.False(t, entry.Featured)
			assert.False(t, entry.Verified)
		})
	}
}

func TestSubmitEntry_IncrementsCategoryCount(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	c := createCategory(t, svc, "Cuisine")

	for i := 0; i < 3; i++ {
		submit(t, svc, newUser(), validDraft(c.ID))
	}

	got, err := svc.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)
}

// recordingStore is an ImageStore that remembers deletions and can fail Put.
type recordingStore struct {
	mu      sync.Mutex
	puts    int
	failAt  int // 1-based Put call that fails; 0 never fails
	deleted []string
}

func (s *recordingStore) Name() string { return "recording" }

func (s *recordingStore) Put(ctx context.Context, key string, upload heritage.ImageUpload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.puts == s.failAt {
		return "", errors.New("disk full")
	}
	return "mem://" + key, nil
}

func (s *recordingStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ref)
	return nil
}

// failingCreateRepo fails every CreateEntry.
type failingCreateRepo struct {
	heritage.Repository
}

func (r failingCreateRepo) CreateEntry(ctx context.Context, entry *heritage.Entry) error {
	return errors.New("connection reset")
}

func TestSubmitEntry_CompensatesStoredImages(t *testing.T) {
	ctx := context.Background()

	t.Run("persistence failure deletes stored images", func(t *testing.T) {
		store := &recordingStore{}
		repo := memory.New()
		svc, err := heritage.New(
			heritage.WithRepository(failingCreateRepo{Repository: repo}),
			heritage.WithImageStore(store),
		)
		require.NoError(t, err)
		c := createCategory(t, svc, "Monuments")

		_, err = svc.SubmitEntry(ctx, heritage.SubmitEntryRequest{
			Draft:       validDraft(c.ID),
			Images:      []heritage.ImageUpload{jpegUpload("a.jpg", 4), jpegUpload("b.jpg", 4)},
			Contributor: newUser(),
		})
		var eerr *heritage.EntryError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, "create", eerr.Op)
		assert.Len(t, store.deleted, 2)

		got, err := repo.GetCategory(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Count)
	})

	t.Run("image store failure deletes earlier images", func(t *testing.T) {
		store := &recordingStore{failAt: 3}
		svc, err := heritage.New(
			heritage.WithRepository(memory.New()),
			heritage.WithImageStore(store),
		)
		require.NoError(t, err)
		c := createCategory(t, svc, "Monuments")

		_, err = svc.SubmitEntry(ctx, heritage.SubmitEntryRequest{
			Draft:       validDraft(c.ID),
			Images:      []heritage.ImageUpload{jpegUpload("a.jpg", 4), jpegUpload("b.jpg", 4), jpegUpload("c.jpg", 4)},
			Contributor: newUser(),
		})
		var serr *heritage.StorageError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "recording", serr.Backend)
		assert.Equal(t, "put", serr.Op)
		assert.Len(t, store.deleted, 2)
		for _, ref := range store.deleted {
			assert.True(t, strings.HasPrefix(ref, "mem://entries/"))
		}
	})
}

func TestModeration(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t, heritage.WithPolicy(heritage.PolicyModerationQueue))
	c := createCategory(t, svc, "Literature")

	t.Run("approve publishes pending entry", func(t *testing.T) {
		entry := submit(t, svc, newUser(), validDraft(c.ID))

		approved, err := svc.ApproveEntry(ctx, entry.ID, adminID)
		require.NoError(t, err)
		assert.Equal(t, heritage.StatusActive, approved.Status)
		assert.True(t, approved.UpdatedAt.After(entry.UpdatedAt), "moderation stamps updated_at")

		_, err = svc.ApproveEntry(ctx, entry.ID, adminID)
		assert.ErrorIs(t, err, heritage.ErrInvalidTransition)

		_, err = svc.RejectEntry(ctx, entry.ID, adminID)
		assert.ErrorIs(t, err, heritage.ErrInvalidTransition)
	})

	t.Run("reject archives pending entry", func(t *testing.T) {
		entry := submit(t, svc, newUser(), validDraft(c.ID))

		rejected, err := svc.RejectEntry(ctx, entry.ID, adminID)
		require.NoError(t, err)
		assert.Equal(t, heritage.StatusArchived, rejected.Status)

		_, err = svc.ApproveEntry(ctx, entry.ID, adminID)
		assert.ErrorIs(t, err, heritage.ErrInvalidTransition)
	})

	t.Run("requires admin", func(t *testing.T) {
		owner := newUser()
		entry := submit(t, svc, owner, validDraft(c.ID))

		_, err := svc.ApproveEntry(ctx, entry.ID, owner)
		assert.ErrorIs(t, err, heritage.ErrForbidden)

		got, err := svc.RecordView(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, heritage.StatusPending, got.Status)
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := svc.ApproveEntry(ctx, uuid.New(), adminID)
		assert.ErrorIs(t, err, heritage.ErrEntryNotFound)
	})
}

func TestUpdateEntry_NonOwnerIsForbiddenAndEntryUnchanged(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	c := createCategory(t, svc, "Monuments")
	entry := submit(t, svc, newUser(), validDraft(c.ID))

	title := "Vandalised"
	_, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
		ID:    entry.ID,
		Patch: heritage.EntryPatch{Title: &title},
		Actor: newUser(),
	})
	var aerr *heritage.AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.ErrorIs(t, err, heritage.ErrForbidden)

	stored, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Title, stored.Title)
	assert.Equal(t, entry.UpdatedAt, stored.UpdatedAt)
}

func TestUpdateEntry_OwnerShallowMerge(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	c := createCategory(t, svc, "Monuments")
	owner := newUser()

	d := validDraft(c.ID)
	d.Tags = "sikh, gurdwara"
	entry := submit(t, svc, owner, d)

	title := "Sri Harmandir Sahib"
	tags := []string{" golden ", "temple", "golden", ""}
	updated, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
		ID:    entry.ID,
		Patch: heritage.EntryPatch{Title: &title, Tags: &tags},
		Actor: owner,
	})
	require.NoError(t, err)

	assert.Equal(t, "Sri Harmandir Sahib", updated.Title)
	assert.Equal(t, []string{"golden", "temple"}, updated.Tags)
	assert.Equal(t, entry.Description, updated.Description)
	assert.Equal(t, entry.State, updated.State)
	assert.Equal(t, entry.City, updated.City)
	assert.True(t, updated.UpdatedAt.After(entry.UpdatedAt))
	require.NotNil(t, updated.Category)
	assert.Equal(t, c.ID, updated.Category.ID)
}

func TestUpdateEntry_Validation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	c := createCategory(t, svc, "Monuments")
	owner := newUser()
	entry := submit(t, svc, owner, validDraft(c.ID))

	blank := "  "
	unknown := uuid.New().String()
	_, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
		ID:    entry.ID,
		Patch: heritage.EntryPatch{Title: &blank, State: &blank, CategoryID: &unknown},
		Actor: owner,
	})
	var verr *heritage.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("title"))
	assert.True(t, verr.Has("state"))
	assert.True(t, verr.Has("category"))
}

func TestUpdateEntry_ModerationFieldsAreAdminOnly(t *testing.T) {
	svc, _ := setupTestService(t, heritage.WithPolicy(heritage.PolicyModerationQueue))
	ctx := context.Background()
	c := createCategory(t, svc, "Monuments")
	owner := newUser()
	entry := submit(t, svc, owner, validDraft(c.ID))

	yes := true
	active := heritage.StatusActive
	for name, patch := range map[string]heritage.EntryPatch{
		"featured": {Featured: &yes},
		"verified": {Verified: &yes},
		"status":   {Status: &active},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{ID: entry.ID, Patch: patch, Actor: owner})
			assert.ErrorIs(t, err, heritage.ErrForbidden)
		})
	}

	t.Run("admin publishes through status", func(t *testing.T) {
		updated, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
			ID:    entry.ID,
			Patch: heritage.EntryPatch{Status: &active, Verified: &yes},
			Actor: adminID,
		})
		require.NoError(t, err)
		assert.Equal(t, heritage.StatusActive, updated.Status)
		assert.True(t, updated.Verified)
	})

	t.Run("admin status change follows transitions", func(t *testing.T) {
		pending := heritage.StatusPending
		_, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
			ID:    entry.ID,
			Patch: heritage.EntryPatch{Status: &pending},
			Actor: adminID,
		})
		assert.ErrorIs(t, err, heritage.ErrInvalidTransition)
	})

	t.Run("unknown status value", func(t *testing.T) {
		bogus := heritage.Status("deleted")
		_, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
			ID:    entry.ID,
			Patch: heritage.EntryPatch{Status: &bogus},
			Actor: adminID,
		})
		var verr *heritage.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("status"))
	})
}

func TestUpdateEntry_CategoryMoveAdjustsCounts(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	from := createCategory(t, svc, "Traditions")
	to := createCategory(t, svc, "Festivals")
	owner := newUser()
	entry := submit(t, svc, owner, validDraft(from.ID))

	target := to.ID.String()
	updated, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
		ID:    entry.ID,
		Patch: heritage.EntryPatch{CategoryID: &target},
		Actor: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, to.ID, updated.CategoryID)

	gotFrom, err := svc.GetCategory(ctx, from.ID)
	require.NoError(t, err)
	gotTo, err := svc.GetCategory(ctx, to.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, gotFrom.Count)
	assert.Equal(t, 1, gotTo.Count)
}

// racingUpdateRepo runs beforeWrite once, ahead of the first UpdateEntry it
// sees, so another writer commits between a read and its write.
type racingUpdateRepo struct {
	heritage.Repository
	fired       bool
	beforeWrite func()
}

func (r *racingUpdateRepo) UpdateEntry(ctx context.Context, entry *heritage.Entry, unmodifiedSince time.Time) error {
	if !r.fired {
		r.fired = true
		r.beforeWrite()
	}
	return r.Repository.UpdateEntry(ctx, entry, unmodifiedSince)
}

// staleUpdateRepo reports every UpdateEntry as conflicting.
type staleUpdateRepo struct {
	heritage.Repository
	calls int
}

func (r *staleUpdateRepo) UpdateEntry(ctx context.Context, entry *heritage.Entry, unmodifiedSince time.Time) error {
	r.calls++
	return heritage.ErrEntryChanged
}

// failingUpdateRepo fails every UpdateEntry.
type failingUpdateRepo struct {
	heritage.Repository
}

func (r failingUpdateRepo) UpdateEntry(ctx context.Context, entry *heritage.Entry, unmodifiedSince time.Time) error {
	return errors.New("connection reset")
}

func TestUpdateEntry_ConcurrentAdminEditIsKept(t *testing.T) {
	ctx := context.Background()
	repo := &racingUpdateRepo{Repository: memory.New()}
	svc, err := heritage.New(
		heritage.WithRepository(repo),
		heritage.WithImageStore(inline.New()),
		heritage.WithClock(steppingClock()),
	)
	require.NoError(t, err)
	c := createCategory(t, svc, "Monuments")
	owner := newUser()
	entry := submit(t, svc, owner, validDraft(c.ID))

	yes := true
	repo.beforeWrite = func() {
		_, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
			ID:    entry.ID,
			Patch: heritage.EntryPatch{Featured: &yes},
			Actor: adminID,
		})
		require.NoError(t, err)
	}

	title := "Sri Harmandir Sahib"
	updated, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
		ID:    entry.ID,
		Patch: heritage.EntryPatch{Title: &title},
		Actor: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, "Sri Harmandir Sahib", updated.Title)
	assert.True(t, updated.Featured, "the admin's featured flag survives the owner's edit")

	stored, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sri Harmandir Sahib", stored.Title)
	assert.True(t, stored.Featured)
}

func TestUpdateEntry_PersistentConflictIsReported(t *testing.T) {
	ctx := context.Background()
	repo := &staleUpdateRepo{Repository: memory.New()}
	svc, err := heritage.New(
		heritage.WithRepository(repo),
		heritage.WithImageStore(inline.New()),
	)
	require.NoError(t, err)
	c := createCategory(t, svc, "Monuments")
	owner := newUser()
	entry := submit(t, svc, owner, validDraft(c.ID))

	title := "Retitled"
	_, err = svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
		ID:    entry.ID,
		Patch: heritage.EntryPatch{Title: &title},
		Actor: owner,
	})
	assert.ErrorIs(t, err, heritage.ErrEntryChanged)
	assert.Equal(t, 3, repo.calls)
}

func TestUpdateEntry_StatusAndFieldsApplyTogether(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	sink := &recordingSink{}
	svc, err := heritage.New(
		heritage.WithRepository(failingUpdateRepo{Repository: inner}),
		heritage.WithImageStore(inline.New()),
		heritage.WithEventSink(sink),
		heritage.WithPolicy(heritage.PolicyModerationQueue),
	)
	require.NoError(t, err)
	c := createCategory(t, svc, "Monuments")
	entry := submit(t, svc, newUser(), validDraft(c.ID))

	active := heritage.StatusActive
	title := "Published title"
	_, err = svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
		ID:    entry.ID,
		Patch: heritage.EntryPatch{Status: &active, Title: &title},
		Actor: adminID,
	})
	var eerr *heritage.EntryError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "update", eerr.Op)

	stored, err := inner.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, heritage.StatusPending, stored.Status, "a failed update leaves the status alone")
	assert.Equal(t, entry.Title, stored.Title)
	assert.Equal(t, []string{"submitted"}, sink.events)
}

func TestUpdateEntry_StatusChangeEmitsEvent(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := setupTestService(t,
		heritage.WithEventSink(sink),
		heritage.WithPolicy(heritage.PolicyModerationQueue),
	)
	ctx := context.Background()
	c := createCategory(t, svc, "Monuments")
	entry := submit(t, svc, newUser(), validDraft(c.ID))

	active := heritage.StatusActive
	title := "Published title"
	updated, err := svc.UpdateEntry(ctx, heritage.UpdateEntryRequest{
		ID:    entry.ID,
		Patch: heritage.EntryPatch{Status: &active, Title: &title},
		Actor: adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, heritage.StatusActive, updated.Status)
	assert.Equal(t, "Published title", updated.Title)
	assert.Equal(t, []string{"submitted", "status:pending->active"}, sink.events)
}

func TestDeleteEntry_DecrementsCategoryCount(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	c := createCategory(t, svc, "Music & Dance")

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		ids = append(ids, submit(t, svc, newUser(), validDraft(c.ID)).ID)
	}
	before, err := svc.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 3, before.Count)

	err = svc.DeleteEntry(ctx, ids[0], newUser())
	assert.ErrorIs(t, err, heritage.ErrForbidden)

	require.NoError(t, svc.DeleteEntry(ctx, ids[0], adminID))

	after, err := svc.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Count)

	_, err = svc.GetEntry(ctx, ids[0])
	assert.ErrorIs(t, err, heritage.ErrEntryNotFound)

	err = svc.DeleteEntry(ctx, ids[0], adminID)
	assert.ErrorIs(t, err, heritage.ErrEntryNotFound)
}

// recordingSink captures event names and can fail every call.
type recordingSink struct {
	mu     sync.Mutex
	events []string
	fail   bool
}

func (s *recordingSink) record(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
	if s.fail {
		return errors.New("broker unavailable")
	}
	return nil
}

func (s *recordingSink) EntrySubmitted(ctx context.Context, entry *heritage.Entry) error {
	return s.record("submitted")
}

func (s *recordingSink) EntryStatusChanged(ctx context.Context, entry *heritage.Entry, from heritage.Status) error {
	return s.record("status:" + string(from) + "->" + string(entry.Status))
}

func (s *recordingSink) EntryDeleted(ctx context.Context, entryID uuid.UUID) error {
	return s.record("deleted")
}

func (s *recordingSink) EntryLiked(ctx context.Context, entryID, userID uuid.UUID, result heritage.LikeResult) error {
	return s.record("liked")
}

func TestEventSink(t *testing.T) {
	for _, fail := range []bool{false, true} {
		name := "sink succeeds"
		if fail {
			name = "sink failures do not fail operations"
		}
		t.Run(name, func(t *testing.T) {
			sink := &recordingSink{fail: fail}
			svc, _ := setupTestService(t,
				heritage.WithEventSink(sink),
				heritage.WithPolicy(heritage.PolicyModerationQueue),
			)
			ctx := context.Background()
			c := createCategory(t, svc, "Monuments")

			entry := submit(t, svc, newUser(), validDraft(c.ID))
			_, err := svc.ApproveEntry(ctx, entry.ID, adminID)
			require.NoError(t, err)
			_, err = svc.ToggleLike(ctx, entry.ID, newUser())
			require.NoError(t, err)
			require.NoError(t, svc.DeleteEntry(ctx, entry.ID, adminID))

			assert.Equal(t, []string{"submitted", "status:pending->active", "liked", "deleted"}, sink.events)
		})
	}
}
