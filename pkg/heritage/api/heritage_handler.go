package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/swadeshi/heritage/pkg/heritage"
)

const (
	// multipartMemory is how much of a form is buffered before spilling to disk
	multipartMemory = 8 << 20
	// formOverhead allows for text fields and multipart framing
	formOverhead = 1 << 20
)

// HeritageHandler handles HTTP requests for heritage entries
type HeritageHandler struct {
	handler
	limits heritage.MediaLimits
}

// NewHeritageHandler creates a new heritage handler
func NewHeritageHandler(base handler, limits heritage.MediaLimits) *HeritageHandler {
	return &HeritageHandler{handler: base, limits: limits}
}

// Routes returns the routes for heritage entries
func (h *HeritageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListEntries)
	r.With(RequireUser).Post("/", h.SubmitEntry)
	r.Get("/{id}", h.GetEntry)
	r.With(RequireUser).Put("/{id}", h.UpdateEntry)
	r.With(RequireAdmin).Delete("/{id}", h.DeleteEntry)

	r.With(RequireUser).Post("/{id}/like", h.ToggleLike)

	// Moderation
	r.With(RequireAdmin).Post("/{id}/approve", h.ApproveEntry)
	r.With(RequireAdmin).Post("/{id}/reject", h.RejectEntry)

	return r
}

// ListEntries returns one page of entries matching the query string
func (h *HeritageHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := heritage.ParseListQuery(heritage.RawListQuery{
		Page:          q.Get("page"),
		Limit:         q.Get("limit"),
		Category:      q.Get("category"),
		State:         q.Get("state"),
		Search:        q.Get("search"),
		Status:        q.Get("status"),
		Featured:      q.Get("featured"),
		ContributedBy: q.Get("contributed_by"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	identity, _ := IdentityFromContext(r.Context())
	result, err := h.service.ListEntries(r.Context(), query, heritage.Access{IncludeUnpublished: identity.IsAdmin()})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// GetEntry returns one entry and counts the view
func (h *HeritageHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, entry)
}

// SubmitEntry accepts a multipart contribution with up to MaxImages files
// in the "images" field
func (h *HeritageHandler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	limit := int64(h.limits.MaxImages+1)*h.limits.MaxImageBytes + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, r, err)
			return
		}
		badRequest(w, r, "body", "must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	draft, err := parseDraft(r.MultipartForm)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	images, err := h.readImages(r.MultipartForm)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entry, err := h.service.SubmitEntry(r.Context(), heritage.SubmitEntryRequest{
		Draft:       draft,
		Images:      images,
		Contributor: identity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, entry)
}

func formValue(form *multipart.Form, keys ...string) string {
	for _, key := range keys {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func parseDraft(form *multipart.Form) (heritage.EntryDraft, error) {
	draft := heritage.EntryDraft{
		Title:                  formValue(form, "title"),
		Description:            formValue(form, "description"),
		DetailedDescription:    formValue(form, "detailed_description", "detailedDescription"),
		CategoryID:             formValue(form, "category", "category_id"),
		Subcategory:            formValue(form, "subcategory"),
		State:                  formValue(form, "state"),
		City:                   formValue(form, "city"),
		HistoricalSignificance: formValue(form, "historical_significance", "historicalSignificance"),
		CulturalImportance:     formValue(form, "cultural_importance", "culturalImportance"),
		YearEstablished:        formValue(form, "year_established", "yearEstablished"),
		Tags:                   formValue(form, "tags"),
	}

	lat := strings.TrimSpace(formValue(form, "latitude"))
	lng := strings.TrimSpace(formValue(form, "longitude"))
	address := strings.TrimSpace(formValue(form, "address"))
	if lat == "" && lng == "" && address == "" {
		return draft, nil
	}

	loc := &heritage.Location{Address: address}
	verr := &heritage.ValidationError{}
	if lat != "" || lng != "" {
		var err error
		if loc.Latitude, err = strconv.ParseFloat(lat, 64); err != nil || loc.Latitude < -90 || loc.Latitude > 90 {
			verr.Add("latitude", "must be a number between -90 and 90")
		}
		if loc.Longitude, err = strconv.ParseFloat(lng, 64); err != nil || loc.Longitude < -180 || loc.Longitude > 180 {
			verr.Add("longitude", "must be a number between -180 and 180")
		}
	}
	if err := verr.OrNil(); err != nil {
		return draft, err
	}
	draft.Location = loc
	return draft, nil
}

// readImages loads each file, reading at most one byte past the size limit
// so oversized files are still reported by the service.
func (h *HeritageHandler) readImages(form *multipart.Form) ([]heritage.ImageUpload, error) {
	files := form.File["images"]
	captions := form.Value["captions"]

	uploads := make([]heritage.ImageUpload, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, h.limits.MaxImageBytes+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
		}

		mimeType := fh.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = http.DetectContentType(data)
		}

		upload := heritage.ImageUpload{
			Filename: fh.Filename,
			MimeType: mimeType,
			Data:     data,
		}
		if i < len(captions) {
			upload.Caption = strings.TrimSpace(captions[i])
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

// UpdateEntry applies a JSON patch
func (h *HeritageHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	var patch heritage.EntryPatch
	if err := render.DecodeJSON(r.Body, &patch); err != nil {
		badRequest(w, r, "body", "must be a JSON object")
		return
	}

	entry, err := h.service.UpdateEntry(r.Context(), heritage.UpdateEntryRequest{
		ID:    id,
		Patch: patch,
		Actor: identity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, entry)
}

// DeleteEntry removes an entry
func (h *HeritageHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	if err := h.service.DeleteEntry(r.Context(), id, identity); err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"message": "Heritage entry deleted"})
}

// ToggleLike flips the caller's like
func (h *HeritageHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	result, err := h.service.ToggleLike(r.Context(), id, identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// ApproveEntry publishes a pending entry
func (h *HeritageHandler) ApproveEntry(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.service.ApproveEntry)
}

// RejectEntry archives a pending entry
func (h *HeritageHandler) RejectEntry(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.service.RejectEntry)
}

type moderateFunc func(ctx context.Context, id uuid.UUID, actor heritage.Identity) (*heritage.EntryView, error)

func (h *HeritageHandler) moderate(w http.ResponseWriter, r *http.Request, op moderateFunc) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	entry, err := op(r.Context(), id, identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, entry)
}

func entryID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return pathID(w, r, "id")
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		badRequest(w, r, param, "must be a valid id")
		return uuid.Nil, false
	}
	return id, true
}
