package heritage

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Pagination defaults. Out-of-range or malformed values fall back to these.
const (
	DefaultPage  = 1
	DefaultLimit = 12
	MaxLimit     = 100
)

// ListQuery is a parsed list request.
type ListQuery struct {
	Page          int
	Limit         int
	CategoryID    *uuid.UUID
	State         string
	Search        string
	Status        Status // empty means active
	Featured      bool
	ContributedBy *uuid.UUID
}

// ParseListQuery resolves raw transport parameters. Pagination never fails;
// a malformed category, contributor or status is a ValidationError.
func ParseListQuery(raw RawListQuery) (ListQuery, error) {
	q := ListQuery{
		Page:     parseBounded(raw.Page, DefaultPage, 1, 0),
		Limit:    parseBounded(raw.Limit, DefaultLimit, 1, MaxLimit),
		State:    strings.TrimSpace(raw.State),
		Search:   strings.TrimSpace(raw.Search),
		Featured: raw.Featured == "true",
	}

	verr := &ValidationError{}
	if v := strings.TrimSpace(raw.Category); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			verr.Add("category", "must be a valid category id")
		} else {
			q.CategoryID = &id
		}
	}
	if v := strings.TrimSpace(raw.ContributedBy); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			verr.Add("contributed_by", "must be a valid user id")
		} else {
			q.ContributedBy = &id
		}
	}
	if v := strings.TrimSpace(raw.Status); v != "" {
		s := Status(strings.ToLower(v))
		if !s.IsValid() {
			verr.Add("status", "must be one of pending, active, archived")
		} else {
			q.Status = s
		}
	}
	if err := verr.OrNil(); err != nil {
		return ListQuery{}, err
	}
	return q, nil
}

// parseBounded returns def when v is not an integer in [min, max]. max <= 0
// means unbounded.
func parseBounded(v string, def, min, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < min || (max > 0 && n > max) {
		return def
	}
	return n
}

// visibleStatus applies the default-visibility rule: active unless a status
// is requested, and anything other than active needs the capability.
func (q ListQuery) visibleStatus(access Access) (Status, error) {
	if q.Status == "" || q.Status == StatusActive {
		return StatusActive, nil
	}
	if !access.IncludeUnpublished {
		return "", &AuthorizationError{Op: "list", Reason: "status filter " + string(q.Status) + " requires moderation access"}
	}
	return q.Status, nil
}

// filter builds the store predicate for q.
func (q ListQuery) filter(status Status) EntryFilter {
	return EntryFilter{
		Status:        status,
		CategoryID:    q.CategoryID,
		State:         q.State,
		SearchTerms:   SearchTerms(q.Search),
		Featured:      q.Featured,
		ContributedBy: q.ContributedBy,
		Offset:        (q.Page - 1) * q.Limit,
		Limit:         q.Limit,
	}
}

// SearchTerms splits free text into lower-cased, de-duplicated word terms.
// Terms are OR-combined by the stores.
func SearchTerms(s string) []string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}

// NewPagination computes the page count for total matches.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
