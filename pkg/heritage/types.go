package heritage

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// IsValid reports whether s is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusArchived:
		return true
	}
	return false
}

// Policy decides the initial status of a new submission.
type Policy string

const (
	// PolicyAutoPublish creates submissions directly as active.
	PolicyAutoPublish Policy = "auto-publish"
	// PolicyModerationQueue creates submissions as pending until approved.
	PolicyModerationQueue Policy = "moderation-queue"
)

// IsValid reports whether p is a known publication policy.
func (p Policy) IsValid() bool {
	return p == PolicyAutoPublish || p == PolicyModerationQueue
}

// InitialStatus returns the status given to new submissions under p.
func (p Policy) InitialStatus() Status {
	if p == PolicyModerationQueue {
		return StatusPending
	}
	return StatusActive
}

// Role of an authenticated caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is a verified caller. It is produced by the transport layer from
// a validated token and passed into every mutating operation.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Access describes what a list caller may see.
type Access struct {
	// IncludeUnpublished allows filtering on statuses other than active.
	IncludeUnpublished bool
}

// Image is a stored image attached to an entry. URL is the content
// reference returned by the ImageStore (a data URI for inline storage).
type Image struct {
	URL      string `json:"url"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Location is an optional geocoordinate with a street address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Entry is a heritage item record.
type Entry struct {
	ID                     uuid.UUID   `json:"id"`
	Title                  string      `json:"title"`
	Description            string      `json:"description"`
	DetailedDescription    string      `json:"detailed_description,omitempty"`
	CategoryID             uuid.UUID   `json:"category_id"`
	Subcategory            string      `json:"subcategory,omitempty"`
	State                  string      `json:"state"`
	City                   string      `json:"city,omitempty"`
	Images                 []Image     `json:"images"`
	HistoricalSignificance string      `json:"historical_significance,omitempty"`
	CulturalImportance     string      `json:"cultural_importance,omitempty"`
	YearEstablished        string      `json:"year_established,omitempty"`
	Tags                   []string    `json:"tags"`
	Location               *Location   `json:"location,omitempty"`
	Status                 Status      `json:"status"`
	Featured               bool        `json:"featured"`
	Views                  int64       `json:"views"`
	Likes                  int         `json:"likes"`
	LikedBy                []uuid.UUID `json:"liked_by"`
	ContributedBy          uuid.UUID   `json:"contributed_by"`
	Verified               bool        `json:"verified"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Images != nil {
		c.Images = append(make([]Image, 0, len(e.Images)), e.Images...)
	}
	if e.Tags != nil {
		c.Tags = append(make([]string, 0, len(e.Tags)), e.Tags...)
	}
	if e.LikedBy != nil {
		c.LikedBy = append(make([]uuid.UUID, 0, len(e.LikedBy)), e.LikedBy...)
	}
	if e.Location != nil {
		loc := *e.Location
		c.Location = &loc
	}
	return &c
}

// LikedByUser reports whether user is in the entry's like set.
func (e *Entry) LikedByUser(user uuid.UUID) bool {
	for _, id := range e.LikedBy {
		if id == user {
			return true
		}
	}
	return false
}

// Category is a topical grouping with a denormalized entry count.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color"`
	Image       string    `json:"image,omitempty"`
	Featured    bool      `json:"featured"`
	Count       int       `json:"count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#6366f1"

// CategorySummary is the display subset of a category joined onto entries.
type CategorySummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Icon  string    `json:"icon,omitempty"`
	Color string    `json:"color"`
}

// Summary returns the display subset of c.
func (c *Category) Summary() *CategorySummary {
	return &CategorySummary{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color}
}

// EntryView is an entry joined with its category for display.
type EntryView struct {
	*Entry
	Category *CategorySummary `json:"category,omitempty"`
}

// Pagination describes the window of a list result.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ListResult is one page of entries.
type ListResult struct {
	Items      []*EntryView `json:"heritage"`
	Pagination Pagination   `json:"pagination"`
}

// CountRepair records one category count corrected by a recount.
type CountRepair struct {
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	From       int       `json:"from"`
	To         int       `json:"to"`
}

// LikeResult reports the like state after a toggle.
type LikeResult struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

// Profile is the caller's own view: favorites and contributions.
type Profile struct {
	UserID        uuid.UUID    `json:"user_id"`
	Role          Role         `json:"role"`
	Favorites     []*EntryView `json:"favorites"`
	Contributions []*EntryView `json:"contributions"`
}
