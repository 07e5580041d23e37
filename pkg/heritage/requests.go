package heritage

import "github.com/google/uuid"

// ImageUpload is one image attached to a submission.
type ImageUpload struct {
	Filename string
	MimeType string
	Caption  string
	Data     []byte
}

// Size returns the payload length in bytes.
func (u ImageUpload) Size() int64 {
	return int64(len(u.Data))
}

// EntryDraft holds the text fields of a submission. CategoryID is kept as
// the raw string so a malformed id is reported as a field error.
type EntryDraft struct {
	Title                  string
	Description            string
	DetailedDescription    string
	CategoryID             string
	Subcategory            string
	State                  string
	City                   string
	HistoricalSignificance string
	CulturalImportance     string
	YearEstablished        string
	Tags                   string // comma separated
	Location               *Location
}

// SubmitEntryRequest contains parameters for a new contribution
type SubmitEntryRequest struct {
	Draft       EntryDraft
	Images      []ImageUpload
	Contributor Identity
}

// EntryPatch is a shallow merge onto an existing entry. Nil fields are left
// unchanged. Status, Featured and Verified require an admin actor.
type EntryPatch struct {
	Title                  *string   `json:"title,omitempty"`
	Description            *string   `json:"description,omitempty"`
	DetailedDescription    *string   `json:"detailed_description,omitempty"`
	CategoryID             *string   `json:"category_id,omitempty"`
	Subcategory            *string   `json:"subcategory,omitempty"`
	State                  *string   `json:"state,omitempty"`
	City                   *string   `json:"city,omitempty"`
	HistoricalSignificance *string   `json:"historical_significance,omitempty"`
	CulturalImportance     *string   `json:"cultural_importance,omitempty"`
	YearEstablished        *string   `json:"year_established,omitempty"`
	Tags                   *[]string `json:"tags,omitempty"`
	Location               *Location `json:"location,omitempty"`
	Status                 *Status   `json:"status,omitempty"`
	Featured               *bool     `json:"featured,omitempty"`
	Verified               *bool     `json:"verified,omitempty"`
}

// moderates reports whether the patch touches admin-only fields.
func (p EntryPatch) moderates() bool {
	return p.Status != nil || p.Featured != nil || p.Verified != nil
}

// UpdateEntryRequest contains parameters for updating an entry
type UpdateEntryRequest struct {
	ID    uuid.UUID
	Patch EntryPatch
	Actor Identity
}

// CreateCategoryRequest contains parameters for a new category
type CreateCategoryRequest struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
	Color       string `json:"color" yaml:"color"`
	Image       string `json:"image" yaml:"image"`
	Featured    bool   `json:"featured" yaml:"featured"`
}

// RawListQuery is an unparsed list request as it arrives from a transport.
type RawListQuery struct {
	Page          string
	Limit         string
	Category      string
	State         string
	Search        string
	Status        string
	Featured      string
	ContributedBy string
}
