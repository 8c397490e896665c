// Package violations implements the violation reporting workflow: scoped
// listing, create and partial update guards, photo evidence, export and
// analytics.
package violations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Progress is the workflow status of a violation.
type Progress string

const (
	ProgressPending    Progress = "pending"
	ProgressInProgress Progress = "in_progress"
	ProgressCompleted  Progress = "completed"
)

// Valid reports whether p is a known status.
func (p Progress) Valid() bool {
	switch p {
	case ProgressPending, ProgressInProgress, ProgressCompleted:
		return true
	}
	return false
}

// Photo is a stored evidence file attached to a violation.
type Photo struct {
	ID          int64     `json:"id"`
	ViolationID int64     `json:"violation_id"`
	Filename    string    `json:"filename"`
	StoredPath  string    `json:"-"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	UploadedBy  int64     `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Violation is a workplace incident report.
type Violation struct {
	ID               int64      `json:"id"`
	BranchID         int64      `json:"branch_id"`
	BranchName       string     `json:"branch_name,omitempty"`
	UserID           int64      `json:"user_id"`
	AuthorName       string     `json:"author_name,omitempty"`
	ProcessingDate   time.Time  `json:"processing_date"`
	ProcessedDate    *time.Time `json:"processed_date"`
	DVR              string     `json:"dvr"`
	Camera           string     `json:"camera"`
	IncidentLocation string     `json:"incident_location"`
	Category         string     `json:"category"`
	CategoryComment  string     `json:"category_comment"`
	FactIdentifier   string     `json:"fact_identifier"`
	Progress         Progress   `json:"progress"`
	Responsibility   *string    `json:"responsibility"`
	Fullname         *string    `json:"fullname"`
	FineAmount       *float64   `json:"fine_amount"`
	Comment          *string    `json:"comment"`
	Photos           []Photo    `json:"photos"`
	// PhotoURL is the comma-joined photo URL list older clients read. It is
	// derived from Photos and never stored.
	PhotoURL  string    `json:"photo_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (v *Violation) setPhotos(photos []Photo) {
	v.Photos = photos
	if v.Photos == nil {
		v.Photos = []Photo{}
	}
	urls := make([]string, len(v.Photos))
	for i, p := range v.Photos {
		urls[i] = p.URL
	}
	v.PhotoURL = strings.Join(urls, ",")
}

// CreateInput is the create payload. Required fields are checked in the
// order listed by requiredFields.
type CreateInput struct {
	BranchID         FlexInt   `json:"branch_id"`
	DVR              string    `json:"dvr" validate:"max=100"`
	Camera           string    `json:"camera" validate:"max=100"`
	IncidentLocation string    `json:"incident_location" validate:"max=255"`
	Category         string    `json:"category" validate:"max=255"`
	CategoryComment  string    `json:"category_comment" validate:"max=2000"`
	FactIdentifier   string    `json:"fact_identifier" validate:"max=255"`
	ProcessingDate   *FlexTime `json:"processing_date"`
	ProcessedDate    *FlexTime `json:"processed_date"`
	UserID           FlexInt   `json:"user_id"`
}

type namedValue struct {
	name  string
	value string
}

// requiredFields returns the create fields that must be non-empty, in the
// order they are reported.
func (in CreateInput) requiredFields() []namedValue {
	branch := ""
	if in.BranchID > 0 {
		branch = strconv.FormatInt(int64(in.BranchID), 10)
	}
	return []namedValue{
		{"branch_id", branch},
		{"dvr", in.DVR},
		{"camera", in.Camera},
		{"incident_location", in.IncidentLocation},
		{"category", in.Category},
		{"fact_identifier", in.FactIdentifier},
	}
}

// UpdateInput is the typed partial update. Only these fields can change;
// any other key in the request body is ignored.
type UpdateInput struct {
	Responsibility Optional[string]   `json:"responsibility"`
	Fullname       Optional[string]   `json:"fullname"`
	FineAmount     Optional[Amount]   `json:"fine_amount"`
	Comment        Optional[string]   `json:"comment"`
	Progress       Optional[Progress] `json:"progress"`
	ProcessedDate  Optional[FlexTime] `json:"processed_date"`
}

// Empty reports whether no field was supplied.
func (in UpdateInput) Empty() bool {
	return !in.Responsibility.Set && !in.Fullname.Set && !in.FineAmount.Set &&
		!in.Comment.Set && !in.Progress.Set && !in.ProcessedDate.Set
}

// ListFilter narrows a list request.
type ListFilter struct {
	BranchIDs []int64
	Progress  Progress
	Search    string
	// SearchSanctions lets Search match the sanctioned employee name. The
	// service sets it from can_view_sanctions; request input never does.
	SearchSanctions bool
	Limit           int
	Offset          int
}

// ListResult is the list response payload.
type ListResult struct {
	Violations []Violation `json:"violations"`
	Count      int         `json:"count"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// Stats aggregates the scoped violation set.
type Stats struct {
	Total      int            `json:"total"`
	ByProgress map[string]int `json:"by_progress"`
	ByBranch   []BranchCount  `json:"by_branch"`
	FinesTotal float64        `json:"fines_total"`
}

// BranchCount is one row of the per-branch breakdown.
type BranchCount struct {
	BranchID   int64  `json:"branch_id"`
	BranchName string `json:"branch_name"`
	Count      int    `json:"count"`
}

// Optional distinguishes an absent JSON key (Set=false) from an explicit
// null or empty value (Null=true).
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON is only called when the key is present.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		o.Null = true
		return nil
	}
	if _, isString := any(o.Value).(string); !isString && bytes.Equal(trimmed, []byte(`""`)) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(trimmed, &o.Value)
}

// Some builds a set, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// FlexInt accepts both 12 and "12".
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = FlexInt(n)
	return nil
}

// Amount is a money value accepting numbers or numeric strings.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	s = strings.ReplaceAll(s, ",", ".")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	*a = Amount(n)
	return nil
}

// FlexTime accepts RFC3339 and the plain layouts sent by HTML date inputs.
type FlexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseFlexTime parses s with the accepted layouts. Layouts without a zone
// are read as UTC.
func ParseFlexTime(s string) (FlexTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range flexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FlexTime{Time: t}, nil
		}
	}
	return FlexTime{}, fmt.Errorf("invalid date %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*f = FlexTime{}
		return nil
	}
	parsed, err := ParseFlexTime(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexTime) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Time)
}
