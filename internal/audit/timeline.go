package audit

import (
	"encoding/json"
	"time"
)

// TimelineFilters holds the filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit_logs entry joined with the actor's login.
type TimelineRow struct {
	ID         int64           `json:"id"`
	At         time.Time       `json:"at"`
	ActorID    int64           `json:"actor_id"`
	ActorLogin string          `json:"actor_login,omitempty"`
	Action     string          `json:"action"`
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entity_id"`
	Meta       json.RawMessage `json:"meta,omitempty"`
}

// PagingInfo holds simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps timeline rows with paging.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
