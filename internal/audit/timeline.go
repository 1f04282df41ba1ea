// Package audit reads back the audit trail written by every successful
// content and principal change.
package audit

import "time"

// TimelineFilters narrows the audit timeline. To is exclusive.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit entry with the actor's display name resolved.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id,omitempty"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo is the cursor-less paging of the timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps one page of the timeline.
type Result struct {
	Rows   []TimelineRow `json:"items"`
	Paging PagingInfo    `json:"paging"`
}

// matches applies f to one row. Used by the in-memory log.
func (f TimelineFilters) matches(row TimelineRow) bool {
	if !f.From.IsZero() && row.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !row.At.Before(f.To) {
		return false
	}
	if f.ActorID != 0 && row.ActorID != f.ActorID {
		return false
	}
	if f.Entity != "" && row.Entity != f.Entity {
		return false
	}
	if f.Action != "" && row.Action != f.Action {
		return false
	}
	return true
}
