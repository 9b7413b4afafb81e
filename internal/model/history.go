package model

import "time"

// Action labels a history entry.
type Action string

const (
	ActionCreated         Action = "CREATED"
	ActionUpdated         Action = "UPDATED"
	ActionStatusChanged   Action = "STATUS_CHANGED"
	ActionPriorityChanged Action = "PRIORITY_CHANGED"
	ActionBaselined       Action = "BASELINED"
	ActionTaskLinked      Action = "TASK_LINKED"
	ActionTestCaseLinked  Action = "TEST_CASE_LINKED"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks whether the action is a known value.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionStatusChanged, ActionPriorityChanged,
		ActionBaselined, ActionTaskLinked, ActionTestCaseLinked:
		return true
	}
	return false
}

// Versioned reports whether entries with this action commit a new
// requirement version. Baseline and link entries annotate the current
// version instead of creating one.
func (a Action) Versioned() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionStatusChanged, ActionPriorityChanged:
		return true
	}
	return false
}

// Change is the before/after value of a single field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Changes maps field name to its change.
type Changes map[string]Change

// HistoryEntry is an immutable audit record for a requirement.
type HistoryEntry struct {
	ID            int64     `json:"id"`
	RequirementID string    `json:"requirement_id"`
	UserID        string    `json:"user_id"`
	Action        Action    `json:"action"`
	Version       int       `json:"version"`
	Changes       Changes   `json:"changes"`
	Timestamp     time.Time `json:"timestamp"`
}
