package model

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RequirementType categorizes a requirement.
type RequirementType string

const (
	TypeFunctional    RequirementType = "FUNCTIONAL"
	TypeNonFunctional RequirementType = "NON_FUNCTIONAL"
	TypeBusiness      RequirementType = "BUSINESS"
	TypeTechnical     RequirementType = "TECHNICAL"
)

// String returns the string representation of the requirement type.
func (t RequirementType) String() string {
	return string(t)
}

// IsValid checks whether the requirement type is a known value.
func (t RequirementType) IsValid() bool {
	switch t {
	case TypeFunctional, TypeNonFunctional, TypeBusiness, TypeTechnical:
		return true
	}
	return false
}

// Status represents the lifecycle state of a requirement.
type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusReview      Status = "REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusImplemented Status = "IMPLEMENTED"
	StatusVerified    Status = "VERIFIED"
	StatusClosed      Status = "CLOSED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusApproved, StatusImplemented, StatusVerified, StatusClosed:
		return true
	}
	return false
}

// Priority ranks a requirement.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid checks whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Requirement is the core traceability record.
type Requirement struct {
	ID                 string              `json:"id"`
	RequirementID      string              `json:"requirement_id"`
	ProjectID          string              `json:"project_id"`
	Title              string              `json:"title"`
	Description        string              `json:"description,omitempty"`
	AcceptanceCriteria []string            `json:"acceptance_criteria,omitempty"`
	Tags               []string            `json:"tags,omitempty"`
	Type               RequirementType     `json:"type"`
	Status             Status              `json:"status"`
	Priority           Priority            `json:"priority"`
	Source             string              `json:"source,omitempty"`
	EstimatedEffort    decimal.NullDecimal `json:"estimated_effort"`
	ActualEffort       decimal.NullDecimal `json:"actual_effort"`
	Epic               string              `json:"epic,omitempty"`
	Owner              string              `json:"owner,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	ParentID           *string             `json:"parent_id,omitempty"`
	Version            int                 `json:"version"`
	IsBaseline         bool                `json:"is_baseline"`
	BaselineVersion    *int                `json:"baseline_version,omitempty"`
	BaselineDate       *time.Time          `json:"baseline_date,omitempty"`
	CreatedBy          string              `json:"created_by,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Clone returns a deep copy of r so callers can build a proposed state
// without aliasing the current one.
func (r *Requirement) Clone() *Requirement {
	c := *r
	c.AcceptanceCriteria = slices.Clone(r.AcceptanceCriteria)
	c.Tags = slices.Clone(r.Tags)
	if r.ParentID != nil {
		p := *r.ParentID
		c.ParentID = &p
	}
	if r.BaselineVersion != nil {
		v := *r.BaselineVersion
		c.BaselineVersion = &v
	}
	if r.BaselineDate != nil {
		t := *r.BaselineDate
		c.BaselineDate = &t
	}
	return &c
}

// NormalizeTags trims, de-duplicates and sorts tags. Tags are a set; the
// sorted form keeps diffs and storage order-insensitive.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// RequirementFilter narrows ListRequirements results.
type RequirementFilter struct {
	ProjectID string
	Status    []Status
	Type      []RequirementType
	Priority  []Priority
	Epic      string
	ParentID  string
	Search    string
	Limit     int
	Offset    int
}
