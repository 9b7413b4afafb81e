package model

import "github.com/shopspring/decimal"

// RequirementRow is the canonical shape of one imported requirement,
// produced by the row normalizer from either spreadsheet layout.
type RequirementRow struct {
	// Line is the 1-based source row number, used in error messages.
	Line int `json:"line,omitempty"`

	// Outline fields; empty for flat imports.
	SequenceID       string `json:"sequence_id,omitempty"`
	GroupKey         string `json:"group_key,omitempty"`
	Level            int    `json:"level" validate:"gte=0"`
	ParentSequenceID string `json:"parent_sequence_id,omitempty"`

	Title              string              `json:"title" validate:"required,max=500"`
	Description        string              `json:"description,omitempty"`
	Type               RequirementType     `json:"type,omitempty" validate:"omitempty,oneof=FUNCTIONAL NON_FUNCTIONAL BUSINESS TECHNICAL"`
	Status             Status              `json:"status,omitempty" validate:"omitempty,oneof=DRAFT REVIEW APPROVED IMPLEMENTED VERIFIED CLOSED"`
	Priority           Priority            `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	Source             string              `json:"source,omitempty"`
	EstimatedEffort    decimal.NullDecimal `json:"estimated_effort"`
	AcceptanceCriteria []string            `json:"acceptance_criteria,omitempty"`
	Tags               []string            `json:"tags,omitempty"`
	Dependencies       []string            `json:"dependencies,omitempty"`
	Notes              string              `json:"notes,omitempty"`
}

// Label names the row in user-facing messages.
func (r RequirementRow) Label() string {
	switch {
	case r.Title != "":
		return r.Title
	case r.SequenceID != "":
		return "SN " + r.SequenceID
	default:
		return "(untitled)"
	}
}

// ImportedRequirement pairs a source row with the requirement persisted for it.
type ImportedRequirement struct {
	Line          int    `json:"line,omitempty"`
	SequenceID    string `json:"sequence_id,omitempty"`
	ID            string `json:"id"`
	RequirementID string `json:"requirement_id"`
}

// ImportResult summarizes a batch import.
type ImportResult struct {
	BatchID      string                `json:"batch_id"`
	SuccessCount int                   `json:"success_count"`
	FailedCount  int                   `json:"failed_count"`
	Errors       []string              `json:"errors"`
	LinkedCount  int                   `json:"linked_count"`
	OrphanCount  int                   `json:"orphan_count"`
	Created      []ImportedRequirement `json:"created,omitempty"`
}
