package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateRequirement checks a Requirement for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the requirement is valid.
func ValidateRequirement(r *Requirement) error {
	var ve ValidationError

	if strings.TrimSpace(r.ProjectID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "project_id", Message: "is required"})
	}

	// Title: required and at most 500 characters.
	title := strings.TrimSpace(r.Title)
	if title == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "is required"})
	} else if len([]rune(title)) > 500 {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must be 500 characters or fewer"})
	}

	if !r.Type.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{Field: "type", Message: fmt.Sprintf("invalid value %q", r.Type)})
	}
	if !r.Status.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{Field: "status", Message: fmt.Sprintf("invalid value %q", r.Status)})
	}
	if !r.Priority.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{Field: "priority", Message: fmt.Sprintf("invalid value %q", r.Priority)})
	}

	ve.Errors = append(ve.Errors, effortErrors("estimated_effort", r.EstimatedEffort)...)
	ve.Errors = append(ve.Errors, effortErrors("actual_effort", r.ActualEffort)...)

	if r.ParentID != nil && *r.ParentID == r.ID && r.ID != "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "parent_id", Message: "must not reference itself"})
	}

	// Baseline fields move together.
	if r.IsBaseline && (r.BaselineVersion == nil || r.BaselineDate == nil) {
		ve.Errors = append(ve.Errors, FieldError{Field: "baseline_version", Message: "is required when baselined"})
	}
	if r.BaselineVersion != nil && (*r.BaselineVersion < 1 || *r.BaselineVersion > r.Version) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "baseline_version",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", r.Version, *r.BaselineVersion),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// Efforts are stored as NUMERIC(12, 2).
const effortScale = 2

var maxEffort = decimal.New(1, 12-effortScale)

func effortErrors(field string, e decimal.NullDecimal) []FieldError {
	if !e.Valid {
		return nil
	}
	var errs []FieldError
	d := e.Decimal
	if d.IsNegative() {
		errs = append(errs, FieldError{Field: field, Message: "must not be negative"})
	}
	if !d.Equal(d.Round(effortScale)) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("must have at most %d decimal places", effortScale)})
	}
	if d.Abs().GreaterThanOrEqual(maxEffort) {
		errs = append(errs, FieldError{Field: field, Message: "must be less than " + maxEffort.String()})
	}
	return errs
}

var rowValidator = validator.New(validator.WithRequiredStructEnabled())

// rowFieldNames maps struct field names to the names used in messages.
var rowFieldNames = map[string]string{
	"Title":    "title",
	"Level":    "level",
	"Type":     "type",
	"Status":   "status",
	"Priority": "priority",
}

// ValidateRow checks an import row for required fields and enum membership.
func ValidateRow(row *RequirementRow) error {
	var ve ValidationError

	// The validator treats whitespace as a value; titles of only blanks are missing.
	trimmed := *row
	trimmed.Title = strings.TrimSpace(row.Title)

	if err := rowValidator.Struct(&trimmed); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			ve.Errors = append(ve.Errors, rowFieldError(fe))
		}
	}

	ve.Errors = append(ve.Errors, effortErrors("estimated_effort", row.EstimatedEffort)...)
	if row.ParentSequenceID != "" && row.ParentSequenceID == row.SequenceID {
		ve.Errors = append(ve.Errors, FieldError{Field: "parent_sequence_id", Message: "must not reference the row itself"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func rowFieldError(fe validator.FieldError) FieldError {
	name, ok := rowFieldNames[fe.Field()]
	if !ok {
		name = strings.ToLower(fe.Field())
	}
	switch fe.Tag() {
	case "required":
		return FieldError{Field: name, Message: "is required"}
	case "max":
		return FieldError{Field: name, Message: "must be " + fe.Param() + " characters or fewer"}
	case "gte":
		return FieldError{Field: name, Message: "must be at least " + fe.Param()}
	case "oneof":
		return FieldError{Field: name, Message: fmt.Sprintf("invalid value %q (want one of %s)", fmt.Sprint(fe.Value()), fe.Param())}
	default:
		return FieldError{Field: name, Message: "failed " + fe.Tag() + " check"}
	}
}
