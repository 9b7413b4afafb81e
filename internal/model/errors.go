package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoChangesDetected rejects an update whose proposed state equals the current one.
	ErrNoChangesDetected = errors.New("no changes detected")

	// ErrVersionConflict is matched by *VersionConflictError.
	ErrVersionConflict = errors.New("version conflict")

	// ErrParentCycle rejects a parent assignment that would make a
	// requirement its own ancestor.
	ErrParentCycle = errors.New("parent would create a cycle")

	// ErrParentProject rejects a parent from a different project.
	ErrParentProject = errors.New("parent belongs to a different project")
)

// ParseFormatError reports a tabular source whose layout cannot be
// reconciled with the expected requirement shape. It aborts an import.
type ParseFormatError struct {
	Line   int
	Column string
	Reason string
}

func (e *ParseFormatError) Error() string {
	var b strings.Builder
	b.WriteString("parse format")
	if e.Line > 0 {
		fmt.Fprintf(&b, ": row %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %s", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// VersionConflictError is returned when an update was prepared against a
// version other than the one currently stored.
type VersionConflictError struct {
	ID       string
	Expected int
	Actual   int
}

func (e *VersionConflictError) Error() string {
	if e.Actual > 0 {
		return fmt.Sprintf("version conflict on %s: expected %d, current %d", e.ID, e.Expected, e.Actual)
	}
	return fmt.Sprintf("version conflict on %s: expected %d", e.ID, e.Expected)
}

func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// RowError is one rejected row of a batch validation.
type RowError struct {
	Line  int
	Label string
	Err   *ValidationError
}

func (e RowError) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("row %d (%s): %s", e.Line, e.Label, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Label, e.Err.Error())
}

// BatchValidationError carries every row that failed pre-validation.
// Any occurrence aborts the batch before writes.
type BatchValidationError struct {
	Rows []RowError
}

func (e *BatchValidationError) Error() string {
	return fmt.Sprintf("import rejected: %d invalid row(s): %s", len(e.Rows), strings.Join(e.Messages(), "; "))
}

// Messages returns one message per rejected row.
func (e *BatchValidationError) Messages() []string {
	out := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		out[i] = r.String()
	}
	return out
}
