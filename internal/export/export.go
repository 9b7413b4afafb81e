// Package export serializes a project's traceability matrix as JSONL and
// delivers it to one or more destinations.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/reqtrace/internal/matrix"
	"github.com/alfredjeanlab/reqtrace/internal/model"
)

// FormatVersion is written in every header record.
const FormatVersion = "1"

// header is the first JSONL record written by WriteJSONL.
type header struct {
	Version          string    `json:"version"`
	Type             string    `json:"type"`
	Timestamp        time.Time `json:"timestamp"`
	ProjectID        string    `json:"project_id"`
	RequirementCount int       `json:"requirement_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WriteJSONL writes a header, one "requirement" record per matrix row in
// the given order, and a closing "summary" record.
func WriteJSONL(w io.Writer, projectID string, rows []model.MatrixRow, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:          FormatVersion,
		Type:             "header",
		Timestamp:        now.UTC(),
		ProjectID:        projectID,
		RequirementCount: len(rows),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, r := range rows {
		if err := enc.Encode(record{Type: "requirement", Data: r}); err != nil {
			return fmt.Errorf("encode requirement %s: %w", r.RequirementID, err)
		}
	}
	if err := enc.Encode(record{Type: "summary", Data: matrix.Summarize(projectID, rows)}); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// Matrix builds the matrix for projectID and returns it as JSONL.
func Matrix(ctx context.Context, src matrix.Source, projectID string) ([]byte, error) {
	rows, err := matrix.Build(ctx, src, projectID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, projectID, rows, time.Now()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
