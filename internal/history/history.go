// Package history computes field-level diffs between requirement states and
// turns them into version-numbered history entries.
package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wI2L/jsondiff"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

// snapshot is the tracked subset of a requirement. Field names are the keys
// of recorded changes.
type snapshot struct {
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Type               string              `json:"type"`
	Status             string              `json:"status"`
	Priority           string              `json:"priority"`
	AcceptanceCriteria []string            `json:"acceptance_criteria"`
	Tags               []string            `json:"tags"`
	Source             string              `json:"source"`
	EstimatedEffort    decimal.NullDecimal `json:"estimated_effort"`
	ActualEffort       decimal.NullDecimal `json:"actual_effort"`
	Epic               string              `json:"epic"`
	Owner              string              `json:"owner"`
	Notes              string              `json:"notes"`
	ParentID           *string             `json:"parent_id"`
}

func snapshotOf(r *model.Requirement) snapshot {
	s := snapshot{
		Title:              r.Title,
		Description:        r.Description,
		Type:               string(r.Type),
		Status:             string(r.Status),
		Priority:           string(r.Priority),
		AcceptanceCriteria: r.AcceptanceCriteria,
		Tags:               model.NormalizeTags(r.Tags),
		Source:             r.Source,
		EstimatedEffort:    r.EstimatedEffort,
		ActualEffort:       r.ActualEffort,
		Epic:               r.Epic,
		Owner:              r.Owner,
		Notes:              r.Notes,
		ParentID:           r.ParentID,
	}
	if s.AcceptanceCriteria == nil {
		s.AcceptanceCriteria = []string{}
	}
	return s
}

// Recorder builds history entries. The zero value is ready to use.
type Recorder struct {
	// Now stamps entries; nil means time.Now.
	Now func() time.Time
}

func (rec *Recorder) now() time.Time {
	if rec != nil && rec.Now != nil {
		return rec.Now().UTC()
	}
	return time.Now().UTC()
}

// Diff returns the tracked fields whose values differ between current and
// proposed, keyed by field name.
func Diff(current, proposed *model.Requirement) (model.Changes, error) {
	before, err := json.Marshal(snapshotOf(current))
	if err != nil {
		return nil, fmt.Errorf("encoding current state: %w", err)
	}
	after, err := json.Marshal(snapshotOf(proposed))
	if err != nil {
		return nil, fmt.Errorf("encoding proposed state: %w", err)
	}

	patch, err := jsondiff.CompareJSON(before, after)
	if err != nil {
		return nil, fmt.Errorf("diffing states: %w", err)
	}
	if len(patch) == 0 {
		return model.Changes{}, nil
	}

	var oldFields, newFields map[string]any
	if err := json.Unmarshal(before, &oldFields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(after, &newFields); err != nil {
		return nil, err
	}

	changes := make(model.Changes, len(patch))
	for _, op := range patch {
		field := topLevelField(op.Path)
		if field == "" {
			continue
		}
		changes[field] = model.Change{Old: oldFields[field], New: newFields[field]}
	}
	return changes, nil
}

// topLevelField returns the first segment of a JSON pointer, unescaped.
func topLevelField(pointer string) string {
	p := strings.TrimPrefix(pointer, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(p)
}

// ActionFor picks the label for a set of changes: a status change wins over
// a priority change, which wins over any other edit.
func ActionFor(changes model.Changes) model.Action {
	if _, ok := changes["status"]; ok {
		return model.ActionStatusChanged
	}
	if _, ok := changes["priority"]; ok {
		return model.ActionPriorityChanged
	}
	return model.ActionUpdated
}

// RecordChange diffs current against proposed and returns the entry for the
// next version. It sets proposed.Version to that version. An empty diff
// returns model.ErrNoChangesDetected and leaves proposed untouched.
func (rec *Recorder) RecordChange(current, proposed *model.Requirement, actor string) (*model.HistoryEntry, error) {
	changes, err := Diff(current, proposed)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, model.ErrNoChangesDetected
	}
	proposed.Version = current.Version + 1
	return &model.HistoryEntry{
		RequirementID: current.ID,
		UserID:        actor,
		Action:        ActionFor(changes),
		Version:       proposed.Version,
		Changes:       changes,
		Timestamp:     rec.now(),
	}, nil
}

// Created returns the version 1 entry for a new requirement. Its changes
// list every non-empty tracked field with a nil old value.
func (rec *Recorder) Created(r *model.Requirement, actor string) (*model.HistoryEntry, error) {
	data, err := json.Marshal(snapshotOf(r))
	if err != nil {
		return nil, fmt.Errorf("encoding initial state: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	changes := make(model.Changes, len(fields))
	for k, v := range fields {
		if isZero(v) {
			continue
		}
		changes[k] = model.Change{New: v}
	}
	r.Version = 1
	return &model.HistoryEntry{
		RequirementID: r.ID,
		UserID:        actor,
		Action:        model.ActionCreated,
		Version:       1,
		Changes:       changes,
		Timestamp:     rec.now(),
	}, nil
}

func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	}
	return false
}

// Baselined returns the entry marking r's current version as a baseline.
// prev is the previously baselined version, if any.
func (rec *Recorder) Baselined(r *model.Requirement, prev *int, actor string) *model.HistoryEntry {
	var old any
	if prev != nil {
		old = *prev
	}
	return &model.HistoryEntry{
		RequirementID: r.ID,
		UserID:        actor,
		Action:        model.ActionBaselined,
		Version:       r.Version,
		Changes:       model.Changes{"baseline_version": {Old: old, New: r.Version}},
		Timestamp:     rec.now(),
	}
}

// TaskLinked returns the entry recording a task link on r.
func (rec *Recorder) TaskLinked(r *model.Requirement, task *model.Task, actor string) *model.HistoryEntry {
	return &model.HistoryEntry{
		RequirementID: r.ID,
		UserID:        actor,
		Action:        model.ActionTaskLinked,
		Version:       r.Version,
		Changes:       model.Changes{"task": {New: linked(task.ID, task.Title, task.Status)}},
		Timestamp:     rec.now(),
	}
}

// TestCaseLinked returns the entry recording a test case link on r.
func (rec *Recorder) TestCaseLinked(r *model.Requirement, tc *model.TestCase, actor string) *model.HistoryEntry {
	return &model.HistoryEntry{
		RequirementID: r.ID,
		UserID:        actor,
		Action:        model.ActionTestCaseLinked,
		Version:       r.Version,
		Changes:       model.Changes{"test_case": {New: linked(tc.ID, tc.Title, tc.Status)}},
		Timestamp:     rec.now(),
	}
}

func linked(id, title, status string) map[string]any {
	return map[string]any{"id": id, "title": title, "status": status}
}
