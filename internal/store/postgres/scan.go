package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

// requirementColumns is the canonical column order understood by scanRequirement.
const requirementColumns = `id, requirement_id, project_id, title, description,
	acceptance_criteria, tags, type, status, priority, source,
	estimated_effort, actual_effort, epic, owner, notes, parent_id,
	version, is_baseline, baseline_version, baseline_date,
	created_by, created_at, updated_at`

const historyColumns = `id, requirement_id, user_id, action, version, changes, timestamp`

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRequirement scans a single row into a model.Requirement.
// The row must contain columns in the order defined by requirementColumns.
func scanRequirement(row scannable) (*model.Requirement, error) {
	var r model.Requirement
	var (
		criteria        pq.StringArray
		tags            pq.StringArray
		parentID        sql.NullString
		baselineVersion sql.NullInt64
		baselineDate    sql.NullTime
	)

	err := row.Scan(
		&r.ID,
		&r.RequirementID,
		&r.ProjectID,
		&r.Title,
		&r.Description,
		&criteria,
		&tags,
		&r.Type,
		&r.Status,
		&r.Priority,
		&r.Source,
		&r.EstimatedEffort,
		&r.ActualEffort,
		&r.Epic,
		&r.Owner,
		&r.Notes,
		&parentID,
		&r.Version,
		&r.IsBaseline,
		&baselineVersion,
		&baselineDate,
		&r.CreatedBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(criteria) > 0 {
		r.AcceptanceCriteria = []string(criteria)
	}
	if len(tags) > 0 {
		r.Tags = []string(tags)
	}
	if parentID.Valid {
		p := parentID.String
		r.ParentID = &p
	}
	if baselineVersion.Valid {
		v := int(baselineVersion.Int64)
		r.BaselineVersion = &v
	}
	r.BaselineDate = nullTimePtr(baselineDate)
	return &r, nil
}

// scanHistory scans a single row into a model.HistoryEntry.
func scanHistory(row scannable) (*model.HistoryEntry, error) {
	var e model.HistoryEntry
	var changes []byte
	if err := row.Scan(&e.ID, &e.RequirementID, &e.UserID, &e.Action, &e.Version, &changes, &e.Timestamp); err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return nil, fmt.Errorf("decode changes of history %d: %w", e.ID, err)
		}
	}
	return &e, nil
}

// textArray binds a string slice as TEXT[]; nil binds as an empty array
// so NOT NULL columns stay satisfied.
func textArray(s []string) any {
	if s == nil {
		s = []string{}
	}
	return pq.Array(s)
}

// nullString returns a sql.NullString that is NULL for nil pointers.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullInt returns a sql.NullInt64 that is NULL for nil pointers.
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullTimeFrom(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
