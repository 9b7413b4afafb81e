package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/store"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapError translates constraint violations into store errors. A unique
// violation on requirements means the requirement ID is taken; a foreign
// key violation means a referenced record is missing.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "unique_violation":
		return fmt.Errorf("%w: %s", store.ErrDuplicateRequirementID, pqErr.Detail)
	case "foreign_key_violation":
		return sql.ErrNoRows
	}
	return err
}

// requireAffected returns sql.ErrNoRows when res touched no rows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryCreateRequirement(ctx context.Context, db executor, r *model.Requirement) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO requirements (
			id, requirement_id, project_id, title, description,
			acceptance_criteria, tags, type, status, priority, source,
			estimated_effort, actual_effort, epic, owner, notes, parent_id,
			version, is_baseline, baseline_version, baseline_date,
			created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21,
			$22, COALESCE($23, NOW()), COALESCE($24, NOW())
		) RETURNING created_at, updated_at`,
		r.ID, r.RequirementID, r.ProjectID, r.Title, r.Description,
		textArray(r.AcceptanceCriteria), textArray(r.Tags), string(r.Type), string(r.Status), string(r.Priority), r.Source,
		r.EstimatedEffort, r.ActualEffort, r.Epic, r.Owner, r.Notes, nullString(r.ParentID),
		r.Version, r.IsBaseline, nullInt(r.BaselineVersion), nullTimeFrom(r.BaselineDate),
		r.CreatedBy, nullTime(r.CreatedAt), nullTime(r.UpdatedAt),
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func queryGetRequirement(ctx context.Context, db executor, id string) (*model.Requirement, error) {
	row := db.QueryRowContext(ctx, `SELECT `+requirementColumns+` FROM requirements WHERE id = $1`, id)
	return scanRequirement(row)
}

func queryGetRequirementByRequirementID(ctx context.Context, db executor, requirementID string) (*model.Requirement, error) {
	row := db.QueryRowContext(ctx, `SELECT `+requirementColumns+` FROM requirements WHERE requirement_id = $1`, requirementID)
	return scanRequirement(row)
}

// inClause renders "col IN ($n, ...)" and appends vals to args.
func inClause[T ~string](col string, vals []T, nextArg func() string, args *[]any) string {
	placeholders := make([]string, len(vals))
	for i, v := range vals {
		placeholders[i] = nextArg()
		*args = append(*args, string(v))
	}
	return col + " IN (" + strings.Join(placeholders, ", ") + ")"
}

func queryListRequirements(ctx context.Context, db executor, filter model.RequirementFilter) ([]*model.Requirement, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = "+nextArg())
		args = append(args, filter.ProjectID)
	}
	if len(filter.Status) > 0 {
		whereClauses = append(whereClauses, inClause("status", filter.Status, nextArg, &args))
	}
	if len(filter.Type) > 0 {
		whereClauses = append(whereClauses, inClause("type", filter.Type, nextArg, &args))
	}
	if len(filter.Priority) > 0 {
		whereClauses = append(whereClauses, inClause("priority", filter.Priority, nextArg, &args))
	}
	if filter.Epic != "" {
		whereClauses = append(whereClauses, "epic = "+nextArg())
		args = append(args, filter.Epic)
	}
	if filter.ParentID != "" {
		whereClauses = append(whereClauses, "parent_id = "+nextArg())
		args = append(args, filter.ParentID)
	}
	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(title ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query := `SELECT ` + requirementColumns + ` FROM requirements` + whereSQL + ` ORDER BY created_at ASC, requirement_id ASC`
	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	defer rows.Close()

	var out []*model.Requirement
	for rows.Next() {
		r, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// queryUpdateRequirement writes every mutable column guarded by the
// expected version. When nothing matched it tells a missing row apart
// from a stale version.
func queryUpdateRequirement(ctx context.Context, db executor, r *model.Requirement, expectedVersion int) error {
	err := db.QueryRowContext(ctx, `
		UPDATE requirements SET
			requirement_id = $3, title = $4, description = $5,
			acceptance_criteria = $6, tags = $7, type = $8, status = $9, priority = $10, source = $11,
			estimated_effort = $12, actual_effort = $13, epic = $14, owner = $15, notes = $16, parent_id = $17,
			version = $18, is_baseline = $19, baseline_version = $20, baseline_date = $21,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING updated_at`,
		r.ID, expectedVersion,
		r.RequirementID, r.Title, r.Description,
		textArray(r.AcceptanceCriteria), textArray(r.Tags), string(r.Type), string(r.Status), string(r.Priority), r.Source,
		r.EstimatedEffort, r.ActualEffort, r.Epic, r.Owner, r.Notes, nullString(r.ParentID),
		r.Version, r.IsBaseline, nullInt(r.BaselineVersion), nullTimeFrom(r.BaselineDate),
	).Scan(&r.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return mapError(err)
	}

	var actual int
	if err := db.QueryRowContext(ctx, `SELECT version FROM requirements WHERE id = $1`, r.ID).Scan(&actual); err != nil {
		return err
	}
	return &model.VersionConflictError{ID: r.ID, Expected: expectedVersion, Actual: actual}
}

func querySetParent(ctx context.Context, db executor, id string, parentID *string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE requirements SET parent_id = $2, updated_at = NOW() WHERE id = $1`,
		id, nullString(parentID))
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

func querySetBaseline(ctx context.Context, db executor, id string, version int, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE requirements SET is_baseline = TRUE, baseline_version = $2, baseline_date = $3 WHERE id = $1`,
		id, version, at)
	if err != nil {
		return fmt.Errorf("set baseline: %w", err)
	}
	return requireAffected(res)
}

// queryDeleteRequirement relies on ON DELETE CASCADE for history,
// dependencies and links and ON DELETE SET NULL for children.
func queryDeleteRequirement(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM requirements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete requirement: %w", err)
	}
	return requireAffected(res)
}

func queryCountRequirements(ctx context.Context, db executor, projectID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requirements WHERE project_id = $1`, projectID).Scan(&n)
	return n, err
}

func queryRequirementIDExists(ctx context.Context, db executor, requirementID string) (bool, error) {
	var ok bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM requirements WHERE requirement_id = $1)`, requirementID).Scan(&ok)
	return ok, err
}

func queryAppendHistory(ctx context.Context, db executor, e *model.HistoryEntry) error {
	changes := e.Changes
	if changes == nil {
		changes = model.Changes{}
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	err = db.QueryRowContext(ctx, `
		INSERT INTO requirement_history (requirement_id, user_id, action, version, changes, timestamp)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING id, timestamp`,
		e.RequirementID, e.UserID, string(e.Action), e.Version, data, nullTime(e.Timestamp),
	).Scan(&e.ID, &e.Timestamp)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func queryGetHistory(ctx context.Context, db executor, requirementID string) ([]*model.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM requirement_history WHERE requirement_id = $1 ORDER BY id`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	var out []*model.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func queryAddDependency(ctx context.Context, db executor, dep *model.Dependency) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO requirement_dependencies (requirement_id, depends_on_id, created_at, created_by)
		VALUES ($1, $2, COALESCE($3, NOW()), $4)
		ON CONFLICT (requirement_id, depends_on_id) DO NOTHING`,
		dep.RequirementID, dep.DependsOnID, nullTime(dep.CreatedAt), dep.CreatedBy)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func queryGetDependencies(ctx context.Context, db executor, requirementID string) ([]*model.Dependency, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT requirement_id, depends_on_id, created_at, created_by
		FROM requirement_dependencies WHERE requirement_id = $1
		ORDER BY created_at, depends_on_id`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("get dependencies: %w", err)
	}
	defer rows.Close()

	var out []*model.Dependency
	for rows.Next() {
		var d model.Dependency
		if err := rows.Scan(&d.RequirementID, &d.DependsOnID, &d.CreatedAt, &d.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
