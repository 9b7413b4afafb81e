package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

func queryLinkStakeholder(ctx context.Context, db executor, requirementID, stakeholderID string, role model.StakeholderRole) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO requirement_stakeholders (requirement_id, stakeholder_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (requirement_id, stakeholder_id) DO UPDATE SET role = EXCLUDED.role`,
		requirementID, stakeholderID, string(role))
	if err != nil {
		return mapError(err)
	}
	return nil
}

// queryLink inserts into one of the plain join tables and reports whether
// a row was added. Relinking is a no-op.
func queryLink(ctx context.Context, db executor, table, column, requirementID, targetID string) (bool, error) {
	res, err := db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (requirement_id, %s) VALUES ($1, $2)
		ON CONFLICT (requirement_id, %s) DO NOTHING`, table, column, column),
		requirementID, targetID)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func queryGetStakeholder(ctx context.Context, db executor, id string) (*model.Stakeholder, error) {
	var s model.Stakeholder
	err := db.QueryRowContext(ctx, `SELECT id, name FROM stakeholders WHERE id = $1`, id).Scan(&s.ID, &s.Name)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func queryGetTask(ctx context.Context, db executor, id string) (*model.Task, error) {
	var t model.Task
	err := db.QueryRowContext(ctx,
		`SELECT id, title, status, assignee FROM tasks WHERE id = $1`, id).Scan(&t.ID, &t.Title, &t.Status, &t.Assignee)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryGetMeeting(ctx context.Context, db executor, id string) (*model.Meeting, error) {
	var m model.Meeting
	var date sql.NullTime
	err := db.QueryRowContext(ctx, `SELECT id, title, date FROM meetings WHERE id = $1`, id).Scan(&m.ID, &m.Title, &date)
	if err != nil {
		return nil, err
	}
	m.Date = date.Time
	return &m, nil
}

func queryGetTestCase(ctx context.Context, db executor, id string) (*model.TestCase, error) {
	var tc model.TestCase
	err := db.QueryRowContext(ctx,
		`SELECT id, title, status FROM test_cases WHERE id = $1`, id).Scan(&tc.ID, &tc.Title, &tc.Status)
	if err != nil {
		return nil, err
	}
	return &tc, nil
}

// listLinks runs a project-scoped link query and scans each row with scan.
// Rows come back in requirement creation order, then link order.
func listLinks[T any](ctx context.Context, db executor, query, projectID string, scan func(scannable) (*T, error)) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func queryListStakeholderLinks(ctx context.Context, db executor, projectID string) ([]*model.StakeholderLink, error) {
	return listLinks(ctx, db, `
		SELECT l.requirement_id, s.id, s.name, l.role
		FROM requirement_stakeholders l
		JOIN stakeholders s ON s.id = l.stakeholder_id
		JOIN requirements r ON r.id = l.requirement_id
		WHERE r.project_id = $1
		ORDER BY r.created_at, r.requirement_id, l.linked_at`, projectID,
		func(row scannable) (*model.StakeholderLink, error) {
			var l model.StakeholderLink
			err := row.Scan(&l.RequirementID, &l.Stakeholder.ID, &l.Stakeholder.Name, &l.Role)
			return &l, err
		})
}

func queryListTaskLinks(ctx context.Context, db executor, projectID string) ([]*model.TaskLink, error) {
	return listLinks(ctx, db, `
		SELECT l.requirement_id, t.id, t.title, t.status, t.assignee
		FROM requirement_tasks l
		JOIN tasks t ON t.id = l.task_id
		JOIN requirements r ON r.id = l.requirement_id
		WHERE r.project_id = $1
		ORDER BY r.created_at, r.requirement_id, l.linked_at`, projectID,
		func(row scannable) (*model.TaskLink, error) {
			var l model.TaskLink
			err := row.Scan(&l.RequirementID, &l.Task.ID, &l.Task.Title, &l.Task.Status, &l.Task.Assignee)
			return &l, err
		})
}

func queryListMeetingLinks(ctx context.Context, db executor, projectID string) ([]*model.MeetingLink, error) {
	return listLinks(ctx, db, `
		SELECT l.requirement_id, m.id, m.title, m.date
		FROM requirement_meetings l
		JOIN meetings m ON m.id = l.meeting_id
		JOIN requirements r ON r.id = l.requirement_id
		WHERE r.project_id = $1
		ORDER BY r.created_at, r.requirement_id, l.linked_at`, projectID,
		func(row scannable) (*model.MeetingLink, error) {
			var l model.MeetingLink
			var date sql.NullTime
			err := row.Scan(&l.RequirementID, &l.Meeting.ID, &l.Meeting.Title, &date)
			l.Meeting.Date = date.Time
			return &l, err
		})
}

func queryListTestCaseLinks(ctx context.Context, db executor, projectID string) ([]*model.TestCaseLink, error) {
	return listLinks(ctx, db, `
		SELECT l.requirement_id, tc.id, tc.title, tc.status
		FROM requirement_test_cases l
		JOIN test_cases tc ON tc.id = l.test_case_id
		JOIN requirements r ON r.id = l.requirement_id
		WHERE r.project_id = $1
		ORDER BY r.created_at, r.requirement_id, l.linked_at`, projectID,
		func(row scannable) (*model.TestCaseLink, error) {
			var l model.TestCaseLink
			err := row.Scan(&l.RequirementID, &l.TestCase.ID, &l.TestCase.Title, &l.TestCase.Status)
			return &l, err
		})
}
