// Package matrix builds the traceability matrix: each requirement of a
// project joined with its stakeholders, tasks, meetings and test cases.
package matrix

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

// DateLayout formats meeting dates in matrix rows.
const DateLayout = "2006-01-02"

// Source is the read side the builder needs.
type Source interface {
	ListRequirements(ctx context.Context, filter model.RequirementFilter) ([]*model.Requirement, error)
	ListStakeholderLinks(ctx context.Context, projectID string) ([]*model.StakeholderLink, error)
	ListTaskLinks(ctx context.Context, projectID string) ([]*model.TaskLink, error)
	ListMeetingLinks(ctx context.Context, projectID string) ([]*model.MeetingLink, error)
	ListTestCaseLinks(ctx context.Context, projectID string) ([]*model.TestCaseLink, error)
}

// Build returns one row per requirement of projectID in store order. Link
// lists are never nil. A requirement without an owner takes the name of
// its first OWNER stakeholder.
func Build(ctx context.Context, src Source, projectID string) ([]model.MatrixRow, error) {
	reqs, err := src.ListRequirements(ctx, model.RequirementFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	stakeholders, err := src.ListStakeholderLinks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list stakeholder links: %w", err)
	}
	tasks, err := src.ListTaskLinks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list task links: %w", err)
	}
	meetings, err := src.ListMeetingLinks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list meeting links: %w", err)
	}
	testCases, err := src.ListTestCaseLinks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list test case links: %w", err)
	}

	rows := make([]model.MatrixRow, len(reqs))
	index := make(map[string]*model.MatrixRow, len(reqs))
	for i, r := range reqs {
		rows[i] = model.MatrixRow{
			ID:              r.ID,
			RequirementID:   r.RequirementID,
			Title:           r.Title,
			Type:            r.Type,
			Status:          r.Status,
			Priority:        r.Priority,
			Owner:           r.Owner,
			Epic:            r.Epic,
			EstimatedEffort: r.EstimatedEffort,
			ActualEffort:    r.ActualEffort,
			Stakeholders:    []model.MatrixStakeholder{},
			Tasks:           []model.MatrixTask{},
			Meetings:        []model.MatrixMeeting{},
			TestCases:       []model.MatrixTestCase{},
		}
		if r.ParentID != nil {
			rows[i].ParentID = *r.ParentID
		}
		index[r.ID] = &rows[i]
	}

	for _, l := range stakeholders {
		if row, ok := index[l.RequirementID]; ok {
			row.Stakeholders = append(row.Stakeholders, model.MatrixStakeholder{ID: l.Stakeholder.ID, Name: l.Stakeholder.Name, Role: l.Role})
			if row.Owner == "" && l.Role == model.RoleOwner {
				row.Owner = l.Stakeholder.Name
			}
		}
	}
	for _, l := range tasks {
		if row, ok := index[l.RequirementID]; ok {
			row.Tasks = append(row.Tasks, model.MatrixTask{ID: l.Task.ID, Title: l.Task.Title, Status: l.Task.Status, Assignee: l.Task.Assignee})
		}
	}
	for _, l := range meetings {
		if row, ok := index[l.RequirementID]; ok {
			date := ""
			if !l.Meeting.Date.IsZero() {
				date = l.Meeting.Date.Format(DateLayout)
			}
			row.Meetings = append(row.Meetings, model.MatrixMeeting{ID: l.Meeting.ID, Title: l.Meeting.Title, Date: date})
		}
	}
	for _, l := range testCases {
		if row, ok := index[l.RequirementID]; ok {
			row.TestCases = append(row.TestCases, model.MatrixTestCase{ID: l.TestCase.ID, Title: l.TestCase.Title, Status: l.TestCase.Status})
		}
	}
	return rows, nil
}

// Summarize counts coverage and totals effort over rows. A row is untraced
// when it has neither tasks nor test cases.
func Summarize(projectID string, rows []model.MatrixRow) model.MatrixSummary {
	sum := model.MatrixSummary{
		ProjectID:       projectID,
		Requirements:    len(rows),
		ByStatus:        make(map[model.Status]int),
		ByPriority:      make(map[model.Priority]int),
		EstimatedEffort: decimal.Zero,
		ActualEffort:    decimal.Zero,
	}
	for _, r := range rows {
		sum.ByStatus[r.Status]++
		sum.ByPriority[r.Priority]++
		if len(r.Tasks) > 0 {
			sum.WithTasks++
		}
		if len(r.TestCases) > 0 {
			sum.WithTestCases++
		}
		if len(r.Stakeholders) > 0 {
			sum.WithStakeholders++
		}
		if len(r.Tasks) == 0 && len(r.TestCases) == 0 {
			sum.Untraced++
		}
		if r.EstimatedEffort.Valid {
			sum.EstimatedEffort = sum.EstimatedEffort.Add(r.EstimatedEffort.Decimal)
		}
		if r.ActualEffort.Valid {
			sum.ActualEffort = sum.ActualEffort.Add(r.ActualEffort.Decimal)
		}
	}
	return sum
}
