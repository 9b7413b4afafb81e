package model

import "github.com/shopspring/decimal"

type MatrixStakeholder struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Role StakeholderRole `json:"role"`
}

type MatrixTask struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Assignee string `json:"assignee,omitempty"`
}

type MatrixMeeting struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

type MatrixTestCase struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// MatrixRow is one flattened traceability matrix line.
type MatrixRow struct {
	ID              string              `json:"id"`
	RequirementID   string              `json:"requirement_id"`
	Title           string              `json:"title"`
	Type            RequirementType     `json:"type"`
	Status          Status              `json:"status"`
	Priority        Priority            `json:"priority"`
	Owner           string              `json:"owner"`
	Epic            string              `json:"epic,omitempty"`
	ParentID        string              `json:"parent_id,omitempty"`
	EstimatedEffort decimal.NullDecimal `json:"estimated_effort"`
	ActualEffort    decimal.NullDecimal `json:"actual_effort"`
	Stakeholders    []MatrixStakeholder `json:"stakeholders"`
	Tasks           []MatrixTask        `json:"tasks"`
	Meetings        []MatrixMeeting     `json:"meetings"`
	TestCases       []MatrixTestCase    `json:"test_cases"`
}

// MatrixSummary aggregates coverage and effort over a project's matrix.
type MatrixSummary struct {
	ProjectID        string           `json:"project_id"`
	Requirements     int              `json:"requirements"`
	WithTasks        int              `json:"with_tasks"`
	WithTestCases    int              `json:"with_test_cases"`
	WithStakeholders int              `json:"with_stakeholders"`
	Untraced         int              `json:"untraced"`
	ByStatus         map[Status]int   `json:"by_status"`
	ByPriority       map[Priority]int `json:"by_priority"`
	EstimatedEffort  decimal.Decimal  `json:"estimated_effort"`
	ActualEffort     decimal.Decimal  `json:"actual_effort"`
}
