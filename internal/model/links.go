package model

import "time"

// StakeholderRole tags a stakeholder's relationship to a requirement.
type StakeholderRole string

const (
	RoleOwner       StakeholderRole = "OWNER"
	RoleReviewer    StakeholderRole = "REVIEWER"
	RoleApprover    StakeholderRole = "APPROVER"
	RoleContributor StakeholderRole = "CONTRIBUTOR"
	RoleInformed    StakeholderRole = "INFORMED"
)

// IsValid checks whether the role is a known value.
func (r StakeholderRole) IsValid() bool {
	switch r {
	case RoleOwner, RoleReviewer, RoleApprover, RoleContributor, RoleInformed:
		return true
	}
	return false
}

// Records below are owned by neighbouring subsystems; this package only
// reads them to build links and the traceability matrix.

type Stakeholder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Assignee string `json:"assignee,omitempty"`
}

type Meeting struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

type TestCase struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// StakeholderLink joins a requirement to a stakeholder under a role.
type StakeholderLink struct {
	RequirementID string          `json:"requirement_id"`
	Stakeholder   Stakeholder     `json:"stakeholder"`
	Role          StakeholderRole `json:"role"`
}

// TaskLink joins a requirement to a task.
type TaskLink struct {
	RequirementID string `json:"requirement_id"`
	Task          Task   `json:"task"`
}

// MeetingLink joins a requirement to a meeting.
type MeetingLink struct {
	RequirementID string  `json:"requirement_id"`
	Meeting       Meeting `json:"meeting"`
}

// TestCaseLink joins a requirement to a test case.
type TestCaseLink struct {
	RequirementID string   `json:"requirement_id"`
	TestCase      TestCase `json:"test_case"`
}

// Dependency records that RequirementID depends on DependsOnID.
type Dependency struct {
	RequirementID string    `json:"requirement_id"`
	DependsOnID   string    `json:"depends_on_id"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by,omitempty"`
}
