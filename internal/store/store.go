package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

// ErrDuplicateRequirementID is returned by CreateRequirement when the
// human-readable requirement ID is already taken.
var ErrDuplicateRequirementID = errors.New("requirement id already exists")

// Store defines the persistence interface for requirements.
// Lookups of missing records return sql.ErrNoRows.
type Store interface {
	// Requirement CRUD
	CreateRequirement(ctx context.Context, r *model.Requirement) error
	GetRequirement(ctx context.Context, id string) (*model.Requirement, error)
	GetRequirementByRequirementID(ctx context.Context, requirementID string) (*model.Requirement, error)
	ListRequirements(ctx context.Context, filter model.RequirementFilter) ([]*model.Requirement, error)
	// UpdateRequirement writes r only if the stored version still equals
	// expectedVersion; otherwise it returns a *model.VersionConflictError.
	UpdateRequirement(ctx context.Context, r *model.Requirement, expectedVersion int) error
	SetParent(ctx context.Context, id string, parentID *string) error
	SetBaseline(ctx context.Context, id string, version int, at time.Time) error
	DeleteRequirement(ctx context.Context, id string) error

	// Identifier allocation probes
	CountRequirements(ctx context.Context, projectID string) (int, error)
	RequirementIDExists(ctx context.Context, requirementID string) (bool, error)

	// History (append-only)
	AppendHistory(ctx context.Context, entry *model.HistoryEntry) error
	GetHistory(ctx context.Context, requirementID string) ([]*model.HistoryEntry, error)

	// Dependencies
	AddDependency(ctx context.Context, dep *model.Dependency) error
	GetDependencies(ctx context.Context, requirementID string) ([]*model.Dependency, error)

	// Links to collaborator records. LinkTask, LinkMeeting and LinkTestCase
	// report whether a new link was inserted; relinking is a no-op.
	LinkStakeholder(ctx context.Context, requirementID, stakeholderID string, role model.StakeholderRole) error
	LinkTask(ctx context.Context, requirementID, taskID string) (bool, error)
	LinkMeeting(ctx context.Context, requirementID, meetingID string) (bool, error)
	LinkTestCase(ctx context.Context, requirementID, testCaseID string) (bool, error)

	// Collaborator records (read-only here)
	GetStakeholder(ctx context.Context, id string) (*model.Stakeholder, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	GetMeeting(ctx context.Context, id string) (*model.Meeting, error)
	GetTestCase(ctx context.Context, id string) (*model.TestCase, error)

	// Project-wide link listings for the traceability matrix
	ListStakeholderLinks(ctx context.Context, projectID string) ([]*model.StakeholderLink, error)
	ListTaskLinks(ctx context.Context, projectID string) ([]*model.TaskLink, error)
	ListMeetingLinks(ctx context.Context, projectID string) ([]*model.MeetingLink, error)
	ListTestCaseLinks(ctx context.Context, projectID string) ([]*model.TestCaseLink, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
