// Package events publishes requirement lifecycle notifications.
package events

import (
	"context"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

// Topic prefix shared by every subject below; subscribe to Prefix+">" for all.
const Prefix = "reqtrace."

const (
	TopicRequirementCreated        = "reqtrace.requirement.created"
	TopicRequirementUpdated        = "reqtrace.requirement.updated"
	TopicRequirementBaselined      = "reqtrace.requirement.baselined"
	TopicRequirementDeleted        = "reqtrace.requirement.deleted"
	TopicRequirementTaskLinked     = "reqtrace.requirement.task_linked"
	TopicRequirementTestCaseLinked = "reqtrace.requirement.test_case_linked"

	TopicImportCompleted = "reqtrace.import.completed"
)

type RequirementCreated struct {
	Requirement *model.Requirement `json:"requirement"`
}

// RequirementUpdated carries the history entry that recorded the change.
type RequirementUpdated struct {
	Requirement *model.Requirement  `json:"requirement"`
	Entry       *model.HistoryEntry `json:"entry"`
}

type RequirementBaselined struct {
	Requirement *model.Requirement `json:"requirement"`
}

type RequirementDeleted struct {
	ID            string `json:"id"`
	RequirementID string `json:"requirement_id"`
	ProjectID     string `json:"project_id"`
}

type TaskLinked struct {
	RequirementID string      `json:"requirement_id"`
	Task          *model.Task `json:"task"`
}

type TestCaseLinked struct {
	RequirementID string          `json:"requirement_id"`
	TestCase      *model.TestCase `json:"test_case"`
}

type ImportCompleted struct {
	ProjectID string              `json:"project_id"`
	Actor     string              `json:"actor"`
	Result    *model.ImportResult `json:"result"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
