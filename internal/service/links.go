package service

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/reqtrace/internal/events"
	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/store"
)

// LinkTask links a task to the requirement id and records TASK_LINKED.
// The entry is nil when the task was already linked.
func (s *Service) LinkTask(ctx context.Context, id, taskID, actor string) (*model.HistoryEntry, error) {
	var (
		task  *model.Task
		entry *model.HistoryEntry
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		r, err := tx.GetRequirement(ctx, id)
		if err != nil {
			return err
		}
		task, err = tx.GetTask(ctx, taskID)
		if notFound(err) {
			return InputError("task " + taskID + " not found")
		}
		if err != nil {
			return err
		}
		inserted, err := tx.LinkTask(ctx, id, taskID)
		if err != nil {
			return fmt.Errorf("failed to link task: %w", err)
		}
		if !inserted {
			return nil
		}
		entry = s.recorder.TaskLinked(r, task, actor)
		return tx.AppendHistory(ctx, entry)
	})
	if err != nil || entry == nil {
		return nil, err
	}

	s.publish(ctx, events.TopicRequirementTaskLinked, id, events.TaskLinked{RequirementID: id, Task: task})
	return entry, nil
}

// LinkTestCase links a test case to the requirement id and records
// TEST_CASE_LINKED. The entry is nil when the test case was already linked.
func (s *Service) LinkTestCase(ctx context.Context, id, testCaseID, actor string) (*model.HistoryEntry, error) {
	var (
		tc    *model.TestCase
		entry *model.HistoryEntry
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		r, err := tx.GetRequirement(ctx, id)
		if err != nil {
			return err
		}
		tc, err = tx.GetTestCase(ctx, testCaseID)
		if notFound(err) {
			return InputError("test case " + testCaseID + " not found")
		}
		if err != nil {
			return err
		}
		inserted, err := tx.LinkTestCase(ctx, id, testCaseID)
		if err != nil {
			return fmt.Errorf("failed to link test case: %w", err)
		}
		if !inserted {
			return nil
		}
		entry = s.recorder.TestCaseLinked(r, tc, actor)
		return tx.AppendHistory(ctx, entry)
	})
	if err != nil || entry == nil {
		return nil, err
	}

	s.publish(ctx, events.TopicRequirementTestCaseLinked, id, events.TestCaseLinked{RequirementID: id, TestCase: tc})
	return entry, nil
}

// LinkStakeholder attaches a stakeholder in role. Linking again replaces
// the role.
func (s *Service) LinkStakeholder(ctx context.Context, id, stakeholderID string, role model.StakeholderRole) error {
	if !role.IsValid() {
		return InputError(fmt.Sprintf("invalid stakeholder role %q", role))
	}
	if _, err := s.store.GetRequirement(ctx, id); err != nil {
		return err
	}
	if _, err := s.store.GetStakeholder(ctx, stakeholderID); notFound(err) {
		return InputError("stakeholder " + stakeholderID + " not found")
	} else if err != nil {
		return err
	}
	if err := s.store.LinkStakeholder(ctx, id, stakeholderID, role); err != nil {
		return fmt.Errorf("failed to link stakeholder: %w", err)
	}
	return nil
}

// LinkMeeting attaches a meeting to the requirement id.
func (s *Service) LinkMeeting(ctx context.Context, id, meetingID string) error {
	if _, err := s.store.GetRequirement(ctx, id); err != nil {
		return err
	}
	if _, err := s.store.GetMeeting(ctx, meetingID); notFound(err) {
		return InputError("meeting " + meetingID + " not found")
	} else if err != nil {
		return err
	}
	if _, err := s.store.LinkMeeting(ctx, id, meetingID); err != nil {
		return fmt.Errorf("failed to link meeting: %w", err)
	}
	return nil
}
