package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

var linkCmd = &cobra.Command{
	Use:     "link",
	Short:   "Link requirements to tasks, test cases, stakeholders, meetings and each other",
	GroupID: "trace",
}

// linkRunner resolves the requirement named by args[0] and calls fn with
// its opaque key and args[1].
func linkRunner(fn func(cmd *cobra.Command, b *backend, id, target string) (string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		r, err := b.svc.Resolve(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		msg, err := fn(cmd, b, r.ID, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", r.RequirementID, msg)
		return nil
	}
}

var linkTaskCmd = &cobra.Command{
	Use:   "task <requirement> <task-id>",
	Short: "Link a task (records TASK_LINKED)",
	Args:  cobra.ExactArgs(2),
	RunE: linkRunner(func(cmd *cobra.Command, b *backend, id, taskID string) (string, error) {
		entry, err := b.svc.LinkTask(cmd.Context(), id, taskID, actor)
		if err != nil {
			return "", err
		}
		if entry == nil {
			return "task " + taskID + " already linked", nil
		}
		return "linked task " + taskID, nil
	}),
}

var linkTestCaseCmd = &cobra.Command{
	Use:   "test-case <requirement> <test-case-id>",
	Short: "Link a test case (records TEST_CASE_LINKED)",
	Args:  cobra.ExactArgs(2),
	RunE: linkRunner(func(cmd *cobra.Command, b *backend, id, testCaseID string) (string, error) {
		entry, err := b.svc.LinkTestCase(cmd.Context(), id, testCaseID, actor)
		if err != nil {
			return "", err
		}
		if entry == nil {
			return "test case " + testCaseID + " already linked", nil
		}
		return "linked test case " + testCaseID, nil
	}),
}

var linkStakeholderCmd = &cobra.Command{
	Use:   "stakeholder <requirement> <stakeholder-id>",
	Short: "Link a stakeholder under a role",
	Args:  cobra.ExactArgs(2),
	RunE: linkRunner(func(cmd *cobra.Command, b *backend, id, stakeholderID string) (string, error) {
		role, _ := cmd.Flags().GetString("role")
		r := model.StakeholderRole(enumFlag(role))
		if err := b.svc.LinkStakeholder(cmd.Context(), id, stakeholderID, r); err != nil {
			return "", err
		}
		return fmt.Sprintf("linked stakeholder %s as %s", stakeholderID, r), nil
	}),
}

var linkMeetingCmd = &cobra.Command{
	Use:   "meeting <requirement> <meeting-id>",
	Short: "Link a meeting",
	Args:  cobra.ExactArgs(2),
	RunE: linkRunner(func(cmd *cobra.Command, b *backend, id, meetingID string) (string, error) {
		if err := b.svc.LinkMeeting(cmd.Context(), id, meetingID); err != nil {
			return "", err
		}
		return "linked meeting " + meetingID, nil
	}),
}

var linkDependencyCmd = &cobra.Command{
	Use:   "dependency <requirement> <depends-on>",
	Short: "Record that a requirement depends on another",
	Args:  cobra.ExactArgs(2),
	RunE: linkRunner(func(cmd *cobra.Command, b *backend, id, ref string) (string, error) {
		target, err := b.svc.Resolve(cmd.Context(), ref)
		if err != nil {
			return "", fmt.Errorf("%s: %w", ref, err)
		}
		if _, err := b.svc.AddDependency(cmd.Context(), id, target.ID, actor); err != nil {
			return "", err
		}
		return "depends on " + target.RequirementID, nil
	}),
}

var linkParentCmd = &cobra.Command{
	Use:   "parent <requirement> <parent|none>",
	Short: "Move a requirement under a parent, or to the root with \"none\"",
	Args:  cobra.ExactArgs(2),
	RunE: linkRunner(func(cmd *cobra.Command, b *backend, id, ref string) (string, error) {
		var parentID *string
		label := "root"
		if ref != "none" {
			p, err := b.svc.Resolve(cmd.Context(), ref)
			if err != nil {
				return "", fmt.Errorf("%s: %w", ref, err)
			}
			parentID = &p.ID
			label = p.RequirementID
		}
		r, _, err := b.svc.SetParent(cmd.Context(), id, parentID, actor)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("moved under %s (v%d)", label, r.Version), nil
	}),
}

func init() {
	linkStakeholderCmd.Flags().String("role", string(model.RoleContributor), "OWNER, REVIEWER, APPROVER, CONTRIBUTOR or INFORMED")

	linkCmd.AddCommand(linkTaskCmd)
	linkCmd.AddCommand(linkTestCaseCmd)
	linkCmd.AddCommand(linkStakeholderCmd)
	linkCmd.AddCommand(linkMeetingCmd)
	linkCmd.AddCommand(linkDependencyCmd)
	linkCmd.AddCommand(linkParentCmd)
}
