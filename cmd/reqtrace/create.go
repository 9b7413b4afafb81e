package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/service"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a single requirement",
	Long: `Create a single requirement and record its CREATED history entry.

Type, status and priority default to FUNCTIONAL, DRAFT and MEDIUM. The
parent may be given as a REQ- identifier or a key and must belong to the
same project.`,
	GroupID: "requirements",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := createInputFromFlags(cmd)
		if err != nil {
			return err
		}

		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		if ref, _ := cmd.Flags().GetString("parent"); ref != "" {
			p, err := b.svc.Resolve(cmd.Context(), ref)
			if err != nil {
				return fmt.Errorf("parent %s: %w", ref, err)
			}
			in.ParentID = &p.ID
		}

		r, err := b.svc.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(r)
			return nil
		}
		printRequirement(os.Stdout, r, nil)
		return nil
	},
}

// createInputFromFlags builds the service input from the create flags.
// The parent reference is resolved by the caller.
func createInputFromFlags(cmd *cobra.Command) (service.CreateInput, error) {
	flags := cmd.Flags()
	in := service.CreateInput{CreatedBy: actor}
	in.ProjectID, _ = flags.GetString("project")
	in.Title, _ = flags.GetString("title")
	in.Description, _ = flags.GetString("description")
	in.Source, _ = flags.GetString("source")
	in.Epic, _ = flags.GetString("epic")
	in.Owner, _ = flags.GetString("owner")
	in.Notes, _ = flags.GetString("notes")
	in.AcceptanceCriteria, _ = flags.GetStringArray("criteria")
	in.Tags, _ = flags.GetStringSlice("tag")

	if v, _ := flags.GetString("type"); v != "" {
		in.Type = model.RequirementType(enumFlag(v))
	}
	if v, _ := flags.GetString("status"); v != "" {
		in.Status = model.Status(enumFlag(v))
	}
	if v, _ := flags.GetString("priority"); v != "" {
		in.Priority = model.Priority(enumFlag(v))
	}

	if flags.Changed("estimated-effort") {
		v, _ := flags.GetString("estimated-effort")
		e, err := effortFlag(&v)
		if err != nil {
			return in, fmt.Errorf("--estimated-effort: %w", err)
		}
		in.EstimatedEffort = *e
	}
	return in, nil
}

func init() {
	createCmd.Flags().StringP("project", "p", "", "project id (required)")
	createCmd.Flags().String("title", "", "title (required)")
	createCmd.Flags().String("description", "", "description")
	createCmd.Flags().String("type", "", "FUNCTIONAL, NON_FUNCTIONAL, BUSINESS or TECHNICAL")
	createCmd.Flags().String("status", "", "DRAFT, REVIEW, APPROVED, IMPLEMENTED, VERIFIED or CLOSED")
	createCmd.Flags().String("priority", "", "LOW, MEDIUM, HIGH or CRITICAL")
	createCmd.Flags().String("source", "", "where the requirement came from")
	createCmd.Flags().String("epic", "", "grouping label")
	createCmd.Flags().String("owner", "", "owner")
	createCmd.Flags().String("notes", "", "free-text notes")
	createCmd.Flags().String("estimated-effort", "", "estimated effort")
	createCmd.Flags().String("parent", "", "parent requirement")
	createCmd.Flags().StringArray("criteria", nil, "acceptance criterion (repeatable, one criterion each)")
	createCmd.Flags().StringSlice("tag", nil, "tag (repeatable)")
	_ = createCmd.MarkFlagRequired("project")
	_ = createCmd.MarkFlagRequired("title")
}
