package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/service"
)

var showCmd = &cobra.Command{
	Use:     "show <requirement>",
	Short:   "Show a requirement by REQ- identifier or key",
	GroupID: "requirements",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		r, err := b.svc.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		deps, err := b.svc.Dependencies(cmd.Context(), r.ID)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(struct {
				*model.Requirement
				Dependencies []*model.Dependency `json:"dependencies"`
			}{r, deps})
			return nil
		}
		printRequirement(os.Stdout, r, deps)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List requirements",
	GroupID: "requirements",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetStringSlice("status")
		reqType, _ := cmd.Flags().GetStringSlice("type")
		priority, _ := cmd.Flags().GetStringSlice("priority")
		epic, _ := cmd.Flags().GetString("epic")
		parent, _ := cmd.Flags().GetString("parent")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		filter := model.RequirementFilter{
			ProjectID: project,
			Status:    upperEnums[model.Status](status),
			Type:      upperEnums[model.RequirementType](reqType),
			Priority:  upperEnums[model.Priority](priority),
			Epic:      epic,
			Search:    search,
			Limit:     limit,
			Offset:    offset,
		}
		if parent != "" {
			p, err := b.svc.Resolve(cmd.Context(), parent)
			if err != nil {
				return err
			}
			filter.ParentID = p.ID
		}

		reqs, err := b.svc.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(reqs)
		} else {
			printRequirementList(os.Stdout, reqs)
		}
		return nil
	},
}

// upperEnums converts flag values to enum values; "non-functional" and
// "non_functional" both become NON_FUNCTIONAL.
func upperEnums[T ~string](vals []string) []T {
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		out = append(out, T(enumFlag(v)))
	}
	return out
}

func enumFlag(v string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), "-", "_"))
}

var updateCmd = &cobra.Command{
	Use:   "update <requirement>",
	Short: "Update a requirement",
	Long: `Update a requirement. --version must name the version you last read;
the update is rejected when someone else has changed the requirement since.

Each update that changes at least one field creates a new version and a
history entry. Status changes are recorded as STATUS_CHANGED, priority
changes as PRIORITY_CHANGED, anything else as UPDATED.`,
	GroupID: "requirements",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := updateInputFromFlags(cmd)
		if err != nil {
			return err
		}

		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		cur, err := b.svc.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		r, entry, err := b.svc.Update(cmd.Context(), cur.ID, in)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(entry)
			return nil
		}
		fmt.Printf("Updated %s to v%d (%s)\n", r.RequirementID, r.Version, entry.Action)
		return nil
	},
}

func updateInputFromFlags(cmd *cobra.Command) (service.UpdateInput, error) {
	flags := cmd.Flags()
	version, _ := flags.GetInt("version")
	in := service.UpdateInput{ExpectedVersion: version, Actor: actor}

	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	list := func(name string, get func(string) ([]string, error)) *[]string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := get(name)
		return &v
	}

	in.Title = str("title")
	in.Description = str("description")
	in.Source = str("source")
	in.Epic = str("epic")
	in.Owner = str("owner")
	in.Notes = str("notes")
	in.AcceptanceCriteria = list("criteria", flags.GetStringArray)
	in.Tags = list("tag", flags.GetStringSlice)
	if v := str("type"); v != nil {
		t := model.RequirementType(enumFlag(*v))
		in.Type = &t
	}
	if v := str("status"); v != nil {
		s := model.Status(enumFlag(*v))
		in.Status = &s
	}
	if v := str("priority"); v != nil {
		p := model.Priority(enumFlag(*v))
		in.Priority = &p
	}
	var err error
	if in.EstimatedEffort, err = effortFlag(str("estimated-effort")); err != nil {
		return in, fmt.Errorf("--estimated-effort: %w", err)
	}
	if in.ActualEffort, err = effortFlag(str("actual-effort")); err != nil {
		return in, fmt.Errorf("--actual-effort: %w", err)
	}
	return in, nil
}

// effortFlag parses an effort flag; "" or "none" clears the value.
func effortFlag(v *string) (*decimal.NullDecimal, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" || strings.EqualFold(s, "none") {
		return &decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	nd := decimal.NewNullDecimal(d)
	return &nd, nil
}

var baselineCmd = &cobra.Command{
	Use:     "baseline <requirement>...",
	Short:   "Mark the current version of requirements as their baseline",
	GroupID: "requirements",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		for _, ref := range args {
			cur, err := b.svc.Resolve(cmd.Context(), ref)
			if err != nil {
				return fmt.Errorf("%s: %w", ref, err)
			}
			r, err := b.svc.Baseline(cmd.Context(), cur.ID, actor)
			if err != nil {
				return fmt.Errorf("%s: %w", ref, err)
			}
			fmt.Printf("Baselined %s at v%d\n", r.RequirementID, *r.BaselineVersion)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:     "history <requirement>",
	Short:   "Show the change history of a requirement",
	GroupID: "requirements",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		r, err := b.svc.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		entries, err := b.svc.History(cmd.Context(), r.ID)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(entries)
		} else {
			printHistory(os.Stdout, entries)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <requirement>...",
	Short:   "Delete one or more requirements with their history and links",
	GroupID: "requirements",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		for _, ref := range args {
			r, err := b.svc.Resolve(cmd.Context(), ref)
			if err != nil {
				return fmt.Errorf("%s: %w", ref, err)
			}
			if err := b.svc.Delete(cmd.Context(), r.ID); err != nil {
				return fmt.Errorf("deleting %s: %w", ref, err)
			}
			fmt.Printf("Deleted %s\n", r.RequirementID)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringP("project", "p", "", "filter by project")
	listCmd.Flags().StringSliceP("status", "s", nil, "filter by status (repeatable)")
	listCmd.Flags().StringSliceP("type", "t", nil, "filter by type (repeatable)")
	listCmd.Flags().StringSlice("priority", nil, "filter by priority (repeatable)")
	listCmd.Flags().String("epic", "", "filter by epic")
	listCmd.Flags().String("parent", "", "list children of this requirement")
	listCmd.Flags().String("search", "", "case-insensitive text search on title and description")
	listCmd.Flags().Int("limit", 50, "maximum number of requirements to return")
	listCmd.Flags().Int("offset", 0, "offset for pagination")

	updateCmd.Flags().Int("version", 0, "version you last read (required)")
	updateCmd.Flags().String("title", "", "new title")
	updateCmd.Flags().String("description", "", "new description")
	updateCmd.Flags().String("type", "", "FUNCTIONAL, NON_FUNCTIONAL, BUSINESS or TECHNICAL")
	updateCmd.Flags().String("status", "", "DRAFT, REVIEW, APPROVED, IMPLEMENTED, VERIFIED or CLOSED")
	updateCmd.Flags().String("priority", "", "LOW, MEDIUM, HIGH or CRITICAL")
	updateCmd.Flags().String("source", "", "new source")
	updateCmd.Flags().String("epic", "", "new epic")
	updateCmd.Flags().String("owner", "", "new owner")
	updateCmd.Flags().String("notes", "", "new notes")
	updateCmd.Flags().String("estimated-effort", "", "estimated effort (\"none\" clears)")
	updateCmd.Flags().String("actual-effort", "", "actual effort (\"none\" clears)")
	updateCmd.Flags().StringArray("criteria", nil, "replace acceptance criteria (repeatable, one criterion each)")
	updateCmd.Flags().StringSlice("tag", nil, "replace tags (repeatable)")
	_ = updateCmd.MarkFlagRequired("version")
}
