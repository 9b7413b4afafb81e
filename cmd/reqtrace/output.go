package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func effortText(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printRequirement(w io.Writer, r *model.Requirement, deps []*model.Dependency) {
	fmt.Fprintf(w, "ID:          %s\n", r.RequirementID)
	fmt.Fprintf(w, "Key:         %s\n", ui.RenderMuted(r.ID))
	fmt.Fprintf(w, "Project:     %s\n", r.ProjectID)
	fmt.Fprintf(w, "Title:       %s\n", r.Title)
	fmt.Fprintf(w, "Type:        %s\n", r.Type)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(r.Status))
	fmt.Fprintf(w, "Priority:    %s\n", ui.RenderPriority(r.Priority))
	fmt.Fprintf(w, "Version:     %d\n", r.Version)
	if r.IsBaseline && r.BaselineVersion != nil {
		fmt.Fprintf(w, "Baseline:    v%d", *r.BaselineVersion)
		if r.BaselineDate != nil {
			fmt.Fprintf(w, " (%s)", r.BaselineDate.Format(timeLayout))
		}
		fmt.Fprintln(w)
	}
	if r.Epic != "" {
		fmt.Fprintf(w, "Epic:        %s\n", r.Epic)
	}
	if r.Owner != "" {
		fmt.Fprintf(w, "Owner:       %s\n", r.Owner)
	}
	if r.ParentID != nil {
		fmt.Fprintf(w, "Parent:      %s\n", *r.ParentID)
	}
	if r.Source != "" {
		fmt.Fprintf(w, "Source:      %s\n", r.Source)
	}
	fmt.Fprintf(w, "Effort:      %s estimated, %s actual\n", effortText(r.EstimatedEffort), effortText(r.ActualEffort))
	if len(r.Tags) > 0 {
		fmt.Fprintf(w, "Tags:        %s\n", strings.Join(r.Tags, ", "))
	}
	if r.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", r.Description)
	}
	if len(r.AcceptanceCriteria) > 0 {
		fmt.Fprintln(w, "Acceptance:")
		for _, c := range r.AcceptanceCriteria {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}
	if r.Notes != "" {
		fmt.Fprintf(w, "Notes:       %s\n", r.Notes)
	}
	if len(deps) > 0 {
		ids := make([]string, len(deps))
		for i, d := range deps {
			ids[i] = d.DependsOnID
		}
		fmt.Fprintf(w, "Depends on:  %s\n", strings.Join(ids, ", "))
	}
	fmt.Fprintf(w, "Created By:  %s\n", r.CreatedBy)
	fmt.Fprintf(w, "Created At:  %s\n", r.CreatedAt.Format(timeLayout))
	fmt.Fprintf(w, "Updated At:  %s\n", r.UpdatedAt.Format(timeLayout))
}

func printRequirementList(w io.Writer, reqs []*model.Requirement) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTYPE\tPRIORITY\tVER\tTITLE")
	for _, r := range reqs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.RequirementID,
			ui.RenderStatus(r.Status),
			r.Type,
			r.Priority,
			r.Version,
			truncate(r.Title, 50),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d requirements\n", len(reqs))
}

func printHistory(w io.Writer, entries []*model.HistoryEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "v%d  %s  %s  %s\n", e.Version, e.Timestamp.Format(timeLayout), ui.RenderAccent(string(e.Action)), e.UserID)
		fields := make([]string, 0, len(e.Changes))
		for f := range e.Changes {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			c := e.Changes[f]
			fmt.Fprintf(w, "    %s: %s -> %s\n", f, changeText(c.Old), changeText(c.New))
		}
	}
}

func changeText(v any) string {
	if v == nil {
		return ui.RenderMuted("(none)")
	}
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func printImportResult(w io.Writer, res *model.ImportResult, dryRun bool) {
	verb := "Imported"
	if dryRun {
		verb = "Would import"
	}
	fmt.Fprintf(w, "%s %d requirement(s), %d failed (batch %s)\n", verb, res.SuccessCount, res.FailedCount, res.BatchID)
	fmt.Fprintf(w, "Linked %d parent(s), %d orphan(s)\n", res.LinkedCount, res.OrphanCount)
	for _, msg := range res.Errors {
		fmt.Fprintf(w, "  %s %s\n", ui.RenderWarn("!"), msg)
	}
}

func printMatrix(w io.Writer, rows []model.MatrixRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tOWNER\tTASKS\tTESTS\tMEETINGS\tSTAKEHOLDERS\tTITLE")
	for _, r := range rows {
		owner := r.Owner
		if owner == "" {
			owner = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.RequirementID,
			ui.RenderStatus(r.Status),
			owner,
			len(r.Tasks),
			len(r.TestCases),
			len(r.Meetings),
			len(r.Stakeholders),
			truncate(r.Title, 40),
		)
	}
	tw.Flush()
}

func printSummary(w io.Writer, s model.MatrixSummary) {
	fmt.Fprintf(w, "Project:      %s\n", s.ProjectID)
	fmt.Fprintf(w, "Requirements: %d\n", s.Requirements)
	fmt.Fprintf(w, "With tasks:   %d\n", s.WithTasks)
	fmt.Fprintf(w, "With tests:   %d\n", s.WithTestCases)
	fmt.Fprintf(w, "Untraced:     %d\n", s.Untraced)
	fmt.Fprintf(w, "Effort:       %s estimated, %s actual\n", s.EstimatedEffort.String(), s.ActualEffort.String())
	statuses := make([]string, 0, len(s.ByStatus))
	for st, n := range s.ByStatus {
		statuses = append(statuses, fmt.Sprintf("%s=%d", st, n))
	}
	sort.Strings(statuses)
	if len(statuses) > 0 {
		fmt.Fprintf(w, "By status:    %s\n", strings.Join(statuses, " "))
	}
}
