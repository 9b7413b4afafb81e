package sheet

import (
	"errors"
	"testing"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

func outlineHeader() Row {
	return Strings("SN", "Module", "Level", "Item", "Description", "Effort", "Dependencies", "Status", "Comments")
}

func flatHeader() Row {
	return Strings("Title", "Description", "Type", "Status", "Priority", "Source", "Effort", "Acceptance Criteria", "Tags")
}

func TestDetectLayout(t *testing.T) {
	tests := []struct {
		name   string
		header Row
		want   Layout
	}{
		{"outline", outlineHeader(), LayoutHierarchical},
		{"outline lowercase s/n", Strings("s/n", "module name"), LayoutHierarchical},
		{"flat", flatHeader(), LayoutFlat},
		{"sn without module", Strings("SN", "Title"), LayoutFlat},
		{"empty", Row{}, LayoutFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLayout(tt.header); got != tt.want {
				t.Errorf("DetectLayout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want model.Status
	}{
		{"Complete", model.StatusClosed},
		{"Done", model.StatusClosed},
		{"Completed", model.StatusClosed},
		{"  done ", model.StatusClosed},
		{"In Progress", model.StatusReview},
		{"in  progress", model.StatusReview},
		{"approved", model.StatusApproved},
		{"VERIFIED", model.StatusVerified},
		{"", model.StatusDraft},
		{"blocked on vendor", model.StatusDraft},
	}
	for _, tt := range tests {
		if got := NormalizeStatus(tt.in); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_Outline(t *testing.T) {
	rows := []Row{
		outlineHeader(),
		{String("1"), String("Auth"), Number(0), String("Login"), String("User login"), Number(3.5), Empty(), String("Done"), String("from workshop")},
		{String("1.1"), String("Auth"), String("1"), String("SSO"), Empty(), String("2"), String("1, 2"), String("wip"), Empty()},
		Strings("", "", "", "", "", "", "", "", ""),
	}
	got, err := Normalize(rows, LayoutHierarchical)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2 (blank row skipped)", len(got))
	}

	first := got[0]
	if first.SequenceID != "1" || first.GroupKey != "Auth" || first.Level != 0 || first.Line != 2 {
		t.Errorf("first row identity = %+v", first)
	}
	if first.Status != model.StatusClosed {
		t.Errorf("first status = %s, want CLOSED", first.Status)
	}
	if !first.EstimatedEffort.Valid || first.EstimatedEffort.Decimal.String() != "3.5" {
		t.Errorf("first effort = %v", first.EstimatedEffort)
	}
	if first.Notes != "from workshop" {
		t.Errorf("notes = %q", first.Notes)
	}
	if first.Type != model.TypeFunctional || first.Priority != model.PriorityMedium {
		t.Errorf("defaults = %s/%s", first.Type, first.Priority)
	}

	second := got[1]
	if second.Level != 1 || second.Status != model.StatusReview {
		t.Errorf("second = level %d status %s", second.Level, second.Status)
	}
	if len(second.Dependencies) != 2 || second.Dependencies[0] != "1" || second.Dependencies[1] != "2" {
		t.Errorf("dependencies = %v", second.Dependencies)
	}
}

func TestNormalize_Flat(t *testing.T) {
	rows := []Row{
		flatHeader(),
		Strings("Export CSV", "Users export data", "non-functional", "Approved", "high", "RFP 4.2", "5", "has header; UTF-8 ", "export, , io"),
		Strings("", "Only a description", "", "", "", "", "", "", ""),
		Strings("", "", "BUSINESS", "DONE", "", "", "", "", ""),
	}
	got, err := Normalize(rows, LayoutFlat)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}

	r := got[0]
	if r.Type != model.TypeNonFunctional {
		t.Errorf("type = %q, want NON_FUNCTIONAL", r.Type)
	}
	if r.Priority != model.PriorityHigh || r.Status != model.StatusApproved {
		t.Errorf("priority/status = %s/%s", r.Priority, r.Status)
	}
	if len(r.AcceptanceCriteria) != 2 || r.AcceptanceCriteria[1] != "UTF-8" {
		t.Errorf("criteria = %q", r.AcceptanceCriteria)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "export" || r.Tags[1] != "io" {
		t.Errorf("tags = %q", r.Tags)
	}
	if r.Source != "RFP 4.2" {
		t.Errorf("source = %q", r.Source)
	}

	// A description-only row is kept so validation can reject the missing title.
	if got[1].Title != "" || got[1].Line != 3 {
		t.Errorf("second row = %+v", got[1])
	}
}

func TestNormalize_LayoutMismatch(t *testing.T) {
	rows := []Row{outlineHeader(), Strings("1", "Auth", "0", "Login")}
	_, err := Normalize(rows, LayoutFlat)
	var pfe *model.ParseFormatError
	if !errors.As(err, &pfe) {
		t.Fatalf("expected *ParseFormatError, got %v", err)
	}
	if pfe.Line != 1 {
		t.Errorf("line = %d, want 1", pfe.Line)
	}
}

func TestNormalize_BadCells(t *testing.T) {
	tests := []struct {
		name   string
		rows   []Row
		column string
	}{
		{"text level", []Row{outlineHeader(), Strings("1", "A", "top", "Item")}, "level"},
		{"fractional level", []Row{outlineHeader(), {String("1"), String("A"), Number(1.5), String("Item")}}, "level"},
		{"text effort", []Row{flatHeader(), Strings("T", "", "", "", "", "", "a lot")}, "effort"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.rows, LayoutAuto)
			var pfe *model.ParseFormatError
			if !errors.As(err, &pfe) {
				t.Fatalf("expected *ParseFormatError, got %v", err)
			}
			if pfe.Column != tt.column || pfe.Line != 2 {
				t.Errorf("error at row %d column %q, want row 2 column %q", pfe.Line, pfe.Column, tt.column)
			}
		})
	}
}

func TestNormalize_NoRows(t *testing.T) {
	if _, err := Normalize(nil, LayoutAuto); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestParseLayout(t *testing.T) {
	for in, want := range map[string]Layout{"": LayoutAuto, "Flat": LayoutFlat, "outline": LayoutHierarchical} {
		got, err := ParseLayout(in)
		if err != nil || got != want {
			t.Errorf("ParseLayout(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLayout("pdf"); err == nil {
		t.Error("expected error for unknown layout")
	}
}
