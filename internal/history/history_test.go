package history

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

var fixed = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func base() *model.Requirement {
	return &model.Requirement{
		ID:                 "rq-abc",
		RequirementID:      "REQ-PROJ-001",
		ProjectID:          "proj",
		Title:              "Login",
		Description:        "Users sign in",
		AcceptanceCriteria: []string{"password accepted"},
		Tags:               []string{"auth"},
		Type:               model.TypeFunctional,
		Status:             model.StatusDraft,
		Priority:           model.PriorityMedium,
		Version:            3,
	}
}

func TestRecordChange_ActionPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		edit   func(r *model.Requirement)
		action model.Action
		fields []string
	}{
		{"description only", func(r *model.Requirement) { r.Description = "Users sign in with SSO" }, model.ActionUpdated, []string{"description"}},
		{"status with others", func(r *model.Requirement) {
			r.Status = model.StatusApproved
			r.Priority = model.PriorityHigh
			r.Title = "Login v2"
		}, model.ActionStatusChanged, []string{"status", "priority", "title"}},
		{"priority only", func(r *model.Requirement) { r.Priority = model.PriorityCritical }, model.ActionPriorityChanged, []string{"priority"}},
		{"criteria appended", func(r *model.Requirement) {
			r.AcceptanceCriteria = append(r.AcceptanceCriteria, "lockout after 5 tries")
		}, model.ActionUpdated, []string{"acceptance_criteria"}},
		{"effort set", func(r *model.Requirement) {
			r.EstimatedEffort = decimal.NewNullDecimal(decimal.RequireFromString("2.5"))
		}, model.ActionUpdated, []string{"estimated_effort"}},
	}
	rec := &Recorder{Now: func() time.Time { return fixed }}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := base()
			next := cur.Clone()
			tt.edit(next)

			entry, err := rec.RecordChange(cur, next, "alice")
			if err != nil {
				t.Fatalf("RecordChange: %v", err)
			}
			if entry.Action != tt.action {
				t.Errorf("action = %s, want %s", entry.Action, tt.action)
			}
			if entry.Version != 4 || next.Version != 4 {
				t.Errorf("version entry=%d proposed=%d, want 4", entry.Version, next.Version)
			}
			if len(entry.Changes) != len(tt.fields) {
				t.Errorf("changes = %v, want fields %v", entry.Changes, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := entry.Changes[f]; !ok {
					t.Errorf("missing change for %q", f)
				}
			}
			if entry.UserID != "alice" || !entry.Timestamp.Equal(fixed) {
				t.Errorf("entry actor/time = %s/%v", entry.UserID, entry.Timestamp)
			}
		})
	}
}

func TestRecordChange_OldAndNewValues(t *testing.T) {
	cur := base()
	next := cur.Clone()
	next.Status = model.StatusReview

	entry, err := (&Recorder{}).RecordChange(cur, next, "bob")
	if err != nil {
		t.Fatal(err)
	}
	c := entry.Changes["status"]
	if c.Old != "DRAFT" || c.New != "REVIEW" {
		t.Errorf("status change = %+v", c)
	}
}

func TestRecordChange_NoChanges(t *testing.T) {
	cur := base()
	next := cur.Clone()
	// Tag order and untracked fields do not count as changes.
	next.Tags = []string{" auth ", "auth"}
	next.UpdatedAt = fixed

	_, err := (&Recorder{}).RecordChange(cur, next, "alice")
	if !errors.Is(err, model.ErrNoChangesDetected) {
		t.Fatalf("expected ErrNoChangesDetected, got %v", err)
	}
	if next.Version != cur.Version {
		t.Errorf("proposed version bumped to %d on no-op", next.Version)
	}
}

func TestCreated(t *testing.T) {
	r := base()
	r.Version = 0
	r.Source = ""
	entry, err := (&Recorder{}).Created(r, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Action != model.ActionCreated || entry.Version != 1 || r.Version != 1 {
		t.Errorf("entry = %s v%d, requirement v%d", entry.Action, entry.Version, r.Version)
	}
	if c, ok := entry.Changes["title"]; !ok || c.Old != nil || c.New != "Login" {
		t.Errorf("title change = %+v", c)
	}
	for _, skipped := range []string{"source", "estimated_effort", "parent_id", "notes"} {
		if _, ok := entry.Changes[skipped]; ok {
			t.Errorf("empty field %q recorded", skipped)
		}
	}
}

func TestAnnotationsKeepVersion(t *testing.T) {
	rec := &Recorder{}
	r := base()
	prev := 2

	b := rec.Baselined(r, &prev, "alice")
	if b.Action != model.ActionBaselined || b.Version != r.Version {
		t.Errorf("baseline entry = %s v%d", b.Action, b.Version)
	}
	if c := b.Changes["baseline_version"]; c.Old != 2 || c.New != 3 {
		t.Errorf("baseline change = %+v", c)
	}

	tl := rec.TaskLinked(r, &model.Task{ID: "t1", Title: "Build it", Status: "open"}, "alice")
	if tl.Action != model.ActionTaskLinked || tl.Version != r.Version {
		t.Errorf("task entry = %s v%d", tl.Action, tl.Version)
	}

	tc := rec.TestCaseLinked(r, &model.TestCase{ID: "tc1", Title: "Login works"}, "alice")
	if tc.Action != model.ActionTestCaseLinked {
		t.Errorf("test case entry action = %s", tc.Action)
	}
	if r.Version != 3 {
		t.Errorf("annotation changed version to %d", r.Version)
	}
}

func TestTopLevelField(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/title", "title"},
		{"/tags/0", "tags"},
		{"/a~1b/c", "a/b"},
		{"/acceptance_criteria/-", "acceptance_criteria"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := topLevelField(tt.in); got != tt.want {
			t.Errorf("topLevelField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
