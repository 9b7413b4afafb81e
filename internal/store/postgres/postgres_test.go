package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// requirementRowColumns is the column list for scanRequirement results.
var requirementRowColumns = []string{
	"id", "requirement_id", "project_id", "title", "description",
	"acceptance_criteria", "tags", "type", "status", "priority", "source",
	"estimated_effort", "actual_effort", "epic", "owner", "notes", "parent_id",
	"version", "is_baseline", "baseline_version", "baseline_date",
	"created_by", "created_at", "updated_at",
}

var historyRowColumns = []string{"id", "requirement_id", "user_id", "action", "version", "changes", "timestamp"}

// addRequirementRow adds a minimal requirement row to a sqlmock.Rows.
func addRequirementRow(rows *sqlmock.Rows, id, reqID, title string, version int, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, reqID, "proj", title, "",
		"{}", "{}", "FUNCTIONAL", "DRAFT", "MEDIUM", "",
		nil, nil, "", "", "", nil,
		version, false, nil, nil,
		"alice", now, now,
	)
}

// anyArgs returns n wildcard arguments; tests pin the positions they care about.
func anyArgs(n int) []driver.Value {
	out := make([]driver.Value, n)
	for i := range out {
		out[i] = sqlmock.AnyArg()
	}
	return out
}

func TestCreateRequirement(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	r := &model.Requirement{
		ID:              "r1",
		RequirementID:   "REQ-PROJ-001",
		ProjectID:       "proj",
		Title:           "Login",
		Tags:            []string{"auth", "web"},
		Type:            model.TypeFunctional,
		Status:          model.StatusDraft,
		Priority:        model.PriorityHigh,
		EstimatedEffort: decimal.NewNullDecimal(decimal.RequireFromString("3.5")),
		Version:         1,
		CreatedBy:       "alice",
	}

	args := anyArgs(24)
	args[0] = "r1"
	args[1] = "REQ-PROJ-001"
	args[5] = "{}"
	args[6] = `{"auth","web"}`
	args[7] = "FUNCTIONAL"
	args[9] = "HIGH"
	args[11] = "3.5"
	args[12] = nil
	args[16] = nil

	mock.ExpectQuery("INSERT INTO requirements").
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	if err := queryCreateRequirement(context.Background(), db, r); err != nil {
		t.Fatalf("queryCreateRequirement: %v", err)
	}
	if !r.CreatedAt.Equal(now) || !r.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps not populated: %v %v", r.CreatedAt, r.UpdatedAt)
	}
}

func TestCreateRequirement_DuplicateRequirementID(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO requirements").
		WillReturnError(&pq.Error{Code: "23505", Detail: "Key (requirement_id)=(REQ-PROJ-001) already exists."})

	err := queryCreateRequirement(context.Background(), db, &model.Requirement{ID: "r1", RequirementID: "REQ-PROJ-001"})
	if !errors.Is(err, store.ErrDuplicateRequirementID) {
		t.Fatalf("expected ErrDuplicateRequirementID, got %v", err)
	}
}

func TestGetRequirement(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(requirementRowColumns).AddRow(
		"r2", "REQ-PROJ-002", "proj", "Logout", "End the session",
		"{a,b}", "{web}", "TECHNICAL", "APPROVED", "LOW", "workshop",
		"2.50", nil, "Auth", "bob", "", "r1",
		3, true, 2, now,
		"alice", now, now,
	)
	mock.ExpectQuery("SELECT .+ FROM requirements WHERE id = \\$1").WithArgs("r2").WillReturnRows(rows)

	r, err := queryGetRequirement(context.Background(), db, "r2")
	if err != nil {
		t.Fatalf("queryGetRequirement: %v", err)
	}
	if r.RequirementID != "REQ-PROJ-002" || r.Type != model.TypeTechnical || r.Status != model.StatusApproved {
		t.Fatalf("unexpected requirement: %+v", r)
	}
	if len(r.AcceptanceCriteria) != 2 || r.AcceptanceCriteria[1] != "b" {
		t.Fatalf("acceptance_criteria = %v", r.AcceptanceCriteria)
	}
	if r.ParentID == nil || *r.ParentID != "r1" {
		t.Fatalf("parent_id = %v", r.ParentID)
	}
	if !r.EstimatedEffort.Valid || !r.EstimatedEffort.Decimal.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("estimated_effort = %v", r.EstimatedEffort)
	}
	if r.ActualEffort.Valid {
		t.Fatalf("actual_effort should be null, got %v", r.ActualEffort)
	}
	if r.BaselineVersion == nil || *r.BaselineVersion != 2 || r.BaselineDate == nil {
		t.Fatalf("baseline not scanned: %v %v", r.BaselineVersion, r.BaselineDate)
	}
}

func TestGetRequirement_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT .+ FROM requirements WHERE requirement_id = \\$1").
		WithArgs("REQ-NONE-001").
		WillReturnRows(sqlmock.NewRows(requirementRowColumns))

	_, err := queryGetRequirementByRequirementID(context.Background(), db, "REQ-NONE-001")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListRequirements_Filters(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	rows := sqlmock.NewRows(requirementRowColumns)
	addRequirementRow(rows, "r1", "REQ-PROJ-001", "Login", 1, now)
	addRequirementRow(rows, "r2", "REQ-PROJ-002", "Logout", 2, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE project_id = $1 AND status IN ($2, $3) AND " +
		"(title ILIKE '%' || $4 || '%' OR description ILIKE '%' || $4 || '%') " +
		"ORDER BY created_at ASC, requirement_id ASC LIMIT $5 OFFSET $6")).
		WithArgs("proj", "DRAFT", "REVIEW", "log", 10, 5).
		WillReturnRows(rows)

	got, err := queryListRequirements(context.Background(), db, model.RequirementFilter{
		ProjectID: "proj",
		Status:    []model.Status{model.StatusDraft, model.StatusReview},
		Search:    "log",
		Limit:     10,
		Offset:    5,
	})
	if err != nil {
		t.Fatalf("queryListRequirements: %v", err)
	}
	if len(got) != 2 || got[1].Version != 2 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestUpdateRequirement(t *testing.T) {
	now := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	r := &model.Requirement{ID: "r1", RequirementID: "REQ-PROJ-001", Title: "Login v2", Version: 3}

	t.Run("applies", func(t *testing.T) {
		db, mock := newMockDB(t)
		args := anyArgs(21)
		args[0] = "r1"
		args[1] = 2
		args[3] = "Login v2"
		args[17] = 3
		mock.ExpectQuery("UPDATE requirements SET").
			WithArgs(args...).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

		if err := queryUpdateRequirement(context.Background(), db, r, 2); err != nil {
			t.Fatalf("queryUpdateRequirement: %v", err)
		}
		if !r.UpdatedAt.Equal(now) {
			t.Fatalf("updated_at = %v", r.UpdatedAt)
		}
	})

	t.Run("stale version", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("UPDATE requirements SET").WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))
		mock.ExpectQuery("SELECT version FROM requirements WHERE id = \\$1").
			WithArgs("r1").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))

		err := queryUpdateRequirement(context.Background(), db, r, 2)
		var conflict *model.VersionConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected VersionConflictError, got %v", err)
		}
		if conflict.Expected != 2 || conflict.Actual != 4 {
			t.Fatalf("conflict = %+v", conflict)
		}
		if !errors.Is(err, model.ErrVersionConflict) {
			t.Fatal("conflict should match ErrVersionConflict")
		}
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("UPDATE requirements SET").WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))
		mock.ExpectQuery("SELECT version FROM requirements").WillReturnRows(sqlmock.NewRows([]string{"version"}))

		if err := queryUpdateRequirement(context.Background(), db, r, 2); !errors.Is(err, sql.ErrNoRows) {
			t.Fatalf("expected sql.ErrNoRows, got %v", err)
		}
	})
}

func TestSetParent_MissingParent(t *testing.T) {
	db, mock := newMockDB(t)
	parent := "nope"

	mock.ExpectExec("UPDATE requirements SET parent_id = \\$2").
		WithArgs("r1", "nope").
		WillReturnError(&pq.Error{Code: "23503"})

	if err := querySetParent(context.Background(), db, "r1", &parent); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSetParent_Detach(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE requirements SET parent_id = \\$2").
		WithArgs("r1", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := querySetParent(context.Background(), db, "r1", nil); err != nil {
		t.Fatalf("querySetParent: %v", err)
	}
}

func TestDeleteRequirement_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("DELETE FROM requirements WHERE id = \\$1").
		WithArgs("r9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryDeleteRequirement(context.Background(), db, "r9"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestAllocationProbes(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM requirements WHERE project_id = \\$1").
		WithArgs("proj").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("REQ-PROJ-008").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	n, err := queryCountRequirements(context.Background(), db, "proj")
	if err != nil || n != 7 {
		t.Fatalf("count = %d, %v", n, err)
	}
	ok, err := queryRequirementIDExists(context.Background(), db, "REQ-PROJ-008")
	if err != nil || ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}
}

func TestAppendHistory(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	entry := &model.HistoryEntry{
		RequirementID: "r1",
		UserID:        "alice",
		Action:        model.ActionUpdated,
		Version:       2,
		Changes:       model.Changes{"title": {Old: "a", New: "b"}},
	}

	mock.ExpectQuery("INSERT INTO requirement_history").
		WithArgs("r1", "alice", "UPDATED", 2, []byte(`{"title":{"old":"a","new":"b"}}`), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(7), now))

	if err := queryAppendHistory(context.Background(), db, entry); err != nil {
		t.Fatalf("queryAppendHistory: %v", err)
	}
	if entry.ID != 7 || !entry.Timestamp.Equal(now) {
		t.Fatalf("entry not populated: %+v", entry)
	}
}

func TestGetHistory(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	rows := sqlmock.NewRows(historyRowColumns).
		AddRow(int64(1), "r1", "alice", "CREATED", 1, []byte(`{"title":{"old":null,"new":"Login"}}`), now).
		AddRow(int64(2), "r1", "bob", "STATUS_CHANGED", 2, []byte(`{"status":{"old":"DRAFT","new":"REVIEW"}}`), now)
	mock.ExpectQuery("SELECT .+ FROM requirement_history WHERE requirement_id = \\$1 ORDER BY id").
		WithArgs("r1").
		WillReturnRows(rows)

	got, err := queryGetHistory(context.Background(), db, "r1")
	if err != nil {
		t.Fatalf("queryGetHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[1].Action != model.ActionStatusChanged || got[1].Changes["status"].New != "REVIEW" {
		t.Fatalf("unexpected entry: %+v", got[1])
	}
	if got[0].Changes["title"].Old != nil {
		t.Fatalf("created entry old value = %v", got[0].Changes["title"].Old)
	}
}

func TestAddDependency_MissingTarget(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO requirement_dependencies").
		WillReturnError(&pq.Error{Code: "23503"})

	err := queryAddDependency(context.Background(), db, &model.Dependency{RequirementID: "r1", DependsOnID: "r9"})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestLinkTask(t *testing.T) {
	for _, tc := range []struct {
		name     string
		affected int64
		want     bool
	}{
		{"NewLink", 1, true},
		{"AlreadyLinked", 0, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)

			mock.ExpectExec("INSERT INTO requirement_tasks \\(requirement_id, task_id\\)").
				WithArgs("r1", "t1").
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			inserted, err := NewWithDB(db).LinkTask(context.Background(), "r1", "t1")
			if err != nil {
				t.Fatalf("LinkTask: %v", err)
			}
			if inserted != tc.want {
				t.Errorf("inserted = %v, want %v", inserted, tc.want)
			}
		})
	}
}

func TestListMeetingLinks(t *testing.T) {
	db, mock := newMockDB(t)
	date := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"requirement_id", "id", "title", "date"}).
		AddRow("r1", "m1", "Kickoff", date).
		AddRow("r1", "m2", "Review", nil)
	mock.ExpectQuery("FROM requirement_meetings l").WithArgs("proj").WillReturnRows(rows)

	got, err := queryListMeetingLinks(context.Background(), db, "proj")
	if err != nil {
		t.Fatalf("queryListMeetingLinks: %v", err)
	}
	if len(got) != 2 || !got[0].Meeting.Date.Equal(date) || !got[1].Meeting.Date.IsZero() {
		t.Fatalf("unexpected links: %+v %+v", got[0], got[1])
	}
}

func TestRunInTransaction(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE requirements SET is_baseline = TRUE").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewWithDB(db).RunInTransaction(context.Background(), func(tx store.Store) error {
			return tx.SetBaseline(context.Background(), "r1", 2, time.Now())
		})
		if err != nil {
			t.Fatalf("RunInTransaction: %v", err)
		}
	})

	t.Run("rollback", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := NewWithDB(db).RunInTransaction(context.Background(), func(tx store.Store) error {
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	})
}
