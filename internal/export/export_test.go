package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/store/memory"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	for i, title := range []string{"Login", "Logout"} {
		r := &model.Requirement{
			ID:            "rq-" + title,
			RequirementID: "REQ-ALPH-00" + string(rune('1'+i)),
			ProjectID:     "alpha",
			Title:         title,
			Type:          model.TypeFunctional,
			Status:        model.StatusDraft,
			Priority:      model.PriorityMedium,
			Version:       1,
		}
		if err := st.CreateRequirement(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	st.PutTask(model.Task{ID: "t-1", Title: "Build it", Status: "open"})
	if _, err := st.LinkTask(ctx, "rq-Login", "t-1"); err != nil {
		t.Fatal(err)
	}
	return st
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func TestWriteJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := WriteJSONL(&buf, "alpha", nil, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected header and summary, got %d lines", len(lines))
	}
	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != FormatVersion || h.Type != "header" || h.ProjectID != "alpha" || h.RequirementCount != 0 || !h.Timestamp.Equal(now) {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestMatrix(t *testing.T) {
	data, err := Matrix(context.Background(), seededStore(t), "alpha")
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	lines := nonEmptyLines(string(data))
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), data)
	}

	var rec struct {
		Type string          `json:"type"`
		Data model.MatrixRow `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Type != "requirement" || rec.Data.RequirementID != "REQ-ALPH-001" || len(rec.Data.Tasks) != 1 {
		t.Errorf("first record = %+v", rec)
	}

	var sum struct {
		Type string              `json:"type"`
		Data model.MatrixSummary `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[3]), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Type != "summary" || sum.Data.Requirements != 2 || sum.Data.Untraced != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.jsonl")
	dest := FileDestination{Path: path}
	for _, payload := range []string{"first\n", "second\n"} {
		if err := dest.Write(context.Background(), []byte(payload)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second\n" {
		t.Errorf("file = %q, want the last payload", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWriterDestination(t *testing.T) {
	var buf bytes.Buffer
	if err := (WriterDestination{W: &buf}).Write(context.Background(), []byte("x")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "x" {
		t.Errorf("buf = %q", buf.String())
	}
}

func TestNewS3Destination_RequiresBucket(t *testing.T) {
	if _, err := NewS3Destination(context.Background(), S3Options{Region: "us-east-1"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
