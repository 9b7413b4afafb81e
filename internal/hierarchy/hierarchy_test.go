package hierarchy

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

func row(sn string, level int, group string) model.RequirementRow {
	return model.RequirementRow{SequenceID: sn, Level: level, GroupKey: group, Title: "item " + sn}
}

func parents(rows []model.RequirementRow) map[string]string {
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.SequenceID] = r.ParentSequenceID
	}
	return m
}

func TestReconstruct_Chain(t *testing.T) {
	rows := Reconstruct([]model.RequirementRow{
		row("1", 0, "A"),
		row("1.1", 1, "A"),
		row("1.1.1", 2, "A"),
	})
	got := parents(rows)
	want := map[string]string{"1": "", "1.1": "1", "1.1.1": "1.1"}
	for sn, p := range want {
		if got[sn] != p {
			t.Errorf("parent(%s) = %q, want %q", sn, got[sn], p)
		}
	}
}

func TestReconstruct_LastSeenWins(t *testing.T) {
	rows := Reconstruct([]model.RequirementRow{
		row("1", 0, "A"),
		row("1.1", 1, "A"),
		row("1.1.1", 2, "A"),
		row("1.2", 1, "A"),
		row("1.2.1", 2, "A"),
		row("2", 0, "A"),
		row("2.1", 1, "A"),
	})
	got := parents(rows)
	tests := map[string]string{
		"1.2":   "1",
		"1.2.1": "1.2",
		"2":     "",
		"2.1":   "2",
	}
	for sn, want := range tests {
		if got[sn] != want {
			t.Errorf("parent(%s) = %q, want %q", sn, got[sn], want)
		}
	}
}

func TestReconstruct_GroupsAreIndependent(t *testing.T) {
	rows := Reconstruct([]model.RequirementRow{
		row("A1", 0, "Auth"),
		row("B1", 0, "Billing"),
		row("A1.1", 1, "Auth"),
		row("C1.1", 1, "Catalog"),
	})
	got := parents(rows)
	if got["A1.1"] != "A1" {
		t.Errorf("parent(A1.1) = %q, want A1", got["A1.1"])
	}
	if got["C1.1"] != "" {
		t.Errorf("parent(C1.1) = %q, want orphan", got["C1.1"])
	}
	orphans := Orphans(rows)
	if len(orphans) != 1 || orphans[0].SequenceID != "C1.1" {
		t.Errorf("Orphans = %+v", orphans)
	}
}

func TestReconstruct_SkippedLevelIsOrphan(t *testing.T) {
	rows := Reconstruct([]model.RequirementRow{
		row("1", 0, "A"),
		row("1.1.1", 2, "A"),
	})
	if p := rows[1].ParentSequenceID; p != "" {
		t.Errorf("parent = %q, want none", p)
	}
	if roots := Roots(rows); len(roots) != 2 {
		t.Errorf("Roots = %v, want both rows", roots)
	}
}

func TestReconstruct_ClearsStaleParents(t *testing.T) {
	r := row("1", 0, "A")
	r.ParentSequenceID = "99"
	rows := Reconstruct([]model.RequirementRow{r})
	if rows[0].ParentSequenceID != "" {
		t.Errorf("level 0 row kept parent %q", rows[0].ParentSequenceID)
	}
}

// Every assigned parent sits exactly one level up in the same group and
// appears earlier in the input.
func TestReconstruct_ForestProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	groups := []string{"A", "B", "C"}
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(60)
		rows := make([]model.RequirementRow, n)
		for i := range rows {
			rows[i] = row(fmt.Sprintf("t%d-%d", trial, i), rng.Intn(4), groups[rng.Intn(len(groups))])
		}
		Reconstruct(rows)

		index := make(map[string]int, n)
		for i, r := range rows {
			index[r.SequenceID] = i
		}
		for i, r := range rows {
			if r.ParentSequenceID == "" {
				continue
			}
			j, ok := index[r.ParentSequenceID]
			if !ok {
				t.Fatalf("trial %d: row %s has unknown parent %s", trial, r.SequenceID, r.ParentSequenceID)
			}
			p := rows[j]
			if j >= i || p.Level != r.Level-1 || p.GroupKey != r.GroupKey {
				t.Fatalf("trial %d: bad parent %+v for %+v", trial, p, r)
			}
		}
	}
}
