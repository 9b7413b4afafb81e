// Package hierarchy rebuilds parent/child links from level-indexed outline
// rows.
package hierarchy

import "github.com/alfredjeanlab/reqtrace/internal/model"

type slot struct {
	group string
	level int
}

// Reconstruct sets ParentSequenceID on every row in a single pass over rows
// in file order. A row at level L > 0 takes as parent the most recently seen
// row at level L-1 with the same GroupKey. Rows with no such predecessor,
// and level 0 rows, are left as roots. Rows without a SequenceID can have a
// parent but cannot be one.
func Reconstruct(rows []model.RequirementRow) []model.RequirementRow {
	last := make(map[slot]string)
	for i := range rows {
		r := &rows[i]
		r.ParentSequenceID = ""
		if r.Level > 0 {
			if parent, ok := last[slot{r.GroupKey, r.Level - 1}]; ok && parent != r.SequenceID {
				r.ParentSequenceID = parent
			}
		}
		if r.SequenceID != "" {
			last[slot{r.GroupKey, r.Level}] = r.SequenceID
		}
	}
	return rows
}

// Roots returns the sequence ids of rows that ended up without a parent.
func Roots(rows []model.RequirementRow) []string {
	var out []string
	for _, r := range rows {
		if r.ParentSequenceID == "" && r.SequenceID != "" {
			out = append(out, r.SequenceID)
		}
	}
	return out
}

// Orphans returns rows that declare a level above 0 but received no parent.
func Orphans(rows []model.RequirementRow) []model.RequirementRow {
	var out []model.RequirementRow
	for _, r := range rows {
		if r.Level > 0 && r.ParentSequenceID == "" {
			out = append(out, r)
		}
	}
	return out
}
