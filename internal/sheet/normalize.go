package sheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

// Layout identifies a spreadsheet column arrangement.
type Layout int

const (
	// LayoutAuto accepts whichever layout the header declares.
	LayoutAuto Layout = iota
	LayoutFlat
	LayoutHierarchical
)

func (l Layout) String() string {
	switch l {
	case LayoutFlat:
		return "flat"
	case LayoutHierarchical:
		return "hierarchical"
	default:
		return "auto"
	}
}

// ParseLayout maps a flag value to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return LayoutAuto, nil
	case "flat", "list":
		return LayoutFlat, nil
	case "hierarchical", "outline", "tree":
		return LayoutHierarchical, nil
	}
	return LayoutAuto, fmt.Errorf("unknown layout %q (want auto, flat or hierarchical)", s)
}

// Hierarchical outline columns.
const (
	colSN = iota
	colModule
	colLevel
	colItem
	colOutlineDescription
	colOutlineEffort
	colDependencies
	colOutlineStatus
	colComments
)

// Flat list columns.
const (
	colTitle = iota
	colDescription
	colType
	colStatus
	colPriority
	colSource
	colEffort
	colAcceptanceCriteria
	colTags
)

var sequenceHeaders = map[string]bool{
	"sn": true, "s/n": true, "s.n": true, "s.no": true, "sno": true, "no": true, "#": true, "seq": true, "sequence": true,
}

// DetectLayout inspects the first two header cells. A sequence column
// followed by a "module" column marks the hierarchical outline; anything
// else is read as the flat list.
func DetectLayout(header Row) Layout {
	first := strings.ToLower(header.At(0).Text())
	second := strings.ToLower(header.At(1).Text())
	if sequenceHeaders[first] && strings.HasPrefix(second, "module") {
		return LayoutHierarchical
	}
	return LayoutFlat
}

// Normalize converts rows, header first, into canonical requirement rows.
// It returns a *model.ParseFormatError when the detected layout differs from
// expect or a cell cannot be read as its column's type. Rows whose title
// and description are both blank are skipped.
func Normalize(rows []Row, expect Layout) ([]model.RequirementRow, error) {
	if len(rows) == 0 {
		return nil, &model.ParseFormatError{Reason: "no header row"}
	}
	layout := DetectLayout(rows[0])
	if expect != LayoutAuto && layout != expect {
		return nil, &model.ParseFormatError{
			Line:   1,
			Reason: fmt.Sprintf("found %s layout where %s layout was expected", layout, expect),
		}
	}

	out := make([]model.RequirementRow, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		line := i + 2
		var (
			row  model.RequirementRow
			keep bool
			err  error
		)
		if layout == LayoutHierarchical {
			row, keep, err = outlineRow(raw, line)
		} else {
			row, keep, err = flatRow(raw, line)
		}
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func outlineRow(raw Row, line int) (model.RequirementRow, bool, error) {
	title := raw.At(colItem).Text()
	desc := raw.At(colOutlineDescription).Text()
	if title == "" && desc == "" {
		return model.RequirementRow{}, false, nil
	}
	level, err := intCell(raw.At(colLevel), line, "level")
	if err != nil {
		return model.RequirementRow{}, false, err
	}
	effort, err := decimalCell(raw.At(colOutlineEffort), line, "effort")
	if err != nil {
		return model.RequirementRow{}, false, err
	}
	return model.RequirementRow{
		Line:            line,
		SequenceID:      raw.At(colSN).Text(),
		GroupKey:        raw.At(colModule).Text(),
		Level:           level,
		Title:           title,
		Description:     desc,
		Type:            model.TypeFunctional,
		Status:          NormalizeStatus(raw.At(colOutlineStatus).Text()),
		Priority:        model.PriorityMedium,
		EstimatedEffort: effort,
		Dependencies:    splitList(raw.At(colDependencies).Text(), ",;"),
		Notes:           raw.At(colComments).Text(),
	}, true, nil
}

func flatRow(raw Row, line int) (model.RequirementRow, bool, error) {
	title := raw.At(colTitle).Text()
	desc := raw.At(colDescription).Text()
	if title == "" && desc == "" {
		return model.RequirementRow{}, false, nil
	}
	effort, err := decimalCell(raw.At(colEffort), line, "effort")
	if err != nil {
		return model.RequirementRow{}, false, err
	}
	return model.RequirementRow{
		Line:               line,
		Title:              title,
		Description:        desc,
		Type:               model.RequirementType(enumText(raw.At(colType))),
		Status:             NormalizeStatus(raw.At(colStatus).Text()),
		Priority:           model.Priority(enumText(raw.At(colPriority))),
		Source:             raw.At(colSource).Text(),
		EstimatedEffort:    effort,
		AcceptanceCriteria: splitList(raw.At(colAcceptanceCriteria).Text(), ";"),
		Tags:               splitList(raw.At(colTags).Text(), ","),
	}, true, nil
}

// statusTable maps uppercased status text to a lifecycle status.
var statusTable = map[string]model.Status{
	"DRAFT":       model.StatusDraft,
	"NEW":         model.StatusDraft,
	"TODO":        model.StatusDraft,
	"TO DO":       model.StatusDraft,
	"OPEN":        model.StatusDraft,
	"PENDING":     model.StatusDraft,
	"NOT STARTED": model.StatusDraft,
	"REVIEW":      model.StatusReview,
	"IN REVIEW":   model.StatusReview,
	"IN PROGRESS": model.StatusReview,
	"IN_PROGRESS": model.StatusReview,
	"ONGOING":     model.StatusReview,
	"WIP":         model.StatusReview,
	"APPROVED":    model.StatusApproved,
	"IMPLEMENTED": model.StatusImplemented,
	"VERIFIED":    model.StatusVerified,
	"TESTED":      model.StatusVerified,
	"CLOSED":      model.StatusClosed,
	"COMPLETE":    model.StatusClosed,
	"COMPLETED":   model.StatusClosed,
	"DONE":        model.StatusClosed,
}

// NormalizeStatus maps free-text status to a lifecycle status. Unknown or
// missing text yields DRAFT.
func NormalizeStatus(text string) model.Status {
	key := strings.ToUpper(strings.Join(strings.Fields(text), " "))
	if s, ok := statusTable[key]; ok {
		return s
	}
	return model.StatusDraft
}

// enumText uppercases a cell and joins words with underscores, so
// "Non-functional" reads as NON_FUNCTIONAL.
func enumText(c Cell) string {
	t := strings.ToUpper(c.Text())
	t = strings.NewReplacer("-", " ", "_", " ").Replace(t)
	return strings.Join(strings.Fields(t), "_")
}

func splitList(text, seps string) []string {
	if text == "" {
		return nil
	}
	parts := strings.FieldsFunc(text, func(r rune) bool { return strings.ContainsRune(seps, r) })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// intCell reads a non-negative whole number. Blank reads as zero.
func intCell(c Cell, line int, column string) (int, error) {
	switch c.Kind {
	case CellNumber:
		if c.Num < 0 || c.Num != math.Trunc(c.Num) {
			return 0, &model.ParseFormatError{Line: line, Column: column, Reason: fmt.Sprintf("want a whole number, got %v", c.Num)}
		}
		return int(c.Num), nil
	case CellString:
		t := c.Text()
		if t == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			return 0, &model.ParseFormatError{Line: line, Column: column, Reason: fmt.Sprintf("want a whole number, got %q", t)}
		}
		return n, nil
	default:
		return 0, nil
	}
}

// decimalCell reads an optional number.
func decimalCell(c Cell, line int, column string) (decimal.NullDecimal, error) {
	switch c.Kind {
	case CellNumber:
		return decimal.NullDecimal{Decimal: decimal.NewFromFloat(c.Num), Valid: true}, nil
	case CellString:
		t := c.Text()
		if t == "" {
			return decimal.NullDecimal{}, nil
		}
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.NullDecimal{}, &model.ParseFormatError{Line: line, Column: column, Reason: fmt.Sprintf("want a number, got %q", t)}
		}
		return decimal.NullDecimal{Decimal: d, Valid: true}, nil
	default:
		return decimal.NullDecimal{}, nil
	}
}
