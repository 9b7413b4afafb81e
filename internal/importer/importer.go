// Package importer drives batch creation of requirements from canonical
// rows: pre-validation of the whole batch, per-row persistence, then a
// linking pass that resolves outline parents and dependencies.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/reqtrace/internal/events"
	"github.com/alfredjeanlab/reqtrace/internal/hierarchy"
	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/service"
	"github.com/alfredjeanlab/reqtrace/internal/sheet"
	"github.com/alfredjeanlab/reqtrace/internal/store"
)

// Importer imports batches of rows through a Service.
type Importer struct {
	svc    *service.Service
	store  store.Store
	logger *slog.Logger
}

// New returns an Importer. A nil logger uses slog.Default.
func New(svc *service.Service, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{svc: svc, store: svc.Store(), logger: logger}
}

// ImportSheet normalizes raw spreadsheet rows, reconstructs the outline
// hierarchy when present and imports the result. Format errors abort before
// any validation or write.
func (im *Importer) ImportSheet(ctx context.Context, raw []sheet.Row, layout sheet.Layout, projectID, actor string) (*model.ImportResult, error) {
	rows, err := sheet.Normalize(raw, layout)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 && sheet.DetectLayout(raw[0]) == sheet.LayoutHierarchical {
		rows = hierarchy.Reconstruct(rows)
	}
	return im.Import(ctx, rows, projectID, actor)
}

// Validate checks every row and returns a *model.BatchValidationError
// listing all rejected rows, or nil.
func Validate(rows []model.RequirementRow) error {
	var bad []model.RowError
	seen := make(map[string]int, len(rows))
	for i := range rows {
		row := &rows[i]
		var ve *model.ValidationError
		if err := model.ValidateRow(row); err != nil && !errors.As(err, &ve) {
			return err
		}
		if row.SequenceID != "" {
			if first, dup := seen[row.SequenceID]; dup {
				if ve == nil {
					ve = &model.ValidationError{}
				}
				ve.Errors = append(ve.Errors, model.FieldError{
					Field:   "sequence_id",
					Message: fmt.Sprintf("%q already used on row %d", row.SequenceID, first),
				})
			} else {
				seen[row.SequenceID] = row.Line
			}
		}
		if ve != nil {
			bad = append(bad, model.RowError{Line: row.Line, Label: row.Label(), Err: ve})
		}
	}
	if len(bad) > 0 {
		return &model.BatchValidationError{Rows: bad}
	}
	return nil
}

// Import persists rows for projectID on behalf of actor.
//
// Any invalid row rejects the whole batch with a *model.BatchValidationError
// before anything is written. Rows are then created one at a time; a row
// that fails to persist is counted and reported in the result while the
// remaining rows continue. Finally parents and dependencies declared by
// sequence id are resolved among the rows that were created; unresolved
// references leave the row as a root and are not failures.
func (im *Importer) Import(ctx context.Context, rows []model.RequirementRow, projectID, actor string) (*model.ImportResult, error) {
	if projectID == "" {
		return nil, service.InputError("project id is required")
	}
	if err := Validate(rows); err != nil {
		return nil, err
	}

	result := &model.ImportResult{
		BatchID: uuid.NewString(),
		Errors:  []string{},
	}
	log := im.logger.With("batch_id", result.BatchID, "project_id", projectID)
	log.Info("import started", "rows", len(rows), "actor", actor)

	// Created records indexed by source sequence id, for this call only.
	arena := make(map[string]*model.Requirement)

	for i := range rows {
		row := &rows[i]
		r, err := im.svc.Create(ctx, createInput(row, projectID, actor))
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", row.Label(), err))
			log.Warn("failed to import row", "row", row.Line, "title", row.Title, "error", err)
			continue
		}
		result.SuccessCount++
		result.Created = append(result.Created, model.ImportedRequirement{
			Line:          row.Line,
			SequenceID:    row.SequenceID,
			ID:            r.ID,
			RequirementID: r.RequirementID,
		})
		if row.SequenceID != "" {
			arena[row.SequenceID] = r
		}
	}

	im.link(ctx, log, rows, arena, result, actor)

	log.Info("import finished",
		"succeeded", result.SuccessCount,
		"failed", result.FailedCount,
		"linked", result.LinkedCount,
		"orphaned", result.OrphanCount)

	im.svc.Publish(ctx, events.TopicImportCompleted, result.BatchID, events.ImportCompleted{
		ProjectID: projectID,
		Actor:     actor,
		Result:    result,
	})
	return result, nil
}

func createInput(row *model.RequirementRow, projectID, actor string) service.CreateInput {
	return service.CreateInput{
		ProjectID:          projectID,
		Title:              row.Title,
		Description:        row.Description,
		AcceptanceCriteria: row.AcceptanceCriteria,
		Tags:               row.Tags,
		Type:               row.Type,
		Status:             row.Status,
		Priority:           row.Priority,
		Source:             row.Source,
		EstimatedEffort:    row.EstimatedEffort,
		Epic:               row.GroupKey,
		Notes:              row.Notes,
		CreatedBy:          actor,
	}
}

// link resolves parents and dependencies through the arena. Failures are
// logged at debug level and leave the row unlinked.
func (im *Importer) link(ctx context.Context, log *slog.Logger, rows []model.RequirementRow, arena map[string]*model.Requirement, result *model.ImportResult, actor string) {
	for i := range rows {
		row := &rows[i]
		child, ok := arena[row.SequenceID]
		if !ok {
			continue
		}

		if row.ParentSequenceID != "" {
			parent, found := arena[row.ParentSequenceID]
			switch {
			case !found:
				log.Debug("parent not resolved", "row", row.Line, "sequence_id", row.SequenceID, "parent", row.ParentSequenceID)
				result.OrphanCount++
			case parent.ProjectID != child.ProjectID:
				result.OrphanCount++
			default:
				if err := im.store.SetParent(ctx, child.ID, &parent.ID); err != nil {
					log.Debug("failed to link parent", "row", row.Line, "sequence_id", row.SequenceID, "error", err)
					result.OrphanCount++
				} else {
					pid := parent.ID
					child.ParentID = &pid
					result.LinkedCount++
				}
			}
		} else if row.Level > 0 {
			result.OrphanCount++
		}

		for _, ref := range row.Dependencies {
			target, found := arena[ref]
			if !found || target.ID == child.ID {
				log.Debug("dependency not resolved", "row", row.Line, "sequence_id", row.SequenceID, "ref", ref)
				continue
			}
			dep := &model.Dependency{
				RequirementID: child.ID,
				DependsOnID:   target.ID,
				CreatedAt:     child.CreatedAt,
				CreatedBy:     actor,
			}
			if err := im.store.AddDependency(ctx, dep); err != nil {
				log.Debug("failed to add dependency", "row", row.Line, "ref", ref, "error", err)
			}
		}
	}
}
