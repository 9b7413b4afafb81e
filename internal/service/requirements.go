package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/reqtrace/internal/events"
	"github.com/alfredjeanlab/reqtrace/internal/idgen"
	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/store"
)

// CreateInput holds the caller-supplied fields of a new requirement.
type CreateInput struct {
	ProjectID          string
	Title              string
	Description        string
	AcceptanceCriteria []string
	Tags               []string
	Type               model.RequirementType
	Status             model.Status
	Priority           model.Priority
	Source             string
	EstimatedEffort    decimal.NullDecimal
	ActualEffort       decimal.NullDecimal
	Epic               string
	Owner              string
	Notes              string
	ParentID           *string
	CreatedBy          string
}

// Create validates in, allocates a requirement ID and persists the
// requirement with its CREATED history entry in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Requirement, error) {
	id, err := idgen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}

	now := s.now()
	r := &model.Requirement{
		ID:                 id,
		ProjectID:          strings.TrimSpace(in.ProjectID),
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		AcceptanceCriteria: in.AcceptanceCriteria,
		Tags:               model.NormalizeTags(in.Tags),
		Type:               in.Type,
		Status:             in.Status,
		Priority:           in.Priority,
		Source:             in.Source,
		EstimatedEffort:    in.EstimatedEffort,
		ActualEffort:       in.ActualEffort,
		Epic:               in.Epic,
		Owner:              in.Owner,
		Notes:              in.Notes,
		ParentID:           in.ParentID,
		Version:            1,
		CreatedBy:          in.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if r.Type == "" {
		r.Type = model.TypeFunctional
	}
	if r.Status == "" {
		r.Status = model.StatusDraft
	}
	if r.Priority == "" {
		r.Priority = model.PriorityMedium
	}

	if err := model.ValidateRequirement(r); err != nil {
		return nil, err
	}
	if r.ParentID != nil {
		parent, err := s.store.GetRequirement(ctx, *r.ParentID)
		if notFound(err) {
			return nil, InputError("parent " + *r.ParentID + " not found")
		}
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != r.ProjectID {
			return nil, model.ErrParentProject
		}
	}

	created, err := s.recorder.Created(r, r.CreatedBy)
	if err != nil {
		return nil, err
	}

	alloc, err := s.alloc.Allocate(ctx, r.ProjectID, func(ctx context.Context, requirementID string) error {
		r.RequirementID = requirementID
		return s.store.RunInTransaction(ctx, func(tx store.Store) error {
			if err := tx.CreateRequirement(ctx, r); err != nil {
				return fmt.Errorf("failed to create requirement: %w", err)
			}
			entry := *created
			if err := tx.AppendHistory(ctx, &entry); err != nil {
				return fmt.Errorf("failed to append history: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if alloc.Fallback {
		s.logger.Info("requirement id collided, used timestamp suffix",
			"project_id", r.ProjectID, "requirement_id", alloc.RequirementID, "collisions", alloc.Collisions)
	}

	s.publish(ctx, events.TopicRequirementCreated, r.ID, events.RequirementCreated{Requirement: r})
	return r, nil
}

// UpdateInput holds a partial update. Nil fields are left unchanged.
// ExpectedVersion is the version the caller last read and must match the
// stored version for the update to apply.
type UpdateInput struct {
	ExpectedVersion    int
	Actor              string
	Title              *string
	Description        *string
	AcceptanceCriteria *[]string
	Tags               *[]string
	Type               *model.RequirementType
	Status             *model.Status
	Priority           *model.Priority
	Source             *string
	EstimatedEffort    *decimal.NullDecimal
	ActualEffort       *decimal.NullDecimal
	Epic               *string
	Owner              *string
	Notes              *string
}

func (in UpdateInput) apply(r *model.Requirement) {
	if in.Title != nil {
		r.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		r.Description = *in.Description
	}
	if in.AcceptanceCriteria != nil {
		r.AcceptanceCriteria = *in.AcceptanceCriteria
	}
	if in.Tags != nil {
		r.Tags = model.NormalizeTags(*in.Tags)
	}
	if in.Type != nil {
		r.Type = *in.Type
	}
	if in.Status != nil {
		r.Status = *in.Status
	}
	if in.Priority != nil {
		r.Priority = *in.Priority
	}
	if in.Source != nil {
		r.Source = *in.Source
	}
	if in.EstimatedEffort != nil {
		r.EstimatedEffort = *in.EstimatedEffort
	}
	if in.ActualEffort != nil {
		r.ActualEffort = *in.ActualEffort
	}
	if in.Epic != nil {
		r.Epic = *in.Epic
	}
	if in.Owner != nil {
		r.Owner = *in.Owner
	}
	if in.Notes != nil {
		r.Notes = *in.Notes
	}
}

// Update applies in to the requirement with opaque key id. It returns
// model.ErrNoChangesDetected for a no-op and a *model.VersionConflictError
// when the stored version differs from in.ExpectedVersion.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Requirement, *model.HistoryEntry, error) {
	if in.ExpectedVersion < 1 {
		return nil, nil, InputError("expected version is required")
	}
	return s.mutate(ctx, id, in.ExpectedVersion, in.Actor, func(r *model.Requirement) error {
		in.apply(r)
		return nil
	})
}

// SetParent moves the requirement with opaque key id under parentID, or to
// the root when parentID is nil. The parent must belong to the same project
// and must not be a descendant of id.
func (s *Service) SetParent(ctx context.Context, id string, parentID *string, actor string) (*model.Requirement, *model.HistoryEntry, error) {
	return s.mutate(ctx, id, 0, actor, func(r *model.Requirement) error {
		r.ParentID = parentID
		return nil
	})
}

// mutate runs edit against a copy of the current state and commits it as
// the next version. expected of 0 accepts whatever version is read inside
// the transaction.
func (s *Service) mutate(ctx context.Context, id string, expected int, actor string, edit func(*model.Requirement) error) (*model.Requirement, *model.HistoryEntry, error) {
	var (
		updated *model.Requirement
		entry   *model.HistoryEntry
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		cur, err := tx.GetRequirement(ctx, id)
		if err != nil {
			return err
		}
		if expected > 0 && cur.Version != expected {
			return &model.VersionConflictError{ID: cur.ID, Expected: expected, Actual: cur.Version}
		}

		next := cur.Clone()
		if err := edit(next); err != nil {
			return err
		}
		if err := model.ValidateRequirement(next); err != nil {
			return err
		}
		if !samePtr(cur.ParentID, next.ParentID) && next.ParentID != nil {
			if err := checkParent(ctx, tx, next, *next.ParentID); err != nil {
				return err
			}
		}

		e, err := s.recorder.RecordChange(cur, next, actor)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		if err := tx.UpdateRequirement(ctx, next, cur.Version); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, e); err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		updated, entry = next, e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.TopicRequirementUpdated, updated.ID, events.RequirementUpdated{Requirement: updated, Entry: entry})
	return updated, entry, nil
}

// checkParent rejects a parent from another project and any parent whose
// ancestor chain reaches r.
func checkParent(ctx context.Context, tx store.Store, r *model.Requirement, parentID string) error {
	seen := map[string]bool{r.ID: true}
	next := parentID
	for first := true; next != ""; first = false {
		if seen[next] {
			return model.ErrParentCycle
		}
		seen[next] = true
		p, err := tx.GetRequirement(ctx, next)
		if notFound(err) && first {
			return InputError("parent " + parentID + " not found")
		}
		if err != nil {
			return err
		}
		if first && p.ProjectID != r.ProjectID {
			return model.ErrParentProject
		}
		next = ""
		if p.ParentID != nil {
			next = *p.ParentID
		}
	}
	return nil
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Baseline marks the current version of the requirement as a baseline
// without creating a new version.
func (s *Service) Baseline(ctx context.Context, id, actor string) (*model.Requirement, error) {
	var baselined *model.Requirement
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		r, err := tx.GetRequirement(ctx, id)
		if err != nil {
			return err
		}
		at := s.now()
		entry := s.recorder.Baselined(r, r.BaselineVersion, actor)
		if err := tx.SetBaseline(ctx, id, r.Version, at); err != nil {
			return fmt.Errorf("failed to set baseline: %w", err)
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		v := r.Version
		r.IsBaseline = true
		r.BaselineVersion = &v
		r.BaselineDate = &at
		baselined = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicRequirementBaselined, baselined.ID, events.RequirementBaselined{Requirement: baselined})
	return baselined, nil
}

// AddDependency records that the requirement id depends on dependsOnID.
// Both must exist in the same project.
func (s *Service) AddDependency(ctx context.Context, id, dependsOnID, actor string) (*model.Dependency, error) {
	if id == dependsOnID {
		return nil, InputError("a requirement cannot depend on itself")
	}
	r, err := s.store.GetRequirement(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := s.store.GetRequirement(ctx, dependsOnID)
	if notFound(err) {
		return nil, InputError("dependency " + dependsOnID + " not found")
	}
	if err != nil {
		return nil, err
	}
	if target.ProjectID != r.ProjectID {
		return nil, InputError("dependency belongs to a different project")
	}

	dep := &model.Dependency{
		RequirementID: id,
		DependsOnID:   dependsOnID,
		CreatedAt:     s.now(),
		CreatedBy:     actor,
	}
	if err := s.store.AddDependency(ctx, dep); err != nil {
		return nil, fmt.Errorf("failed to add dependency: %w", err)
	}
	return dep, nil
}

// Dependencies returns what the requirement id depends on.
func (s *Service) Dependencies(ctx context.Context, id string) ([]*model.Dependency, error) {
	return s.store.GetDependencies(ctx, id)
}

// IsInput reports whether err should be shown to the caller as a usage
// problem rather than an internal failure.
func IsInput(err error) bool {
	var ie InputError
	var ve *model.ValidationError
	return errors.As(err, &ie) || errors.As(err, &ve) ||
		errors.Is(err, model.ErrParentCycle) || errors.Is(err, model.ErrParentProject) ||
		errors.Is(err, model.ErrNoChangesDetected)
}
