// Package service implements the requirement lifecycle: creation with
// identifier allocation, versioned updates, baselines, links and deletion.
// Every mutation persists its history entry in the same store transaction
// and then publishes an event best-effort.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/reqtrace/internal/events"
	"github.com/alfredjeanlab/reqtrace/internal/history"
	"github.com/alfredjeanlab/reqtrace/internal/idgen"
	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/store"
)

// InputError indicates invalid caller input. Frontends report it verbatim.
type InputError string

func (e InputError) Error() string { return string(e) }

// Options configures a Service. Zero values select defaults.
type Options struct {
	Publisher events.Publisher
	Logger    *slog.Logger
	IDs       idgen.Options
	Now       func() time.Time
}

// Service coordinates the store, identifier allocator, history recorder
// and event publisher.
type Service struct {
	store     store.Store
	publisher events.Publisher
	alloc     *idgen.Allocator
	recorder  *history.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Service backed by s.
func New(s store.Store, opts Options) *Service {
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IDs.Now == nil {
		opts.IDs.Now = opts.Now
	}
	now := func() time.Time { return opts.Now().UTC() }
	return &Service{
		store:     s,
		publisher: opts.Publisher,
		alloc:     idgen.NewAllocator(s, opts.IDs),
		recorder:  &history.Recorder{Now: now},
		logger:    opts.Logger,
		now:       now,
	}
}

// publish sends event on topic. Failures are logged and never returned.
func (s *Service) publish(ctx context.Context, topic, requirementID string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "requirement_id", requirementID, "error", err)
	}
}

// Publish exposes best-effort publishing to sibling packages.
func (s *Service) Publish(ctx context.Context, topic, subject string, event any) {
	s.publish(ctx, topic, subject, event)
}

// Store returns the backing store.
func (s *Service) Store() store.Store {
	return s.store
}

// Get returns a requirement by its opaque key.
func (s *Service) Get(ctx context.Context, id string) (*model.Requirement, error) {
	return s.store.GetRequirement(ctx, id)
}

// GetByRequirementID returns a requirement by its human-readable identifier.
func (s *Service) GetByRequirementID(ctx context.Context, requirementID string) (*model.Requirement, error) {
	return s.store.GetRequirementByRequirementID(ctx, requirementID)
}

// Resolve accepts either identifier form. References starting with "REQ-"
// are looked up as requirement IDs, anything else as opaque keys.
func (s *Service) Resolve(ctx context.Context, ref string) (*model.Requirement, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, InputError("requirement reference is required")
	}
	if strings.HasPrefix(strings.ToUpper(ref), "REQ-") {
		return s.store.GetRequirementByRequirementID(ctx, strings.ToUpper(ref))
	}
	return s.store.GetRequirement(ctx, ref)
}

// List returns requirements matching filter.
func (s *Service) List(ctx context.Context, filter model.RequirementFilter) ([]*model.Requirement, error) {
	return s.store.ListRequirements(ctx, filter)
}

// History returns the entries recorded for the requirement with opaque key
// id, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]*model.HistoryEntry, error) {
	if _, err := s.store.GetRequirement(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetHistory(ctx, id)
}

// Delete removes a requirement. The store cascades its history, links and
// dependencies; children become roots.
func (s *Service) Delete(ctx context.Context, id string) error {
	r, err := s.store.GetRequirement(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRequirement(ctx, id); err != nil {
		return fmt.Errorf("failed to delete requirement: %w", err)
	}
	s.publish(ctx, events.TopicRequirementDeleted, r.ID, events.RequirementDeleted{
		ID:            r.ID,
		RequirementID: r.RequirementID,
		ProjectID:     r.ProjectID,
	})
	return nil
}

// notFound reports whether err means a record is missing.
func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
