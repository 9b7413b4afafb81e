package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/reqtrace/internal/matrix"
)

// Deliver exports projectID once and writes the payload to every
// destination. It returns the first destination error after trying all.
func Deliver(ctx context.Context, src matrix.Source, projectID string, dests []Destination, logger *slog.Logger) error {
	data, err := Matrix(ctx, src, projectID)
	if err != nil {
		return fmt.Errorf("export matrix: %w", err)
	}
	var first error
	for i, dest := range dests {
		if err := dest.Write(ctx, data); err != nil {
			logger.Error("export destination write failed", "destination", describe(dest, i), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	logger.Info("export completed", "project_id", projectID, "destinations", len(dests), "bytes", len(data))
	return first
}

func describe(d Destination, i int) string {
	if s, ok := d.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%d", i)
}

// Scheduler re-exports a project on a fixed interval.
type Scheduler struct {
	src          matrix.Source
	projectID    string
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a scheduler exporting projectID from src.
func NewScheduler(src matrix.Source, projectID string, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		src:          src,
		projectID:    projectID,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start exports immediately and then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for an in-flight export.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.once(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.once(ctx)
		}
	}
}

func (s *Scheduler) once(ctx context.Context) {
	if err := Deliver(ctx, s.src, s.projectID, s.destinations, s.logger); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled export failed", "project_id", s.projectID, "error", err)
	}
}
