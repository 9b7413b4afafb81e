package idgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/alfredjeanlab/reqtrace/internal/store"
)

// Defaults for Options fields left at zero.
const (
	DefaultPrefixLength  = 4
	DefaultSequenceWidth = 3
	DefaultProbeAttempts = 3
	DefaultFallbackTries = 8
	requirementIDLeader  = "REQ"

	// stampJitter bounds the random skip after a timestamp collision.
	stampJitter = 1 << 12
)

// Counter is the read side the allocator probes before committing.
type Counter interface {
	CountRequirements(ctx context.Context, projectID string) (int, error)
	RequirementIDExists(ctx context.Context, requirementID string) (bool, error)
}

// CommitFunc persists a record under the candidate requirement ID. It must
// return an error matching store.ErrDuplicateRequirementID when the ID is
// already taken, so the allocator can fall back.
type CommitFunc func(ctx context.Context, requirementID string) error

// Options tunes identifier shape and probing.
type Options struct {
	PrefixLength  int
	SequenceWidth int
	ProbeAttempts int
	FallbackTries int
	Now           func() time.Time
}

// Allocation describes the identifier that was committed.
type Allocation struct {
	RequirementID string
	// Fallback is true when the counter-based ID was taken, at probe or
	// commit time, and a timestamp-suffixed ID was used instead.
	Fallback bool
	// Collisions counts candidates found taken by the probe or by commit.
	Collisions int
}

// Allocator hands out REQ-<PREFIX>-<SEQ> identifiers. The sequence is the
// project's requirement count plus one; that count-then-commit is racy, so
// a taken ID, found by the probe or at commit time, switches to
// REQ-<PREFIX>-<base36 timestamp>.
type Allocator struct {
	counter Counter
	opts    Options

	mu   sync.Mutex
	last int64
}

// NewAllocator returns an allocator probing counter.
func NewAllocator(counter Counter, opts Options) *Allocator {
	if opts.PrefixLength <= 0 {
		opts.PrefixLength = DefaultPrefixLength
	}
	if opts.SequenceWidth <= 0 {
		opts.SequenceWidth = DefaultSequenceWidth
	}
	if opts.ProbeAttempts <= 0 {
		opts.ProbeAttempts = DefaultProbeAttempts
	}
	if opts.FallbackTries <= 0 {
		opts.FallbackTries = DefaultFallbackTries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Allocator{counter: counter, opts: opts}
}

// ProjectPrefix returns the uppercased leading alphanumerics of projectID,
// cut to n characters.
func ProjectPrefix(projectID string, n int) string {
	var b strings.Builder
	for _, r := range projectID {
		if b.Len() >= n {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return "PRJ"
	}
	return b.String()
}

// SequenceID formats the counter-based identifier.
func (a *Allocator) SequenceID(projectID string, seq int) string {
	return fmt.Sprintf("%s-%s-%0*d", requirementIDLeader, ProjectPrefix(projectID, a.opts.PrefixLength), a.opts.SequenceWidth, seq)
}

// TimestampID formats the fallback identifier for the given suffix value.
func (a *Allocator) TimestampID(projectID string, ts int64) string {
	return fmt.Sprintf("%s-%s-%s", requirementIDLeader, ProjectPrefix(projectID, a.opts.PrefixLength), strings.ToUpper(strconv.FormatInt(ts, 36)))
}

// Next returns the candidate for projectID and reports whether it is in
// the timestamp form. The counter form is used only when it is free. A
// taken counter ID is a collision: timestamp candidates are probed instead,
// up to ProbeAttempts times, and the last one is returned even if taken so
// commit can decide.
func (a *Allocator) Next(ctx context.Context, projectID string) (candidate string, fallback bool, err error) {
	n, err := a.counter.CountRequirements(ctx, projectID)
	if err != nil {
		return "", false, fmt.Errorf("count requirements: %w", err)
	}
	candidate = a.SequenceID(projectID, n+1)
	exists, err := a.counter.RequirementIDExists(ctx, candidate)
	if err != nil {
		return "", false, fmt.Errorf("probe requirement id: %w", err)
	}
	if !exists {
		return candidate, false, nil
	}
	for i := 0; i < a.opts.ProbeAttempts; i++ {
		candidate = a.TimestampID(projectID, a.nextStamp(i > 0))
		exists, err = a.counter.RequirementIDExists(ctx, candidate)
		if err != nil {
			return "", false, fmt.Errorf("probe requirement id: %w", err)
		}
		if !exists {
			break
		}
	}
	return candidate, true, nil
}

// Allocate picks a candidate ID and commits it. A duplicate reported by
// commit is absorbed: the allocator retries with timestamp-suffixed IDs,
// which advance monotonically within this allocator and jump by a random
// offset after a collision with another writer.
func (a *Allocator) Allocate(ctx context.Context, projectID string, commit CommitFunc) (Allocation, error) {
	candidate, fallback, err := a.Next(ctx, projectID)
	if err != nil {
		return Allocation{}, err
	}

	alloc := Allocation{Fallback: fallback}
	if fallback {
		alloc.Collisions++
	}
	err = commit(ctx, candidate)
	if err == nil {
		alloc.RequirementID = candidate
		return alloc, nil
	}
	if !errors.Is(err, store.ErrDuplicateRequirementID) {
		return Allocation{}, err
	}
	alloc.Collisions++

	for i := 0; i < a.opts.FallbackTries; i++ {
		if err := ctx.Err(); err != nil {
			return Allocation{}, err
		}
		// A timestamp candidate that already collided means another writer
		// holds the same clock range.
		candidate = a.TimestampID(projectID, a.nextStamp(alloc.Fallback || i > 0))
		alloc.Fallback = true
		err = commit(ctx, candidate)
		if err == nil {
			alloc.RequirementID = candidate
			return alloc, nil
		}
		if !errors.Is(err, store.ErrDuplicateRequirementID) {
			return Allocation{}, err
		}
		alloc.Collisions++
	}
	return Allocation{}, fmt.Errorf("allocate requirement id for project %s: %d collisions: %w",
		projectID, alloc.Collisions, store.ErrDuplicateRequirementID)
}

// nextStamp returns a millisecond timestamp strictly greater than any
// previously returned by this allocator. With jitter it skips ahead by a
// random amount.
func (a *Allocator) nextStamp(jitter bool) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts := a.opts.Now().UnixMilli()
	if ts <= a.last {
		ts = a.last + 1
	}
	if jitter {
		ts += rand.Int64N(stampJitter)
	}
	a.last = ts
	return ts
}
