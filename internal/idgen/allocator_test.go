package idgen

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/store"
	"github.com/alfredjeanlab/reqtrace/internal/store/memory"
)

// blindCounter never sees existing IDs, like a probe that ran just before
// a concurrent writer committed.
type blindCounter struct {
	Counter
}

func (blindCounter) RequirementIDExists(context.Context, string) (bool, error) {
	return false, nil
}

func commitTo(s store.Store, projectID string) CommitFunc {
	return func(ctx context.Context, requirementID string) error {
		id, err := Generate()
		if err != nil {
			return err
		}
		return s.CreateRequirement(ctx, &model.Requirement{
			ID: id, RequirementID: requirementID, ProjectID: projectID,
			Title: "r", Type: model.TypeFunctional, Status: model.StatusDraft, Priority: model.PriorityMedium, Version: 1,
		})
	}
}

func TestProjectPrefix(t *testing.T) {
	for _, tc := range []struct {
		in   string
		n    int
		want string
	}{
		{"cl9x2abc", 4, "CL9X"},
		{"ab", 4, "AB"},
		{"a-b_c.d-e", 4, "ABCD"},
		{"proj", 2, "PR"},
		{"--", 4, "PRJ"},
		{"", 4, "PRJ"},
	} {
		if got := ProjectPrefix(tc.in, tc.n); got != tc.want {
			t.Errorf("ProjectPrefix(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestAllocate_SequentialIDs(t *testing.T) {
	ctx := context.Background()
	ms := memory.New()
	a := NewAllocator(ms, Options{})

	for i := 1; i <= 3; i++ {
		got, err := a.Allocate(ctx, "abcd1234", commitTo(ms, "abcd1234"))
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		want := fmt.Sprintf("REQ-ABCD-%03d", i)
		if got.RequirementID != want || got.Fallback {
			t.Fatalf("Allocate #%d = %+v, want %s without fallback", i, got, want)
		}
	}
}

func TestAllocate_PreseededNextIDUsesTimestamp(t *testing.T) {
	ctx := context.Background()
	ms := memory.New()
	now := time.UnixMilli(1_700_000_000_000)
	a := NewAllocator(ms, Options{Now: func() time.Time { return now }})

	// Another project with the same prefix already holds the next expected ID.
	if err := commitTo(ms, "abcdOTHER")(ctx, "REQ-ABCD-001"); err != nil {
		t.Fatal(err)
	}

	got, err := a.Allocate(ctx, "abcd1234", commitTo(ms, "abcd1234"))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	want := "REQ-ABCD-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	if got.RequirementID != want {
		t.Fatalf("RequirementID = %q, want %q", got.RequirementID, want)
	}
	if !got.Fallback || got.Collisions != 1 {
		t.Fatalf("expected fallback after one collision, got %+v", got)
	}
}

func TestNext_FreeCandidateKeepsCounterForm(t *testing.T) {
	ms := memory.New()
	a := NewAllocator(ms, Options{})

	got, fallback, err := a.Next(context.Background(), "abcd1234")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "REQ-ABCD-001" || fallback {
		t.Fatalf("Next = %q (fallback %v), want REQ-ABCD-001", got, fallback)
	}
}

func TestAllocate_CollisionFallsBackToTimestamp(t *testing.T) {
	ctx := context.Background()
	ms := memory.New()
	now := time.UnixMilli(1_700_000_000_000)
	a := NewAllocator(blindCounter{ms}, Options{Now: func() time.Time { return now }})

	// Pre-seed the next expected ID from a different project.
	if err := commitTo(ms, "abcdOTHER")(ctx, "REQ-ABCD-001"); err != nil {
		t.Fatal(err)
	}

	got, err := a.Allocate(ctx, "abcd1234", commitTo(ms, "abcd1234"))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	want := "REQ-ABCD-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	if got.RequirementID != want {
		t.Fatalf("RequirementID = %q, want %q", got.RequirementID, want)
	}
	if !got.Fallback || got.Collisions != 1 {
		t.Fatalf("expected one collision with fallback, got %+v", got)
	}

	// The frozen clock still yields a fresh suffix on the next fallback.
	again, err := a.Allocate(ctx, "abcd1234", commitTo(ms, "abcd1234"))
	if err != nil {
		t.Fatalf("second Allocate: %v", err)
	}
	if again.RequirementID == got.RequirementID {
		t.Fatalf("fallback reused %q", got.RequirementID)
	}
}

func TestAllocate_NonConflictErrorIsReturned(t *testing.T) {
	ms := memory.New()
	a := NewAllocator(ms, Options{})
	boom := errors.New("disk full")

	_, err := a.Allocate(context.Background(), "abcd", func(context.Context, string) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestAllocate_GivesUpAfterFallbackTries(t *testing.T) {
	ms := memory.New()
	a := NewAllocator(ms, Options{FallbackTries: 2})
	calls := 0

	_, err := a.Allocate(context.Background(), "abcd", func(context.Context, string) error {
		calls++
		return store.ErrDuplicateRequirementID
	})
	if !errors.Is(err, store.ErrDuplicateRequirementID) {
		t.Fatalf("expected ErrDuplicateRequirementID, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("commit called %d times, want 3", calls)
	}
}

func TestAllocate_ConcurrentCallersGetUniqueIDs(t *testing.T) {
	for _, tc := range []struct {
		name       string
		allocators int
		perCaller  int
	}{
		{"SharedAllocator", 1, 64},
		{"SeparateAllocators", 8, 40},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			ms := memory.New()

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				ids  = make(map[string]struct{})
				errs []error
			)
			for range tc.allocators {
				// Each allocator stands in for a separate process on one database.
				a := NewAllocator(ms, Options{})
				for range tc.perCaller {
					wg.Add(1)
					go func() {
						defer wg.Done()
						got, err := a.Allocate(ctx, "race", commitTo(ms, "race"))
						mu.Lock()
						defer mu.Unlock()
						if err != nil {
							errs = append(errs, err)
							return
						}
						if _, dup := ids[got.RequirementID]; dup {
							errs = append(errs, fmt.Errorf("duplicate id %s", got.RequirementID))
						}
						ids[got.RequirementID] = struct{}{}
					}()
				}
			}
			wg.Wait()

			total := tc.allocators * tc.perCaller
			if len(errs) > 0 {
				t.Fatalf("allocation errors: %v", errs)
			}
			if len(ids) != total {
				t.Fatalf("got %d ids, want %d", len(ids), total)
			}
			n, _ := ms.CountRequirements(ctx, "race")
			if n != total {
				t.Fatalf("store holds %d requirements, want %d", n, total)
			}
			pattern := regexp.MustCompile(`^REQ-RACE-[0-9A-Z]+$`)
			for id := range ids {
				if !pattern.MatchString(id) {
					t.Errorf("id %q does not match %s", id, pattern)
				}
			}
		})
	}
}
