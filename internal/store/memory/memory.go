// Package memory implements store.Store in process memory. It enforces the
// same uniqueness, optimistic-version and cascade rules as the PostgreSQL
// store and is used for tests and dry-run imports.
package memory

import (
	"cmp"
	"context"
	"database/sql"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/store"
)

type stakeholderRef struct {
	stakeholderID string
	role          model.StakeholderRole
}

type state struct {
	requirements map[string]model.Requirement
	byReqID      map[string]string // requirement_id -> id
	created      map[string]int64  // id -> insertion sequence
	seq          int64

	history       map[string][]model.HistoryEntry
	nextHistoryID int64
	deps          map[string][]model.Dependency

	stakeholders map[string]model.Stakeholder
	tasks        map[string]model.Task
	meetings     map[string]model.Meeting
	testCases    map[string]model.TestCase

	stakeholderLinks map[string][]stakeholderRef
	taskLinks        map[string][]string
	meetingLinks     map[string][]string
	testCaseLinks    map[string][]string
}

func newState() *state {
	return &state{
		requirements:     make(map[string]model.Requirement),
		byReqID:          make(map[string]string),
		created:          make(map[string]int64),
		history:          make(map[string][]model.HistoryEntry),
		deps:             make(map[string][]model.Dependency),
		stakeholders:     make(map[string]model.Stakeholder),
		tasks:            make(map[string]model.Task),
		meetings:         make(map[string]model.Meeting),
		testCases:        make(map[string]model.TestCase),
		stakeholderLinks: make(map[string][]stakeholderRef),
		taskLinks:        make(map[string][]string),
		meetingLinks:     make(map[string][]string),
		testCaseLinks:    make(map[string][]string),
	}
}

func cloneSliceMap[V any](m map[string][]V) map[string][]V {
	out := make(map[string][]V, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

func (st *state) clone() *state {
	return &state{
		requirements:     maps.Clone(st.requirements),
		byReqID:          maps.Clone(st.byReqID),
		created:          maps.Clone(st.created),
		seq:              st.seq,
		history:          cloneSliceMap(st.history),
		nextHistoryID:    st.nextHistoryID,
		deps:             cloneSliceMap(st.deps),
		stakeholders:     maps.Clone(st.stakeholders),
		tasks:            maps.Clone(st.tasks),
		meetings:         maps.Clone(st.meetings),
		testCases:        maps.Clone(st.testCases),
		stakeholderLinks: cloneSliceMap(st.stakeholderLinks),
		taskLinks:        cloneSliceMap(st.taskLinks),
		meetingLinks:     cloneSliceMap(st.meetingLinks),
		testCaseLinks:    cloneSliceMap(st.testCaseLinks),
	}
}

// Store is an in-memory store.Store. Inside RunInTransaction the callback
// receives a Store bound to a private copy of the state that replaces the
// shared state on success.
type Store struct {
	mu *sync.Mutex
	st *state
	tx bool
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

func (s *Store) lock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RunInTransaction runs fn against a copy of the state and commits the copy
// when fn returns nil. Transactions are serialized.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	if s.tx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&Store{mu: s.mu, st: work, tx: true}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// PutStakeholder, PutTask, PutMeeting and PutTestCase seed collaborator
// records that other subsystems own.

func (s *Store) PutStakeholder(v model.Stakeholder) {
	defer s.lock()()
	s.st.stakeholders[v.ID] = v
}

func (s *Store) PutTask(v model.Task) {
	defer s.lock()()
	s.st.tasks[v.ID] = v
}

func (s *Store) PutMeeting(v model.Meeting) {
	defer s.lock()()
	s.st.meetings[v.ID] = v
}

func (s *Store) PutTestCase(v model.TestCase) {
	defer s.lock()()
	s.st.testCases[v.ID] = v
}

func (s *Store) CreateRequirement(_ context.Context, r *model.Requirement) error {
	defer s.lock()()
	if _, ok := s.st.requirements[r.ID]; ok {
		return store.ErrDuplicateRequirementID
	}
	if _, ok := s.st.byReqID[r.RequirementID]; ok {
		return store.ErrDuplicateRequirementID
	}
	if r.ParentID != nil {
		if _, ok := s.st.requirements[*r.ParentID]; !ok {
			return sql.ErrNoRows
		}
	}
	s.st.seq++
	s.st.requirements[r.ID] = *r.Clone()
	s.st.byReqID[r.RequirementID] = r.ID
	s.st.created[r.ID] = s.st.seq
	return nil
}

func (s *Store) GetRequirement(_ context.Context, id string) (*model.Requirement, error) {
	defer s.lock()()
	r, ok := s.st.requirements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r.Clone(), nil
}

func (s *Store) GetRequirementByRequirementID(_ context.Context, requirementID string) (*model.Requirement, error) {
	defer s.lock()()
	id, ok := s.st.byReqID[requirementID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r := s.st.requirements[id]
	return r.Clone(), nil
}

func (s *Store) ListRequirements(_ context.Context, filter model.RequirementFilter) ([]*model.Requirement, error) {
	defer s.lock()()
	return s.st.list(filter), nil
}

func (st *state) list(filter model.RequirementFilter) []*model.Requirement {
	var out []*model.Requirement
	for _, r := range st.requirements {
		if matches(&r, filter) {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Requirement) int {
		return cmp.Compare(st.created[a.ID], st.created[b.ID])
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func matches(r *model.Requirement, f model.RequirementFilter) bool {
	if f.ProjectID != "" && r.ProjectID != f.ProjectID {
		return false
	}
	if len(f.Status) > 0 && !slices.Contains(f.Status, r.Status) {
		return false
	}
	if len(f.Type) > 0 && !slices.Contains(f.Type, r.Type) {
		return false
	}
	if len(f.Priority) > 0 && !slices.Contains(f.Priority, r.Priority) {
		return false
	}
	if f.Epic != "" && r.Epic != f.Epic {
		return false
	}
	if f.ParentID != "" && (r.ParentID == nil || *r.ParentID != f.ParentID) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Title), q) && !strings.Contains(strings.ToLower(r.Description), q) {
			return false
		}
	}
	return true
}

func (s *Store) UpdateRequirement(_ context.Context, r *model.Requirement, expectedVersion int) error {
	defer s.lock()()
	cur, ok := s.st.requirements[r.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if cur.Version != expectedVersion {
		return &model.VersionConflictError{ID: r.ID, Expected: expectedVersion, Actual: cur.Version}
	}
	if r.RequirementID != cur.RequirementID {
		if _, taken := s.st.byReqID[r.RequirementID]; taken {
			return store.ErrDuplicateRequirementID
		}
		delete(s.st.byReqID, cur.RequirementID)
		s.st.byReqID[r.RequirementID] = r.ID
	}
	if r.ParentID != nil {
		if _, ok := s.st.requirements[*r.ParentID]; !ok {
			return sql.ErrNoRows
		}
	}
	next := *r.Clone()
	next.CreatedAt = cur.CreatedAt
	next.CreatedBy = cur.CreatedBy
	next.UpdatedAt = time.Now().UTC()
	r.UpdatedAt = next.UpdatedAt
	s.st.requirements[r.ID] = next
	return nil
}

func (s *Store) SetParent(_ context.Context, id string, parentID *string) error {
	defer s.lock()()
	r, ok := s.st.requirements[id]
	if !ok {
		return sql.ErrNoRows
	}
	if parentID != nil {
		if _, ok := s.st.requirements[*parentID]; !ok {
			return sql.ErrNoRows
		}
		p := *parentID
		r.ParentID = &p
	} else {
		r.ParentID = nil
	}
	r.UpdatedAt = time.Now().UTC()
	s.st.requirements[id] = r
	return nil
}

func (s *Store) SetBaseline(_ context.Context, id string, version int, at time.Time) error {
	defer s.lock()()
	r, ok := s.st.requirements[id]
	if !ok {
		return sql.ErrNoRows
	}
	v := version
	t := at
	r.IsBaseline = true
	r.BaselineVersion = &v
	r.BaselineDate = &t
	s.st.requirements[id] = r
	return nil
}

// DeleteRequirement removes the requirement with its history, dependencies
// and links. Children become roots.
func (s *Store) DeleteRequirement(_ context.Context, id string) error {
	defer s.lock()()
	r, ok := s.st.requirements[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(s.st.requirements, id)
	delete(s.st.byReqID, r.RequirementID)
	delete(s.st.created, id)
	delete(s.st.history, id)
	delete(s.st.deps, id)
	delete(s.st.stakeholderLinks, id)
	delete(s.st.taskLinks, id)
	delete(s.st.meetingLinks, id)
	delete(s.st.testCaseLinks, id)

	for key, deps := range s.st.deps {
		s.st.deps[key] = slices.DeleteFunc(deps, func(d model.Dependency) bool { return d.DependsOnID == id })
	}
	for cid, child := range s.st.requirements {
		if child.ParentID != nil && *child.ParentID == id {
			child.ParentID = nil
			s.st.requirements[cid] = child
		}
	}
	return nil
}

func (s *Store) CountRequirements(_ context.Context, projectID string) (int, error) {
	defer s.lock()()
	n := 0
	for _, r := range s.st.requirements {
		if r.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

func (s *Store) RequirementIDExists(_ context.Context, requirementID string) (bool, error) {
	defer s.lock()()
	_, ok := s.st.byReqID[requirementID]
	return ok, nil
}

func (s *Store) AppendHistory(_ context.Context, entry *model.HistoryEntry) error {
	defer s.lock()()
	if _, ok := s.st.requirements[entry.RequirementID]; !ok {
		return sql.ErrNoRows
	}
	s.st.nextHistoryID++
	entry.ID = s.st.nextHistoryID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.st.history[entry.RequirementID] = append(s.st.history[entry.RequirementID], *entry)
	return nil
}

func (s *Store) GetHistory(_ context.Context, requirementID string) ([]*model.HistoryEntry, error) {
	defer s.lock()()
	entries := s.st.history[requirementID]
	out := make([]*model.HistoryEntry, len(entries))
	for i := range entries {
		e := entries[i]
		out[i] = &e
	}
	return out, nil
}

func (s *Store) AddDependency(_ context.Context, dep *model.Dependency) error {
	defer s.lock()()
	if _, ok := s.st.requirements[dep.RequirementID]; !ok {
		return sql.ErrNoRows
	}
	if _, ok := s.st.requirements[dep.DependsOnID]; !ok {
		return sql.ErrNoRows
	}
	for _, d := range s.st.deps[dep.RequirementID] {
		if d.DependsOnID == dep.DependsOnID {
			return nil
		}
	}
	s.st.deps[dep.RequirementID] = append(s.st.deps[dep.RequirementID], *dep)
	return nil
}

func (s *Store) GetDependencies(_ context.Context, requirementID string) ([]*model.Dependency, error) {
	defer s.lock()()
	deps := s.st.deps[requirementID]
	out := make([]*model.Dependency, len(deps))
	for i := range deps {
		d := deps[i]
		out[i] = &d
	}
	return out, nil
}

func (s *Store) LinkStakeholder(_ context.Context, requirementID, stakeholderID string, role model.StakeholderRole) error {
	defer s.lock()()
	if _, ok := s.st.requirements[requirementID]; !ok {
		return sql.ErrNoRows
	}
	if _, ok := s.st.stakeholders[stakeholderID]; !ok {
		return sql.ErrNoRows
	}
	refs := s.st.stakeholderLinks[requirementID]
	for i, ref := range refs {
		if ref.stakeholderID == stakeholderID {
			refs[i].role = role
			return nil
		}
	}
	s.st.stakeholderLinks[requirementID] = append(refs, stakeholderRef{stakeholderID: stakeholderID, role: role})
	return nil
}

// addLink appends target to links[requirementID] once and reports whether
// it was added.
func (st *state) addLink(links map[string][]string, requirementID, target string, exists bool) (bool, error) {
	if _, ok := st.requirements[requirementID]; !ok || !exists {
		return false, sql.ErrNoRows
	}
	if slices.Contains(links[requirementID], target) {
		return false, nil
	}
	links[requirementID] = append(links[requirementID], target)
	return true, nil
}

func (s *Store) LinkTask(_ context.Context, requirementID, taskID string) (bool, error) {
	defer s.lock()()
	_, ok := s.st.tasks[taskID]
	return s.st.addLink(s.st.taskLinks, requirementID, taskID, ok)
}

func (s *Store) LinkMeeting(_ context.Context, requirementID, meetingID string) (bool, error) {
	defer s.lock()()
	_, ok := s.st.meetings[meetingID]
	return s.st.addLink(s.st.meetingLinks, requirementID, meetingID, ok)
}

func (s *Store) LinkTestCase(_ context.Context, requirementID, testCaseID string) (bool, error) {
	defer s.lock()()
	_, ok := s.st.testCases[testCaseID]
	return s.st.addLink(s.st.testCaseLinks, requirementID, testCaseID, ok)
}

func (s *Store) GetStakeholder(_ context.Context, id string) (*model.Stakeholder, error) {
	defer s.lock()()
	v, ok := s.st.stakeholders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (s *Store) GetTask(_ context.Context, id string) (*model.Task, error) {
	defer s.lock()()
	v, ok := s.st.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (s *Store) GetMeeting(_ context.Context, id string) (*model.Meeting, error) {
	defer s.lock()()
	v, ok := s.st.meetings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (s *Store) GetTestCase(_ context.Context, id string) (*model.TestCase, error) {
	defer s.lock()()
	v, ok := s.st.testCases[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (s *Store) ListStakeholderLinks(_ context.Context, projectID string) ([]*model.StakeholderLink, error) {
	defer s.lock()()
	var out []*model.StakeholderLink
	for _, r := range s.st.list(model.RequirementFilter{ProjectID: projectID}) {
		for _, ref := range s.st.stakeholderLinks[r.ID] {
			out = append(out, &model.StakeholderLink{
				RequirementID: r.ID,
				Stakeholder:   s.st.stakeholders[ref.stakeholderID],
				Role:          ref.role,
			})
		}
	}
	return out, nil
}

func (s *Store) ListTaskLinks(_ context.Context, projectID string) ([]*model.TaskLink, error) {
	defer s.lock()()
	var out []*model.TaskLink
	for _, r := range s.st.list(model.RequirementFilter{ProjectID: projectID}) {
		for _, id := range s.st.taskLinks[r.ID] {
			out = append(out, &model.TaskLink{RequirementID: r.ID, Task: s.st.tasks[id]})
		}
	}
	return out, nil
}

func (s *Store) ListMeetingLinks(_ context.Context, projectID string) ([]*model.MeetingLink, error) {
	defer s.lock()()
	var out []*model.MeetingLink
	for _, r := range s.st.list(model.RequirementFilter{ProjectID: projectID}) {
		for _, id := range s.st.meetingLinks[r.ID] {
			out = append(out, &model.MeetingLink{RequirementID: r.ID, Meeting: s.st.meetings[id]})
		}
	}
	return out, nil
}

func (s *Store) ListTestCaseLinks(_ context.Context, projectID string) ([]*model.TestCaseLink, error) {
	defer s.lock()()
	var out []*model.TestCaseLink
	for _, r := range s.st.list(model.RequirementFilter{ProjectID: projectID}) {
		for _, id := range s.st.testCaseLinks[r.ID] {
			out = append(out, &model.TestCaseLink{RequirementID: r.ID, TestCase: s.st.testCases[id]})
		}
	}
	return out, nil
}
