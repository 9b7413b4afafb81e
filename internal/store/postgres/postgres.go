// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already opened database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateRequirement(ctx context.Context, r *model.Requirement) error {
	return queryCreateRequirement(ctx, s.db, r)
}

func (s *PostgresStore) GetRequirement(ctx context.Context, id string) (*model.Requirement, error) {
	return queryGetRequirement(ctx, s.db, id)
}

func (s *PostgresStore) GetRequirementByRequirementID(ctx context.Context, requirementID string) (*model.Requirement, error) {
	return queryGetRequirementByRequirementID(ctx, s.db, requirementID)
}

func (s *PostgresStore) ListRequirements(ctx context.Context, filter model.RequirementFilter) ([]*model.Requirement, error) {
	return queryListRequirements(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateRequirement(ctx context.Context, r *model.Requirement, expectedVersion int) error {
	return queryUpdateRequirement(ctx, s.db, r, expectedVersion)
}

func (s *PostgresStore) SetParent(ctx context.Context, id string, parentID *string) error {
	return querySetParent(ctx, s.db, id, parentID)
}

func (s *PostgresStore) SetBaseline(ctx context.Context, id string, version int, at time.Time) error {
	return querySetBaseline(ctx, s.db, id, version, at)
}

func (s *PostgresStore) DeleteRequirement(ctx context.Context, id string) error {
	return queryDeleteRequirement(ctx, s.db, id)
}

func (s *PostgresStore) CountRequirements(ctx context.Context, projectID string) (int, error) {
	return queryCountRequirements(ctx, s.db, projectID)
}

func (s *PostgresStore) RequirementIDExists(ctx context.Context, requirementID string) (bool, error) {
	return queryRequirementIDExists(ctx, s.db, requirementID)
}

func (s *PostgresStore) AppendHistory(ctx context.Context, entry *model.HistoryEntry) error {
	return queryAppendHistory(ctx, s.db, entry)
}

func (s *PostgresStore) GetHistory(ctx context.Context, requirementID string) ([]*model.HistoryEntry, error) {
	return queryGetHistory(ctx, s.db, requirementID)
}

func (s *PostgresStore) AddDependency(ctx context.Context, dep *model.Dependency) error {
	return queryAddDependency(ctx, s.db, dep)
}

func (s *PostgresStore) GetDependencies(ctx context.Context, requirementID string) ([]*model.Dependency, error) {
	return queryGetDependencies(ctx, s.db, requirementID)
}

func (s *PostgresStore) LinkStakeholder(ctx context.Context, requirementID, stakeholderID string, role model.StakeholderRole) error {
	return queryLinkStakeholder(ctx, s.db, requirementID, stakeholderID, role)
}

func (s *PostgresStore) LinkTask(ctx context.Context, requirementID, taskID string) (bool, error) {
	return queryLink(ctx, s.db, "requirement_tasks", "task_id", requirementID, taskID)
}

func (s *PostgresStore) LinkMeeting(ctx context.Context, requirementID, meetingID string) (bool, error) {
	return queryLink(ctx, s.db, "requirement_meetings", "meeting_id", requirementID, meetingID)
}

func (s *PostgresStore) LinkTestCase(ctx context.Context, requirementID, testCaseID string) (bool, error) {
	return queryLink(ctx, s.db, "requirement_test_cases", "test_case_id", requirementID, testCaseID)
}

func (s *PostgresStore) GetStakeholder(ctx context.Context, id string) (*model.Stakeholder, error) {
	return queryGetStakeholder(ctx, s.db, id)
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, s.db, id)
}

func (s *PostgresStore) GetMeeting(ctx context.Context, id string) (*model.Meeting, error) {
	return queryGetMeeting(ctx, s.db, id)
}

func (s *PostgresStore) GetTestCase(ctx context.Context, id string) (*model.TestCase, error) {
	return queryGetTestCase(ctx, s.db, id)
}

func (s *PostgresStore) ListStakeholderLinks(ctx context.Context, projectID string) ([]*model.StakeholderLink, error) {
	return queryListStakeholderLinks(ctx, s.db, projectID)
}

func (s *PostgresStore) ListTaskLinks(ctx context.Context, projectID string) ([]*model.TaskLink, error) {
	return queryListTaskLinks(ctx, s.db, projectID)
}

func (s *PostgresStore) ListMeetingLinks(ctx context.Context, projectID string) ([]*model.MeetingLink, error) {
	return queryListMeetingLinks(ctx, s.db, projectID)
}

func (s *PostgresStore) ListTestCaseLinks(ctx context.Context, projectID string) ([]*model.TestCaseLink, error) {
	return queryListTestCaseLinks(ctx, s.db, projectID)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateRequirement(ctx context.Context, r *model.Requirement) error {
	return queryCreateRequirement(ctx, s.tx, r)
}

func (s *txStore) GetRequirement(ctx context.Context, id string) (*model.Requirement, error) {
	return queryGetRequirement(ctx, s.tx, id)
}

func (s *txStore) GetRequirementByRequirementID(ctx context.Context, requirementID string) (*model.Requirement, error) {
	return queryGetRequirementByRequirementID(ctx, s.tx, requirementID)
}

func (s *txStore) ListRequirements(ctx context.Context, filter model.RequirementFilter) ([]*model.Requirement, error) {
	return queryListRequirements(ctx, s.tx, filter)
}

func (s *txStore) UpdateRequirement(ctx context.Context, r *model.Requirement, expectedVersion int) error {
	return queryUpdateRequirement(ctx, s.tx, r, expectedVersion)
}

func (s *txStore) SetParent(ctx context.Context, id string, parentID *string) error {
	return querySetParent(ctx, s.tx, id, parentID)
}

func (s *txStore) SetBaseline(ctx context.Context, id string, version int, at time.Time) error {
	return querySetBaseline(ctx, s.tx, id, version, at)
}

func (s *txStore) DeleteRequirement(ctx context.Context, id string) error {
	return queryDeleteRequirement(ctx, s.tx, id)
}

func (s *txStore) CountRequirements(ctx context.Context, projectID string) (int, error) {
	return queryCountRequirements(ctx, s.tx, projectID)
}

func (s *txStore) RequirementIDExists(ctx context.Context, requirementID string) (bool, error) {
	return queryRequirementIDExists(ctx, s.tx, requirementID)
}

func (s *txStore) AppendHistory(ctx context.Context, entry *model.HistoryEntry) error {
	return queryAppendHistory(ctx, s.tx, entry)
}

func (s *txStore) GetHistory(ctx context.Context, requirementID string) ([]*model.HistoryEntry, error) {
	return queryGetHistory(ctx, s.tx, requirementID)
}

func (s *txStore) AddDependency(ctx context.Context, dep *model.Dependency) error {
	return queryAddDependency(ctx, s.tx, dep)
}

func (s *txStore) GetDependencies(ctx context.Context, requirementID string) ([]*model.Dependency, error) {
	return queryGetDependencies(ctx, s.tx, requirementID)
}

func (s *txStore) LinkStakeholder(ctx context.Context, requirementID, stakeholderID string, role model.StakeholderRole) error {
	return queryLinkStakeholder(ctx, s.tx, requirementID, stakeholderID, role)
}

func (s *txStore) LinkTask(ctx context.Context, requirementID, taskID string) (bool, error) {
	return queryLink(ctx, s.tx, "requirement_tasks", "task_id", requirementID, taskID)
}

func (s *txStore) LinkMeeting(ctx context.Context, requirementID, meetingID string) (bool, error) {
	return queryLink(ctx, s.tx, "requirement_meetings", "meeting_id", requirementID, meetingID)
}

func (s *txStore) LinkTestCase(ctx context.Context, requirementID, testCaseID string) (bool, error) {
	return queryLink(ctx, s.tx, "requirement_test_cases", "test_case_id", requirementID, testCaseID)
}

func (s *txStore) GetStakeholder(ctx context.Context, id string) (*model.Stakeholder, error) {
	return queryGetStakeholder(ctx, s.tx, id)
}

func (s *txStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, s.tx, id)
}

func (s *txStore) GetMeeting(ctx context.Context, id string) (*model.Meeting, error) {
	return queryGetMeeting(ctx, s.tx, id)
}

func (s *txStore) GetTestCase(ctx context.Context, id string) (*model.TestCase, error) {
	return queryGetTestCase(ctx, s.tx, id)
}

func (s *txStore) ListStakeholderLinks(ctx context.Context, projectID string) ([]*model.StakeholderLink, error) {
	return queryListStakeholderLinks(ctx, s.tx, projectID)
}

func (s *txStore) ListTaskLinks(ctx context.Context, projectID string) ([]*model.TaskLink, error) {
	return queryListTaskLinks(ctx, s.tx, projectID)
}

func (s *txStore) ListMeetingLinks(ctx context.Context, projectID string) ([]*model.MeetingLink, error) {
	return queryListMeetingLinks(ctx, s.tx, projectID)
}

func (s *txStore) ListTestCaseLinks(ctx context.Context, projectID string) ([]*model.TestCaseLink, error) {
	return queryListTestCaseLinks(ctx, s.tx, projectID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
