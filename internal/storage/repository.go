package storage

import (
	"context"
	"time"

	"github.com/terra-clan/progression-engine/internal/models"
)

// Repository defines the interface for catalog and progress persistence.
// Lookups return (nil, nil) when the record does not exist.
type Repository interface {
	// Catalog
	SeedCourse(ctx context.Context, course *models.Course) (bool, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context, activeOnly bool) ([]*models.Course, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	FindCourseByTask(ctx context.Context, taskID string) (*models.Course, error)

	// Progress
	CreateTaskCompletion(ctx context.Context, c *models.TaskCompletion) error
	ListCompletedTaskIDs(ctx context.Context, candidateID, courseID string) ([]string, error)
	CreateSubmission(ctx context.Context, s *models.AssessmentSubmission) error
	GetSubmission(ctx context.Context, candidateID, taskID string) (*models.AssessmentSubmission, error)
	ListSubmissions(ctx context.Context, candidateID, levelID string) ([]*models.AssessmentSubmission, error)
	CreateAssessmentCompletion(ctx context.Context, c *models.AssessmentCompletion) error
	ListAssessmentCompletions(ctx context.Context, candidateID, courseID string) ([]*models.AssessmentCompletion, error)

	// Matching
	UpsertJobRole(ctx context.Context, role *models.JobRole) error
	ListJobRoles(ctx context.Context) ([]*models.JobRole, error)
	GetSkillLevels(ctx context.Context, candidateID string) (map[string]int, error)
	RaiseSkillLevel(ctx context.Context, candidateID, domain string, level int, at time.Time) error
	UpsertJobMatch(ctx context.Context, m *models.JobMatch) error
	ListJobMatches(ctx context.Context, candidateID string) ([]*models.JobMatch, error)
	ListSkilledCandidates(ctx context.Context) ([]string, error)

	// API Clients
	CreateClient(ctx context.Context, c *models.ApiClient) error
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// SQLRepository implements Repository over PostgreSQL or SQLite
type SQLRepository struct {
	db      database
	dialect string
	now     func() time.Time
}

var _ Repository = (*SQLRepository)(nil)

func newSQLRepository(db database, dialect string) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now}
}

// Dialect returns "postgres" or "sqlite"
func (r *SQLRepository) Dialect() string {
	return r.dialect
}

// Ping checks database connectivity
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.ping(ctx)
}

// HealthCheck lets the repository join the health registry
func (r *SQLRepository) HealthCheck(ctx context.Context) error {
	return r.db.ping(ctx)
}

// Close closes the underlying connection pool
func (r *SQLRepository) Close() error {
	r.db.close()
	return nil
}

// withTx runs fn inside a transaction, rolling back on error
func (r *SQLRepository) withTx(ctx context.Context, fn func(q querier) error) error {
	t, err := r.db.begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		_ = t.rollback(ctx)
		return err
	}
	return t.commit(ctx)
}

// translate maps driver uniqueness violations onto ErrDuplicate
func (r *SQLRepository) translate(err error) error {
	if err != nil && r.db.isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}
