// Package progression decides which levels and tasks a candidate can access
// and records the completions that move a candidate forward.
package progression

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/terra-clan/progression-engine/internal/models"
)

var tracer = otel.Tracer("github.com/terra-clan/progression-engine/internal/progression")

// CatalogReader loads the immutable course hierarchy.
// Lookups return (nil, nil) when the record does not exist.
type CatalogReader interface {
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context, activeOnly bool) ([]*models.Course, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	FindCourseByTask(ctx context.Context, taskID string) (*models.Course, error)
}

// ProgressStore persists per-candidate completion facts. Create methods
// return storage.ErrDuplicate when the fact already exists.
type ProgressStore interface {
	CreateTaskCompletion(ctx context.Context, c *models.TaskCompletion) error
	ListCompletedTaskIDs(ctx context.Context, candidateID, courseID string) ([]string, error)
	CreateSubmission(ctx context.Context, s *models.AssessmentSubmission) error
	GetSubmission(ctx context.Context, candidateID, taskID string) (*models.AssessmentSubmission, error)
	ListSubmissions(ctx context.Context, candidateID, levelID string) ([]*models.AssessmentSubmission, error)
	CreateAssessmentCompletion(ctx context.Context, c *models.AssessmentCompletion) error
	ListAssessmentCompletions(ctx context.Context, candidateID, courseID string) ([]*models.AssessmentCompletion, error)
}

// EventPublisher fans progress events out to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, ev models.ProgressEvent) error
}

// CompletionObserver is notified when a candidate completes a whole course
type CompletionObserver interface {
	CourseCompleted(ctx context.Context, candidateID string, course *models.Course, score int) error
}

// progressSets loads the candidate's completed tasks and levels for a course
func progressSets(ctx context.Context, progress ProgressStore, candidateID, courseID string) (map[string]bool, map[string]*models.AssessmentCompletion, error) {
	taskIDs, err := progress.ListCompletedTaskIDs(ctx, candidateID, courseID)
	if err != nil {
		return nil, nil, err
	}
	completions, err := progress.ListAssessmentCompletions(ctx, candidateID, courseID)
	if err != nil {
		return nil, nil, err
	}
	return toSet(taskIDs), byLevel(completions), nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func byLevel(completions []*models.AssessmentCompletion) map[string]*models.AssessmentCompletion {
	m := make(map[string]*models.AssessmentCompletion, len(completions))
	for _, c := range completions {
		m[c.LevelID] = c
	}
	return m
}

func levelSet(completions map[string]*models.AssessmentCompletion) map[string]bool {
	set := make(map[string]bool, len(completions))
	for id := range completions {
		set[id] = true
	}
	return set
}
