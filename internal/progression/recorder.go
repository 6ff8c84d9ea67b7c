package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/terra-clan/progression-engine/internal/models"
	"github.com/terra-clan/progression-engine/internal/scoring"
	"github.com/terra-clan/progression-engine/internal/storage"
)

// MinAnswerLength is the shortest assessment answer accepted, in characters
const MinAnswerLength = 10

// Recorder writes completion facts. It never computes unlocks at write time
// except to refuse assessment answers for locked tasks.
type Recorder struct {
	catalog  CatalogReader
	progress ProgressStore
	events   EventPublisher
	observer CompletionObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewRecorder creates a new progress recorder. events may be nil.
func NewRecorder(catalog CatalogReader, progress ProgressStore, events EventPublisher, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		catalog:  catalog,
		progress: progress,
		events:   events,
		logger:   logger.With("component", "recorder"),
		now:      time.Now,
	}
}

// SetCompletionObserver registers the listener for course completions
func (r *Recorder) SetCompletionObserver(o CompletionObserver) {
	r.observer = o
}

// RecordTaskCompletion records that candidateID finished a content task.
// Repeated calls return StatusAlreadyCompleted without changing anything.
func (r *Recorder) RecordTaskCompletion(ctx context.Context, candidateID, taskID string) (*models.CompleteTaskResult, error) {
	ctx, span := tracer.Start(ctx, "progression.RecordTaskCompletion", trace.WithAttributes(
		attribute.String("candidate.id", candidateID),
		attribute.String("task.id", taskID),
	))
	defer span.End()

	if err := requireIDs(candidateID, taskID); err != nil {
		return nil, err
	}

	task, err := r.catalog.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.Type != models.TaskContent {
		return nil, fmt.Errorf("%w: only content tasks allowed", ErrInvalidOperation)
	}

	status, err := r.insertCompletion(ctx, candidateID, taskID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("completion.status", string(status)))

	if status == models.StatusCompleted {
		r.logger.Info("task completed", "candidate_id", candidateID, "task_id", taskID)
		r.publish(ctx, models.ProgressEvent{
			Type:        models.EventTaskCompleted,
			CandidateID: candidateID,
			LevelID:     task.LevelID,
			TaskID:      taskID,
		})
	}

	return &models.CompleteTaskResult{
		Status:      status,
		CandidateID: candidateID,
		TaskID:      taskID,
	}, nil
}

// insertCompletion stores the fact and folds a uniqueness conflict into
// StatusAlreadyCompleted, so concurrent writers both succeed.
func (r *Recorder) insertCompletion(ctx context.Context, candidateID, taskID string) (models.CompletionStatus, error) {
	err := r.progress.CreateTaskCompletion(ctx, &models.TaskCompletion{
		ID:          uuid.New().String(),
		CandidateID: candidateID,
		TaskID:      taskID,
		CompletedAt: r.now().UTC(),
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return models.StatusAlreadyCompleted, nil
	case err != nil:
		return "", fmt.Errorf("failed to record completion: %w", err)
	}
	return models.StatusCompleted, nil
}

// SubmitAssessment scores an answer to an unlocked assessment task and
// records the task as completed. Once every assessment of the level has an
// answer, the level's assessment completion is recorded.
func (r *Recorder) SubmitAssessment(ctx context.Context, req models.SubmitAssessmentRequest) (*models.SubmissionResult, error) {
	ctx, span := tracer.Start(ctx, "progression.SubmitAssessment", trace.WithAttributes(
		attribute.String("candidate.id", req.CandidateID),
		attribute.String("task.id", req.TaskID),
	))
	defer span.End()

	if err := requireIDs(req.CandidateID, req.TaskID); err != nil {
		return nil, err
	}
	answer := strings.TrimSpace(req.AnswerText)
	if utf8.RuneCountInString(answer) < MinAnswerLength {
		return nil, fmt.Errorf("%w: answer_text must be at least %d characters", ErrInvalidArgument, MinAnswerLength)
	}

	course, err := r.catalog.FindCourseByTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	if course == nil {
		return nil, ErrTaskNotFound
	}
	level, task, _ := course.FindTask(req.TaskID)
	if task.Type != models.TaskAssessment {
		return nil, fmt.Errorf("%w: only assessment tasks allowed", ErrInvalidOperation)
	}

	existing, err := r.progress.GetSubmission(ctx, req.CandidateID, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if existing != nil {
		return r.settleSubmission(ctx, course, level, existing)
	}

	completedTasks, completions, err := progressSets(ctx, r.progress, req.CandidateID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	unlocks := Evaluate(course, completedTasks, levelSet(completions))
	if !unlocks.Tasks[task.ID] {
		return nil, ErrTaskLocked
	}

	score, feedback := scoring.ScoreAnswer(course.Domain, answer)
	sub := &models.AssessmentSubmission{
		ID:          uuid.New().String(),
		CandidateID: req.CandidateID,
		TaskID:      req.TaskID,
		AnswerText:  answer,
		Score:       score,
		Feedback:    feedback,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.progress.CreateSubmission(ctx, sub); err != nil {
		if !errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("failed to store submission: %w", err)
		}
		// Lost a race with a concurrent submission
		existing, err := r.progress.GetSubmission(ctx, req.CandidateID, req.TaskID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload submission: %w", err)
		}
		if existing == nil {
			return nil, errors.New("submission vanished after duplicate insert")
		}
		return r.settleSubmission(ctx, course, level, existing)
	}

	if _, err := r.insertCompletion(ctx, req.CandidateID, req.TaskID); err != nil {
		return nil, err
	}

	r.logger.Info("assessment submitted",
		"candidate_id", req.CandidateID,
		"task_id", req.TaskID,
		"score", score,
	)
	r.publish(ctx, models.ProgressEvent{
		Type:        models.EventAssessmentSubmitted,
		CandidateID: req.CandidateID,
		CourseID:    course.ID,
		LevelID:     level.ID,
		TaskID:      req.TaskID,
		Score:       &score,
	})

	result := r.resultFor(sub, models.StatusCompleted)
	if err := r.finishLevel(ctx, course, level, result); err != nil {
		return nil, err
	}
	return result, nil
}

// settleSubmission answers a repeated submission with the stored result and
// writes any follow-up facts an earlier attempt failed to record. Both
// writes are idempotent.
func (r *Recorder) settleSubmission(ctx context.Context, course *models.Course, level models.Level, sub *models.AssessmentSubmission) (*models.SubmissionResult, error) {
	status, err := r.insertCompletion(ctx, sub.CandidateID, sub.TaskID)
	if err != nil {
		return nil, err
	}
	if status == models.StatusCompleted {
		r.logger.Warn("repaired missing task completion",
			"candidate_id", sub.CandidateID,
			"task_id", sub.TaskID,
		)
	}

	result := r.resultFor(sub, models.StatusAlreadyCompleted)
	if err := r.finishLevel(ctx, course, level, result); err != nil {
		return nil, err
	}
	return result, nil
}

// finishLevel records the level completion when it is due and reports it
// on result
func (r *Recorder) finishLevel(ctx context.Context, course *models.Course, level models.Level, result *models.SubmissionResult) error {
	levelScore, err := r.completeLevel(ctx, result.CandidateID, course, level)
	if err != nil {
		return err
	}
	if levelScore != nil {
		result.LevelCompleted = true
		result.LevelScore = levelScore
		r.afterLevelCompleted(ctx, result.CandidateID, course)
	}
	return nil
}

// completeLevel records the level's assessment completion when every
// assessment task has an answer. Returns the level score when recorded.
func (r *Recorder) completeLevel(ctx context.Context, candidateID string, course *models.Course, level models.Level) (*int, error) {
	subs, err := r.progress.ListSubmissions(ctx, candidateID, level.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	scores := make(map[string]int, len(subs))
	for _, s := range subs {
		scores[s.TaskID] = s.Score
	}

	var levelScores []int
	for _, t := range level.AssessmentTasks() {
		s, ok := scores[t.ID]
		if !ok {
			return nil, nil
		}
		levelScores = append(levelScores, s)
	}

	total := roundedMean(levelScores)
	err = r.progress.CreateAssessmentCompletion(ctx, &models.AssessmentCompletion{
		ID:          uuid.New().String(),
		CandidateID: candidateID,
		CourseID:    course.ID,
		LevelID:     level.ID,
		TotalScore:  total,
		CompletedAt: r.now().UTC(),
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to record level completion: %w", err)
	}

	r.logger.Info("level completed",
		"candidate_id", candidateID,
		"course_id", course.ID,
		"level_id", level.ID,
		"score", total,
	)
	r.publish(ctx, models.ProgressEvent{
		Type:        models.EventLevelCompleted,
		CandidateID: candidateID,
		CourseID:    course.ID,
		LevelID:     level.ID,
		Score:       &total,
	})
	return &total, nil
}

// afterLevelCompleted notifies the observer once the whole course is done
func (r *Recorder) afterLevelCompleted(ctx context.Context, candidateID string, course *models.Course) {
	if r.observer == nil {
		return
	}
	completions, err := r.progress.ListAssessmentCompletions(ctx, candidateID, course.ID)
	if err != nil {
		r.logger.Error("failed to load completions", "candidate_id", candidateID, "error", err)
		return
	}
	done, score := CourseAssessment(course, byLevel(completions))
	if !done {
		return
	}
	if err := r.observer.CourseCompleted(ctx, candidateID, course, *score); err != nil {
		r.logger.Error("course completion observer failed",
			"candidate_id", candidateID,
			"course_id", course.ID,
			"error", err,
		)
	}
}

func (r *Recorder) resultFor(s *models.AssessmentSubmission, status models.CompletionStatus) *models.SubmissionResult {
	return &models.SubmissionResult{
		Status:      status,
		CandidateID: s.CandidateID,
		TaskID:      s.TaskID,
		Score:       s.Score,
		Feedback:    s.Feedback,
	}
}

// publish is best effort; progress is already durable
func (r *Recorder) publish(ctx context.Context, ev models.ProgressEvent) {
	if r.events == nil {
		return
	}
	ev.At = r.now().UTC()
	if err := r.events.Publish(ctx, ev); err != nil {
		r.logger.Warn("failed to publish progress event",
			"type", ev.Type,
			"candidate_id", ev.CandidateID,
			"error", err,
		)
	}
}

func requireIDs(candidateID, taskID string) error {
	if strings.TrimSpace(candidateID) == "" {
		return fmt.Errorf("%w: candidate_id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(taskID) == "" {
		return fmt.Errorf("%w: task_id is required", ErrInvalidArgument)
	}
	return nil
}
