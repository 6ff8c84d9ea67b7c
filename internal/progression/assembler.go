package progression

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/progression-engine/internal/models"
)

// listConcurrency bounds per-course loads when building the course list
const listConcurrency = 4

// Assembler builds per-candidate course views. Every call reads the stores
// afresh; nothing is cached between calls.
type Assembler struct {
	catalog  CatalogReader
	progress ProgressStore
	logger   *slog.Logger
}

// NewAssembler creates a new course view assembler
func NewAssembler(catalog CatalogReader, progress ProgressStore, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		catalog:  catalog,
		progress: progress,
		logger:   logger.With("component", "assembler"),
	}
}

// GetCourseView returns the course tree annotated with the candidate's
// completion and unlock state
func (a *Assembler) GetCourseView(ctx context.Context, courseID, candidateID string) (*models.CourseDetailView, error) {
	ctx, span := tracer.Start(ctx, "progression.GetCourseView", trace.WithAttributes(
		attribute.String("course.id", courseID),
		attribute.String("candidate.id", candidateID),
	))
	defer span.End()

	if strings.TrimSpace(courseID) == "" {
		return nil, fmt.Errorf("%w: course_id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(candidateID) == "" {
		return nil, fmt.Errorf("%w: candidate_id is required", ErrInvalidArgument)
	}

	course, err := a.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	completedTasks, completions, err := a.loadProgress(ctx, candidateID, courseID)
	if err != nil {
		return nil, err
	}

	return buildView(course, completedTasks, completions), nil
}

// loadProgress fetches the two completion sets concurrently
func (a *Assembler) loadProgress(ctx context.Context, candidateID, courseID string) (map[string]bool, map[string]*models.AssessmentCompletion, error) {
	var (
		taskIDs     []string
		completions []*models.AssessmentCompletion
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		taskIDs, err = a.progress.ListCompletedTaskIDs(gctx, candidateID, courseID)
		if err != nil {
			return fmt.Errorf("failed to list completed tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		completions, err = a.progress.ListAssessmentCompletions(gctx, candidateID, courseID)
		if err != nil {
			return fmt.Errorf("failed to list assessment completions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return toSet(taskIDs), byLevel(completions), nil
}

func buildView(course *models.Course, completedTasks map[string]bool, completions map[string]*models.AssessmentCompletion) *models.CourseDetailView {
	unlocks := Evaluate(course, completedTasks, levelSet(completions))

	view := &models.CourseDetailView{
		CourseID:    course.ID,
		Domain:      course.Domain,
		Title:       course.Title,
		Description: course.Description,
		Difficulty:  course.Difficulty,
		Levels:      make([]models.LevelView, 0, len(course.Levels)),
	}

	for _, lvl := range sortedLevels(course.Levels) {
		lv := models.LevelView{
			LevelID:  lvl.ID,
			Name:     lvl.Name,
			Order:    lvl.Order,
			Unlocked: unlocks.Levels[lvl.ID],
			Tasks:    make([]models.TaskView, 0, len(lvl.Tasks)),
		}
		if c, ok := completions[lvl.ID]; ok {
			score := c.TotalScore
			lv.Completed = true
			lv.Score = &score
		}

		tasks := make([]models.Task, len(lvl.Tasks))
		copy(tasks, lvl.Tasks)
		models.SortTasks(tasks)
		for _, t := range tasks {
			lv.Tasks = append(lv.Tasks, models.TaskView{
				TaskID:    t.ID,
				Type:      t.Type,
				Title:     t.Title,
				Order:     t.Order,
				Completed: completedTasks[t.ID],
				Unlocked:  unlocks.Tasks[t.ID],
			})
		}
		view.Levels = append(view.Levels, lv)
	}

	done, score := CourseAssessment(course, completions)
	view.Assessment = models.AssessmentSummary{
		TimeLimitMinutes: course.TimeLimitMinutes,
		IsCompleted:      done,
		Score:            score,
	}

	return view
}

// ListCourses returns the active courses with the candidate's completion
// status. An empty candidateID lists courses without progress.
func (a *Assembler) ListCourses(ctx context.Context, candidateID string) ([]models.CourseSummary, error) {
	ctx, span := tracer.Start(ctx, "progression.ListCourses", trace.WithAttributes(
		attribute.String("candidate.id", candidateID),
	))
	defer span.End()

	courses, err := a.catalog.ListCourses(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	summaries := make([]models.CourseSummary, len(courses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)

	for i, c := range courses {
		summaries[i] = models.CourseSummary{
			CourseID:         c.ID,
			Domain:           c.Domain,
			Title:            c.Title,
			DifficultyLevel:  c.Difficulty,
			Description:      c.Description,
			TimeLimitMinutes: c.TimeLimitMinutes,
		}
		if candidateID == "" {
			continue
		}

		g.Go(func() error {
			course, err := a.catalog.GetCourse(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("failed to get course %s: %w", c.ID, err)
			}
			if course == nil {
				return nil
			}
			completions, err := a.progress.ListAssessmentCompletions(gctx, candidateID, c.ID)
			if err != nil {
				return fmt.Errorf("failed to list assessment completions: %w", err)
			}
			done, score := CourseAssessment(course, byLevel(completions))
			summaries[i].IsCompleted = done
			summaries[i].Score = score
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetTask returns a single task for the lesson page
func (a *Assembler) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("%w: task_id is required", ErrInvalidArgument)
	}
	task, err := a.catalog.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}
