package progression

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/progression-engine/internal/models"
	"github.com/terra-clan/progression-engine/internal/storage"
)

const candidate = "cand-1"

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []models.ProgressEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.ProgressEventType
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type courseObserver struct {
	calls  int
	course string
	score  int
}

func (o *courseObserver) CourseCompleted(_ context.Context, _ string, course *models.Course, score int) error {
	o.calls++
	o.course = course.ID
	o.score = score
	return nil
}

type fixture struct {
	repo      *storage.SQLRepository
	recorder  *Recorder
	assembler *Assembler
	events    *recordingPublisher
	observer  *courseObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(ctx, storage.SQLiteConfig{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.Migrate(ctx, ""))

	course := scenarioCourse()
	course.Title = "Python Basics"
	course.TimeLimitMinutes = 30
	course.IsActive = true
	_, err = repo.SeedCourse(ctx, course)
	require.NoError(t, err)

	events := &recordingPublisher{}
	observer := &courseObserver{}
	recorder := NewRecorder(repo, repo, events, nil)
	recorder.SetCompletionObserver(observer)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recorder.now = func() time.Time { return fixed }

	return &fixture{
		repo:      repo,
		recorder:  recorder,
		assembler: NewAssembler(repo, repo, nil),
		events:    events,
		observer:  observer,
	}
}

func (f *fixture) view(t *testing.T) *models.CourseDetailView {
	t.Helper()
	v, err := f.assembler.GetCourseView(context.Background(), "course", candidate)
	require.NoError(t, err)
	return v
}

func taskStates(v *models.CourseDetailView) map[string]bool {
	out := make(map[string]bool)
	for _, lvl := range v.Levels {
		for _, task := range lvl.Tasks {
			out[task.TaskID] = task.Unlocked
		}
	}
	return out
}

const goodAnswer = "I would validate inputs and raise an exception on edge cases."

func TestRecordTaskCompletionIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.recorder.RecordTaskCompletion(ctx, candidate, "T1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, res.Status)

	res, err = f.recorder.RecordTaskCompletion(ctx, candidate, "T1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAlreadyCompleted, res.Status)

	ids, err := f.repo.ListCompletedTaskIDs(ctx, candidate, "course")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1"}, ids)

	assert.Equal(t, []models.ProgressEventType{models.EventTaskCompleted}, f.events.types())
}

func TestRecordTaskCompletionConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const writers = 8
	statuses := make(chan models.CompletionStatus, writers)
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.recorder.RecordTaskCompletion(ctx, candidate, "T1")
			if assert.NoError(t, err) {
				statuses <- res.Status
			}
		}()
	}
	wg.Wait()
	close(statuses)

	completed := 0
	for s := range statuses {
		if s == models.StatusCompleted {
			completed++
		} else {
			assert.Equal(t, models.StatusAlreadyCompleted, s)
		}
	}
	assert.Equal(t, 1, completed)
}

func TestRecordTaskCompletionRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.recorder.RecordTaskCompletion(ctx, candidate, "T3")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Contains(t, err.Error(), "only content tasks allowed")

	ids, err := f.repo.ListCompletedTaskIDs(ctx, candidate, "course")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = f.recorder.RecordTaskCompletion(ctx, candidate, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.True(t, IsNotFound(err))

	_, err = f.recorder.RecordTaskCompletion(ctx, "", "T1")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCourseViewScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.view(t)
	assert.Equal(t, "Python Basics", v.Title)
	require.Len(t, v.Levels, 2)
	assert.Equal(t, "L1", v.Levels[0].LevelID)
	assert.True(t, v.Levels[0].Unlocked)
	assert.False(t, v.Levels[1].Unlocked)
	assert.Equal(t, map[string]bool{"T1": true, "T2": false, "T3": false, "T4": false}, taskStates(v))
	assert.Equal(t, 30, v.Assessment.TimeLimitMinutes)
	assert.False(t, v.Assessment.IsCompleted)
	assert.Nil(t, v.Assessment.Score)

	_, err := f.recorder.RecordTaskCompletion(ctx, candidate, "T1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"T1": true, "T2": true, "T3": false, "T4": false}, taskStates(f.view(t)))

	// Assessment answers are refused while the task is locked
	_, err = f.recorder.SubmitAssessment(ctx, models.SubmitAssessmentRequest{
		CandidateID: candidate, TaskID: "T3", AnswerText: goodAnswer,
	})
	assert.ErrorIs(t, err, ErrTaskLocked)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.recorder.RecordTaskCompletion(ctx, candidate, "T2")
	require.NoError(t, err)
	v = f.view(t)
	assert.Equal(t, map[string]bool{"T1": true, "T2": true, "T3": true, "T4": false}, taskStates(v))
	assert.False(t, v.Levels[1].Unlocked)

	res, err := f.recorder.SubmitAssessment(ctx, models.SubmitAssessmentRequest{
		CandidateID: candidate, TaskID: "T3", AnswerText: goodAnswer,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, res.Status)
	assert.True(t, res.LevelCompleted)
	require.NotNil(t, res.LevelScore)
	assert.Equal(t, res.Score, *res.LevelScore)

	v = f.view(t)
	assert.True(t, v.Levels[1].Unlocked)
	assert.Equal(t, map[string]bool{"T1": true, "T2": true, "T3": true, "T4": true}, taskStates(v))
	assert.True(t, v.Levels[0].Completed)
	assert.True(t, v.Levels[0].Tasks[2].Completed)
	assert.True(t, v.Assessment.IsCompleted)
	require.NotNil(t, v.Assessment.Score)
	assert.Equal(t, res.Score, *v.Assessment.Score)

	assert.Equal(t, 1, f.observer.calls)
	assert.Equal(t, "course", f.observer.course)
	assert.Equal(t, res.Score, f.observer.score)

	assert.Equal(t, []models.ProgressEventType{
		models.EventTaskCompleted,
		models.EventTaskCompleted,
		models.EventAssessmentSubmitted,
		models.EventLevelCompleted,
	}, f.events.types())
}

func TestSubmitAssessmentRepeatReturnsStoredResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"T1", "T2"} {
		_, err := f.recorder.RecordTaskCompletion(ctx, candidate, id)
		require.NoError(t, err)
	}

	req := models.SubmitAssessmentRequest{CandidateID: candidate, TaskID: "T3", AnswerText: goodAnswer}
	first, err := f.recorder.SubmitAssessment(ctx, req)
	require.NoError(t, err)

	req.AnswerText = strings.Repeat("different answer ", 10)
	second, err := f.recorder.SubmitAssessment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAlreadyCompleted, second.Status)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Feedback, second.Feedback)
	assert.Equal(t, 1, f.observer.calls)
}

func TestSubmitAssessmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.recorder.SubmitAssessment(ctx, models.SubmitAssessmentRequest{
		CandidateID: candidate, TaskID: "T3", AnswerText: "  too short ",
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.recorder.SubmitAssessment(ctx, models.SubmitAssessmentRequest{
		CandidateID: candidate, TaskID: "T1", AnswerText: goodAnswer,
	})
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Contains(t, err.Error(), "only assessment tasks allowed")

	_, err = f.recorder.SubmitAssessment(ctx, models.SubmitAssessmentRequest{
		CandidateID: candidate, TaskID: "nope", AnswerText: goodAnswer,
	})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetCourseViewIsStable(t *testing.T) {
	f := newFixture(t)
	_, err := f.recorder.RecordTaskCompletion(context.Background(), candidate, "T1")
	require.NoError(t, err)

	first, err := json.Marshal(f.view(t))
	require.NoError(t, err)
	second, err := json.Marshal(f.view(t))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestGetCourseViewErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.assembler.GetCourseView(ctx, "missing", candidate)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = f.assembler.GetCourseView(ctx, "course", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCandidatesAreIndependent(t *testing.T) {
	f := newFixture(t)
	_, err := f.recorder.RecordTaskCompletion(context.Background(), "someone-else", "T1")
	require.NoError(t, err)

	assert.False(t, f.view(t).Levels[0].Tasks[0].Completed)
}

func TestListCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summaries, err := f.assembler.ListCourses(ctx, candidate)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "course", summaries[0].CourseID)
	assert.Equal(t, 30, summaries[0].TimeLimitMinutes)
	assert.False(t, summaries[0].IsCompleted)

	for _, id := range []string{"T1", "T2"} {
		_, err := f.recorder.RecordTaskCompletion(ctx, candidate, id)
		require.NoError(t, err)
	}
	_, err = f.recorder.SubmitAssessment(ctx, models.SubmitAssessmentRequest{
		CandidateID: candidate, TaskID: "T3", AnswerText: goodAnswer,
	})
	require.NoError(t, err)

	summaries, err = f.assembler.ListCourses(ctx, candidate)
	require.NoError(t, err)
	assert.True(t, summaries[0].IsCompleted)
	assert.NotNil(t, summaries[0].Score)

	anonymous, err := f.assembler.ListCourses(ctx, "")
	require.NoError(t, err)
	assert.False(t, anonymous[0].IsCompleted)
}

func TestGetTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.assembler.GetTask(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, "L1", task.LevelID)

	_, err = f.assembler.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// flakyProgress fails the first write of each configured kind
type flakyProgress struct {
	*storage.SQLRepository
	failTaskCompletion  int
	failLevelCompletion int
}

var errTransient = errors.New("transient write failure")

func (p *flakyProgress) CreateTaskCompletion(ctx context.Context, c *models.TaskCompletion) error {
	if p.failTaskCompletion > 0 {
		p.failTaskCompletion--
		return errTransient
	}
	return p.SQLRepository.CreateTaskCompletion(ctx, c)
}

func (p *flakyProgress) CreateAssessmentCompletion(ctx context.Context, c *models.AssessmentCompletion) error {
	if p.failLevelCompletion > 0 {
		p.failLevelCompletion--
		return errTransient
	}
	return p.SQLRepository.CreateAssessmentCompletion(ctx, c)
}

func TestSubmitAssessmentRetryRepairsPartialWrites(t *testing.T) {
	tests := []struct {
		name     string
		progress func(repo *storage.SQLRepository) *flakyProgress
	}{
		{"task completion fails once", func(repo *storage.SQLRepository) *flakyProgress {
			return &flakyProgress{SQLRepository: repo, failTaskCompletion: 1}
		}},
		{"level completion fails once", func(repo *storage.SQLRepository) *flakyProgress {
			return &flakyProgress{SQLRepository: repo, failLevelCompletion: 1}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			for _, id := range []string{"T1", "T2"} {
				_, err := f.recorder.RecordTaskCompletion(ctx, candidate, id)
				require.NoError(t, err)
			}

			recorder := NewRecorder(f.repo, tt.progress(f.repo), f.events, nil)
			recorder.SetCompletionObserver(f.observer)
			req := models.SubmitAssessmentRequest{CandidateID: candidate, TaskID: "T3", AnswerText: goodAnswer}

			_, err := recorder.SubmitAssessment(ctx, req)
			require.ErrorIs(t, err, errTransient)

			res, err := recorder.SubmitAssessment(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, models.StatusAlreadyCompleted, res.Status)
			assert.True(t, res.LevelCompleted)
			require.NotNil(t, res.LevelScore)

			v := f.view(t)
			assert.True(t, v.Levels[0].Tasks[2].Completed)
			assert.True(t, v.Levels[0].Completed)
			assert.True(t, v.Levels[1].Unlocked)
			assert.Equal(t, 1, f.observer.calls)

			// Later retries change nothing
			res, err = recorder.SubmitAssessment(ctx, req)
			require.NoError(t, err)
			assert.False(t, res.LevelCompleted)
			assert.Equal(t, 1, f.observer.calls)
		})
	}
}
