package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terra-clan/progression-engine/internal/models"
)

// scenarioCourse: level 1 has content T1, content T2, assessment T3;
// level 2 has content T4.
func scenarioCourse() *models.Course {
	return &models.Course{
		ID:     "course",
		Domain: "python",
		Levels: []models.Level{
			{ID: "L2", Order: 2, Tasks: []models.Task{
				{ID: "T4", LevelID: "L2", Type: models.TaskContent, Order: 1},
			}},
			{ID: "L1", Order: 1, Tasks: []models.Task{
				{ID: "T3", LevelID: "L1", Type: models.TaskAssessment, Order: 3},
				{ID: "T1", LevelID: "L1", Type: models.TaskContent, Order: 1},
				{ID: "T2", LevelID: "L1", Type: models.TaskContent, Order: 2},
			}},
		},
	}
}

func set(ids ...string) map[string]bool {
	return toSet(ids)
}

func TestEvaluateScenario(t *testing.T) {
	course := scenarioCourse()

	steps := []struct {
		name      string
		completed map[string]bool
		levels    map[string]bool
		tasks     map[string]bool
	}{
		{
			name:      "initial",
			completed: set(),
			levels:    map[string]bool{"L1": true, "L2": false},
			tasks:     map[string]bool{"T1": true, "T2": false, "T3": false, "T4": false},
		},
		{
			name:      "after T1",
			completed: set("T1"),
			levels:    map[string]bool{"L1": true, "L2": false},
			tasks:     map[string]bool{"T1": true, "T2": true, "T3": false, "T4": false},
		},
		{
			name:      "after T2",
			completed: set("T1", "T2"),
			levels:    map[string]bool{"L1": true, "L2": false},
			tasks:     map[string]bool{"T1": true, "T2": true, "T3": true, "T4": false},
		},
		{
			name:      "after T3",
			completed: set("T1", "T2", "T3"),
			levels:    map[string]bool{"L1": true, "L2": true},
			tasks:     map[string]bool{"T1": true, "T2": true, "T3": true, "T4": true},
		},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			u := Evaluate(course, step.completed, nil)
			assert.Equal(t, step.levels, u.Levels)
			assert.Equal(t, step.tasks, u.Tasks)
		})
	}
}

func TestEvaluateDoesNotMutateCourse(t *testing.T) {
	course := scenarioCourse()
	Evaluate(course, set(), nil)
	assert.Equal(t, "L2", course.Levels[0].ID)
	assert.Equal(t, "T3", course.Levels[1].Tasks[0].ID)
}

func TestLevelUnlockedByRecordedCompletion(t *testing.T) {
	course := scenarioCourse()

	// A recorded assessment completion gates the next level even without
	// the task completion fact.
	u := Evaluate(course, set(), set("L1"))
	assert.True(t, u.Levels["L2"])
	assert.True(t, u.Tasks["T4"])
}

func TestFirstLevelAlwaysUnlocked(t *testing.T) {
	course := &models.Course{Levels: []models.Level{
		{ID: "b", Order: 7, Tasks: []models.Task{{ID: "x", Type: models.TaskAssessment, Order: 1}}},
		{ID: "a", Order: 3, Tasks: []models.Task{{ID: "y", Type: models.TaskAssessment, Order: 5}}},
	}}

	u := Evaluate(course, set(), nil)
	assert.True(t, u.Levels["a"], "lowest order level is unlocked")
	assert.False(t, u.Levels["b"])
	assert.True(t, u.Tasks["y"], "first task follows its level regardless of type")
	assert.False(t, u.Tasks["x"])
}

func TestLevelOrderGaps(t *testing.T) {
	course := &models.Course{Levels: []models.Level{
		{ID: "first", Order: 1, Tasks: []models.Task{{ID: "a1", Type: models.TaskAssessment, Order: 1}}},
		{ID: "third", Order: 3, Tasks: []models.Task{{ID: "c1", Type: models.TaskContent, Order: 1}}},
		{ID: "tenth", Order: 10, Tasks: []models.Task{{ID: "d1", Type: models.TaskContent, Order: 1}}},
	}}

	u := Evaluate(course, set("a1"), nil)
	assert.True(t, u.Levels["third"], "predecessor by order, not order-1")
	assert.True(t, u.Levels["tenth"], "a level without assessments gates nothing")
}

func TestLevelWithoutAssessmentsDoesNotBlock(t *testing.T) {
	prev := models.Level{ID: "p", Order: 1, Tasks: []models.Task{{ID: "c", Type: models.TaskContent, Order: 1}}}
	next := models.Level{ID: "n", Order: 2}

	assert.True(t, LevelUnlocked(next, &prev, true, set(), nil))
	assert.True(t, LevelUnlocked(prev, nil, false, set(), nil))
	assert.False(t, LevelUnlocked(next, &prev, false, set(), nil), "a locked level gates nothing open")
}

func TestLockedLevelWithoutAssessmentsBlocksLaterLevels(t *testing.T) {
	course := &models.Course{Levels: []models.Level{
		{ID: "L1", Order: 1, Tasks: []models.Task{{ID: "A1", LevelID: "L1", Type: models.TaskAssessment, Order: 1}}},
		{ID: "L2", Order: 2, Tasks: []models.Task{{ID: "C2", LevelID: "L2", Type: models.TaskContent, Order: 1}}},
		{ID: "L3", Order: 3, Tasks: []models.Task{{ID: "C3", LevelID: "L3", Type: models.TaskContent, Order: 1}}},
	}}

	u := Evaluate(course, set(), nil)
	assert.True(t, u.Levels["L1"])
	assert.False(t, u.Levels["L2"])
	assert.False(t, u.Levels["L3"], "L3 stays locked while L2 is locked")
	assert.False(t, u.Tasks["C3"])

	u = Evaluate(course, set("A1"), nil)
	assert.True(t, u.Levels["L2"])
	assert.True(t, u.Levels["L3"], "content-only L2 gates nothing once unlocked")
	assert.True(t, u.Tasks["C3"])
}

func TestLevelUnlockedRequiresAllAssessments(t *testing.T) {
	prev := models.Level{ID: "p", Order: 1, Tasks: []models.Task{
		{ID: "a1", Type: models.TaskAssessment, Order: 1},
		{ID: "a2", Type: models.TaskAssessment, Order: 2},
	}}
	next := models.Level{ID: "n", Order: 2}

	assert.False(t, LevelUnlocked(next, &prev, true, set("a1"), nil))
	assert.True(t, LevelUnlocked(next, &prev, true, set("a1", "a2"), nil))
}

func TestTaskUnlocked(t *testing.T) {
	tasks := []models.Task{
		{ID: "c1", Type: models.TaskContent, Order: 1},
		{ID: "a1", Type: models.TaskAssessment, Order: 2},
		{ID: "c2", Type: models.TaskContent, Order: 3},
		{ID: "a2", Type: models.TaskAssessment, Order: 4},
		{ID: "q1", Type: models.TaskType("quiz"), Order: 5},
	}
	byID := func(id string) models.Task {
		for _, t := range tasks {
			if t.ID == id {
				return t
			}
		}
		panic(id)
	}

	tests := []struct {
		name          string
		levelUnlocked bool
		task          string
		completed     map[string]bool
		want          bool
	}{
		{"locked level locks first task", false, "c1", set(), false},
		{"locked level locks everything", false, "c2", set("c1", "a1"), false},
		{"first task open", true, "c1", set(), true},
		{"assessment waits for prior content", true, "a1", set(), false},
		{"assessment after prior content", true, "a1", set("c1"), true},
		{"content waits for predecessor", true, "c2", set("c1"), false},
		{"content predecessor may be assessment", true, "c2", set("a1"), true},
		{"assessment ignores other assessments", true, "a2", set("c1", "c2"), true},
		{"assessment needs every prior content", true, "a2", set("c2"), false},
		{"unknown type fails closed", true, "q1", set("c1", "a1", "c2", "a2"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TaskUnlocked(tt.levelUnlocked, byID(tt.task), tasks, tt.completed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssessmentWithoutPriorContentIsOpen(t *testing.T) {
	tasks := []models.Task{
		{ID: "a1", Type: models.TaskAssessment, Order: 1},
		{ID: "a2", Type: models.TaskAssessment, Order: 2},
	}
	assert.True(t, TaskUnlocked(true, tasks[1], tasks, set()))
}

func TestUnknownFirstTaskLocked(t *testing.T) {
	tasks := []models.Task{{ID: "v", Type: models.TaskType("video"), Order: 1}}
	assert.False(t, TaskUnlocked(true, tasks[0], tasks, set()))
}

func TestPredecessorTieBreak(t *testing.T) {
	tasks := []models.Task{
		{ID: "z", Type: models.TaskContent, Order: 1},
		{ID: "b", Type: models.TaskContent, Order: 2},
		{ID: "a", Type: models.TaskContent, Order: 2},
		{ID: "next", Type: models.TaskContent, Order: 3},
	}

	// Duplicate order 2: the lower id "a" is the predecessor
	assert.True(t, TaskUnlocked(true, tasks[3], tasks, set("a")))
	assert.False(t, TaskUnlocked(true, tasks[3], tasks, set("b")))

	// Tasks sharing an order both look back to order 1
	assert.True(t, TaskUnlocked(true, tasks[1], tasks, set("z")))
	assert.True(t, TaskUnlocked(true, tasks[2], tasks, set("z")))
}

func TestEvaluateIsPure(t *testing.T) {
	course := scenarioCourse()
	completed := set("T1")

	first := Evaluate(course, completed, nil)
	second := Evaluate(course, completed, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, set("T1"), completed)
}

func TestCourseAssessment(t *testing.T) {
	course := &models.Course{Levels: []models.Level{
		{ID: "l1", Tasks: []models.Task{{ID: "a", Type: models.TaskAssessment}}},
		{ID: "l2", Tasks: []models.Task{{ID: "c", Type: models.TaskContent}}},
		{ID: "l3", Tasks: []models.Task{{ID: "b", Type: models.TaskAssessment}}},
	}}

	done, score := CourseAssessment(course, map[string]*models.AssessmentCompletion{
		"l1": {LevelID: "l1", TotalScore: 40},
	})
	assert.False(t, done)
	assert.Nil(t, score)

	done, score = CourseAssessment(course, map[string]*models.AssessmentCompletion{
		"l1": {LevelID: "l1", TotalScore: 40},
		"l3": {LevelID: "l3", TotalScore: 81},
	})
	assert.True(t, done)
	if assert.NotNil(t, score) {
		assert.Equal(t, 61, *score)
	}

	noAssessments := &models.Course{Levels: []models.Level{{ID: "x"}}}
	done, score = CourseAssessment(noAssessments, nil)
	assert.False(t, done)
	assert.Nil(t, score)
}
