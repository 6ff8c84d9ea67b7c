package models

import (
	"cmp"
	"slices"
	"time"
)

// TaskType classifies a task for unlock gating
type TaskType string

const (
	TaskContent    TaskType = "content"
	TaskAssessment TaskType = "assessment"
)

// IsKnown returns true for task types the unlock rules understand
func (t TaskType) IsKnown() bool {
	return t == TaskContent || t == TaskAssessment
}

// Course is the root of the catalog hierarchy (course -> levels -> tasks).
// Courses are immutable once created.
type Course struct {
	ID               string    `json:"id"`
	Domain           string    `json:"domain"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Difficulty       int       `json:"difficulty"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	Levels           []Level   `json:"levels"`
}

// Level is an ordered stage of a course
type Level struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
	Tasks    []Task `json:"tasks"`
}

// Task is the unit of completion inside a level
type Task struct {
	ID      string   `json:"id"`
	LevelID string   `json:"level_id"`
	Type    TaskType `json:"type"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Order   int      `json:"order"`
}

// SortLevels orders levels by order, then id
func SortLevels(levels []Level) {
	slices.SortStableFunc(levels, func(a, b Level) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// SortTasks orders tasks by order, then id
func SortTasks(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Normalize sorts levels and their tasks in place
func (c *Course) Normalize() {
	SortLevels(c.Levels)
	for i := range c.Levels {
		SortTasks(c.Levels[i].Tasks)
	}
}

// FindTask locates a task and its owning level
func (c *Course) FindTask(taskID string) (Level, Task, bool) {
	for _, lvl := range c.Levels {
		for _, t := range lvl.Tasks {
			if t.ID == taskID {
				return lvl, t, true
			}
		}
	}
	return Level{}, Task{}, false
}

// AssessmentTasks returns the level's assessment-type tasks
func (l Level) AssessmentTasks() []Task {
	var out []Task
	for _, t := range l.Tasks {
		if t.Type == TaskAssessment {
			out = append(out, t)
		}
	}
	return out
}

// HasAssessment reports whether the level has at least one assessment task
func (l Level) HasAssessment() bool {
	return slices.ContainsFunc(l.Tasks, func(t Task) bool { return t.Type == TaskAssessment })
}
