package progression

import (
	"github.com/terra-clan/progression-engine/internal/models"
)

// TaskUnlocked reports whether task is accessible inside its level.
// levelTasks must contain every task of the level, in any order.
func TaskUnlocked(levelUnlocked bool, task models.Task, levelTasks []models.Task, completed map[string]bool) bool {
	if !levelUnlocked {
		return false
	}
	// Unknown types fail closed, even at the level's first position
	if !task.Type.IsKnown() {
		return false
	}

	if task.Order <= minOrder(levelTasks) {
		return true
	}

	switch task.Type {
	case models.TaskContent:
		prev, ok := predecessor(task, levelTasks)
		return ok && completed[prev.ID]
	case models.TaskAssessment:
		for _, t := range levelTasks {
			if t.Type == models.TaskContent && t.Order < task.Order && !completed[t.ID] {
				return false
			}
		}
		return true
	}
	return false
}

// LevelUnlocked reports whether level is accessible. previous is the level
// immediately before it by order, nil for the first level, and
// previousUnlocked is its own evaluated state. A locked previous level keeps
// every later level locked.
func LevelUnlocked(level models.Level, previous *models.Level, previousUnlocked bool, completedTasks, completedLevels map[string]bool) bool {
	if previous == nil {
		return true
	}
	return previousUnlocked && gatingComplete(*previous, completedTasks, completedLevels)
}

// gatingComplete is true once the level has a recorded assessment completion
// or all of its assessment tasks are completed. A level without assessments
// gates nothing.
func gatingComplete(level models.Level, completedTasks, completedLevels map[string]bool) bool {
	if completedLevels[level.ID] {
		return true
	}
	for _, t := range level.Tasks {
		if t.Type == models.TaskAssessment && !completedTasks[t.ID] {
			return false
		}
	}
	return true
}

// Unlocks holds the evaluated accessibility of a course for one candidate
type Unlocks struct {
	Levels map[string]bool
	Tasks  map[string]bool
}

// Evaluate computes level and task unlocks for a whole course.
// The course is not modified.
func Evaluate(course *models.Course, completedTasks, completedLevels map[string]bool) Unlocks {
	u := Unlocks{
		Levels: make(map[string]bool),
		Tasks:  make(map[string]bool),
	}

	levels := sortedLevels(course.Levels)
	for i, lvl := range levels {
		var (
			prev         *models.Level
			prevUnlocked bool
		)
		if i > 0 {
			prev = &levels[i-1]
			prevUnlocked = u.Levels[prev.ID]
		}
		unlocked := LevelUnlocked(lvl, prev, prevUnlocked, completedTasks, completedLevels)
		u.Levels[lvl.ID] = unlocked

		for _, t := range lvl.Tasks {
			u.Tasks[t.ID] = TaskUnlocked(unlocked, t, lvl.Tasks, completedTasks)
		}
	}

	return u
}

func sortedLevels(levels []models.Level) []models.Level {
	out := make([]models.Level, len(levels))
	copy(out, levels)
	models.SortLevels(out)
	return out
}

func minOrder(tasks []models.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	m := tasks[0].Order
	for _, t := range tasks[1:] {
		if t.Order < m {
			m = t.Order
		}
	}
	return m
}

// predecessor returns the task with the highest order below task.Order.
// Equal orders resolve to the lowest id.
func predecessor(task models.Task, tasks []models.Task) (models.Task, bool) {
	var best models.Task
	found := false
	for _, t := range tasks {
		if t.ID == task.ID || t.Order >= task.Order {
			continue
		}
		if !found || t.Order > best.Order || (t.Order == best.Order && t.ID < best.ID) {
			best = t
			found = true
		}
	}
	return best, found
}
