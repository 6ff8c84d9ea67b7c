package models

// CourseDetailView is the per-candidate course detail page
type CourseDetailView struct {
	CourseID    string            `json:"course_id"`
	Domain      string            `json:"domain"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Difficulty  int               `json:"difficulty_level"`
	Levels      []LevelView       `json:"levels"`
	Assessment  AssessmentSummary `json:"assessment"`
}

// LevelView is a level with its computed unlock state
type LevelView struct {
	LevelID   string     `json:"level_id"`
	Name      string     `json:"name"`
	Order     int        `json:"order"`
	Unlocked  bool       `json:"unlocked"`
	Completed bool       `json:"completed"`
	Score     *int       `json:"score,omitempty"`
	Tasks     []TaskView `json:"tasks"`
}

// TaskView is a task with its computed completion and unlock state
type TaskView struct {
	TaskID    string   `json:"task_id"`
	Type      TaskType `json:"type"`
	Title     string   `json:"title"`
	Order     int      `json:"order"`
	Completed bool     `json:"completed"`
	Unlocked  bool     `json:"unlocked"`
}

// AssessmentSummary describes the candidate's standing on the course assessment
type AssessmentSummary struct {
	TimeLimitMinutes int  `json:"time_limit_minutes"`
	IsCompleted      bool `json:"is_completed"`
	Score            *int `json:"score,omitempty"`
}

// CourseSummary is one row of the candidate's course list
type CourseSummary struct {
	CourseID         string `json:"course_id"`
	Domain           string `json:"domain"`
	Title            string `json:"title"`
	DifficultyLevel  int    `json:"difficulty_level"`
	Description      string `json:"description"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
	IsCompleted      bool   `json:"is_completed"`
	Score            *int   `json:"score,omitempty"`
}
