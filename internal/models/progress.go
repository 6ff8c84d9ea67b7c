package models

import (
	"time"
)

// CompletionStatus is the outcome of recording a completion
type CompletionStatus string

const (
	StatusCompleted        CompletionStatus = "completed"
	StatusAlreadyCompleted CompletionStatus = "already_completed"
)

// TaskCompletion records that a candidate finished a task.
// At most one exists per (candidate, task).
type TaskCompletion struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	TaskID      string    `json:"task_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// AssessmentSubmission is a scored answer to an assessment task
type AssessmentSubmission struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	TaskID      string    `json:"task_id"`
	AnswerText  string    `json:"answer_text"`
	Score       int       `json:"score"`
	Feedback    string    `json:"feedback"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssessmentCompletion records that a candidate completed every assessment
// task of a level, with the aggregate score
type AssessmentCompletion struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	CourseID    string    `json:"course_id"`
	LevelID     string    `json:"level_id"`
	TotalScore  int       `json:"total_score"`
	CompletedAt time.Time `json:"completed_at"`
}

// CompleteTaskRequest represents a request to complete a content task
type CompleteTaskRequest struct {
	CandidateID string `json:"candidate_id"`
	TaskID      string `json:"task_id"`
}

// CompleteTaskResult is returned after recording a task completion
type CompleteTaskResult struct {
	Status      CompletionStatus `json:"status"`
	CandidateID string           `json:"candidate_id"`
	TaskID      string           `json:"task_id"`
}

// SubmitAssessmentRequest represents an assessment answer submission
type SubmitAssessmentRequest struct {
	CandidateID string `json:"candidate_id"`
	TaskID      string `json:"task_id"`
	AnswerText  string `json:"answer_text"`
}

// SubmissionResult is returned after scoring an assessment answer
type SubmissionResult struct {
	Status         CompletionStatus `json:"status"`
	CandidateID    string           `json:"candidate_id"`
	TaskID         string           `json:"task_id"`
	Score          int              `json:"score"`
	Feedback       string           `json:"feedback"`
	LevelCompleted bool             `json:"level_completed"`
	LevelScore     *int             `json:"level_score,omitempty"`
}

// ProgressEventType names a progress event published to subscribers
type ProgressEventType string

const (
	EventTaskCompleted       ProgressEventType = "task.completed"
	EventAssessmentSubmitted ProgressEventType = "assessment.submitted"
	EventLevelCompleted      ProgressEventType = "level.completed"
)

// ProgressEvent notifies listeners that a candidate's progress changed
type ProgressEvent struct {
	Type        ProgressEventType `json:"type"`
	CandidateID string            `json:"candidate_id"`
	CourseID    string            `json:"course_id,omitempty"`
	LevelID     string            `json:"level_id,omitempty"`
	TaskID      string            `json:"task_id,omitempty"`
	Score       *int              `json:"score,omitempty"`
	At          time.Time         `json:"at"`
}
