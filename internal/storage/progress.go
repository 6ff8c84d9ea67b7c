package storage

import (
	"context"
	"fmt"

	"github.com/terra-clan/progression-engine/internal/models"
)

// CreateTaskCompletion inserts a completion fact.
// Returns ErrDuplicate if (candidate, task) is already recorded.
func (r *SQLRepository) CreateTaskCompletion(ctx context.Context, c *models.TaskCompletion) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO candidate_task_progress (id, candidate_id, task_id, completed_at)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.CandidateID, c.TaskID, c.CompletedAt)
	if err != nil {
		if err = r.translate(err); err == ErrDuplicate {
			return err
		}
		return fmt.Errorf("failed to create task completion: %w", err)
	}
	return nil
}

// ListCompletedTaskIDs returns the candidate's completed task ids within a course
func (r *SQLRepository) ListCompletedTaskIDs(ctx context.Context, candidateID, courseID string) ([]string, error) {
	rows, err := r.db.query(ctx, `
		SELECT p.task_id
		FROM candidate_task_progress p
		JOIN tasks t ON t.id = p.task_id
		JOIN levels l ON l.id = t.level_id
		WHERE p.candidate_id = $1 AND l.course_id = $2
		ORDER BY p.task_id
	`, candidateID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// CreateSubmission stores a scored assessment answer.
// Returns ErrDuplicate if the candidate already answered the task.
func (r *SQLRepository) CreateSubmission(ctx context.Context, s *models.AssessmentSubmission) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO assessment_submissions (id, candidate_id, task_id, answer_text, score, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.CandidateID, s.TaskID, s.AnswerText, s.Score, s.Feedback, s.CreatedAt)
	if err != nil {
		if err = r.translate(err); err == ErrDuplicate {
			return err
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

const submissionColumns = `s.id, s.candidate_id, s.task_id, s.answer_text, s.score, s.feedback, s.created_at`

// GetSubmission retrieves the candidate's submission for a task
func (r *SQLRepository) GetSubmission(ctx context.Context, candidateID, taskID string) (*models.AssessmentSubmission, error) {
	s, err := scanSubmission(r.db.queryRow(ctx, `
		SELECT `+submissionColumns+`
		FROM assessment_submissions s
		WHERE s.candidate_id = $1 AND s.task_id = $2
	`, candidateID, taskID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return s, nil
}

// ListSubmissions returns the candidate's submissions for tasks in a level
func (r *SQLRepository) ListSubmissions(ctx context.Context, candidateID, levelID string) ([]*models.AssessmentSubmission, error) {
	rows, err := r.db.query(ctx, `
		SELECT `+submissionColumns+`
		FROM assessment_submissions s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.candidate_id = $1 AND t.level_id = $2
		ORDER BY t.order_index, t.id
	`, candidateID, levelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*models.AssessmentSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}

	return subs, rows.Err()
}

func scanSubmission(s row) (*models.AssessmentSubmission, error) {
	var sub models.AssessmentSubmission
	err := s.Scan(
		&sub.ID,
		&sub.CandidateID,
		&sub.TaskID,
		&sub.AnswerText,
		&sub.Score,
		&sub.Feedback,
		&sub.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}
	return &sub, nil
}

// CreateAssessmentCompletion records that a level's assessments are done.
// Returns ErrDuplicate if the level was already completed by the candidate.
func (r *SQLRepository) CreateAssessmentCompletion(ctx context.Context, c *models.AssessmentCompletion) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO candidate_assessment_completions (id, candidate_id, course_id, level_id, total_score, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.CandidateID, c.CourseID, c.LevelID, c.TotalScore, c.CompletedAt)
	if err != nil {
		if err = r.translate(err); err == ErrDuplicate {
			return err
		}
		return fmt.Errorf("failed to create assessment completion: %w", err)
	}
	return nil
}

// ListAssessmentCompletions returns the candidate's level completions in a course
func (r *SQLRepository) ListAssessmentCompletions(ctx context.Context, candidateID, courseID string) ([]*models.AssessmentCompletion, error) {
	rows, err := r.db.query(ctx, `
		SELECT id, candidate_id, course_id, level_id, total_score, completed_at
		FROM candidate_assessment_completions
		WHERE candidate_id = $1 AND course_id = $2
		ORDER BY level_id
	`, candidateID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessment completions: %w", err)
	}
	defer rows.Close()

	var completions []*models.AssessmentCompletion
	for rows.Next() {
		var c models.AssessmentCompletion
		if err := rows.Scan(&c.ID, &c.CandidateID, &c.CourseID, &c.LevelID, &c.TotalScore, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assessment completion: %w", err)
		}
		completions = append(completions, &c)
	}

	return completions, rows.Err()
}
