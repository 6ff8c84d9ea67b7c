package storage

import (
	"context"
	"fmt"

	"github.com/terra-clan/progression-engine/internal/models"
)

// SeedCourse inserts a course tree if no course with that id exists.
// Courses are immutable, so an existing course is left untouched.
func (r *SQLRepository) SeedCourse(ctx context.Context, course *models.Course) (bool, error) {
	created := false
	err := r.withTx(ctx, func(q querier) error {
		var exists int
		if err := q.queryRow(ctx, `SELECT COUNT(*) FROM courses WHERE id = $1`, course.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check course: %w", err)
		}
		if exists > 0 {
			return nil
		}

		createdAt := course.CreatedAt
		if createdAt.IsZero() {
			createdAt = r.now().UTC()
		}

		_, err := q.exec(ctx, `
			INSERT INTO courses (id, domain, title, description, difficulty, time_limit_minutes, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, course.ID, course.Domain, course.Title, course.Description, course.Difficulty,
			course.TimeLimitMinutes, course.IsActive, createdAt)
		if err != nil {
			return fmt.Errorf("failed to create course: %w", r.translate(err))
		}

		for _, lvl := range course.Levels {
			_, err := q.exec(ctx, `
				INSERT INTO levels (id, course_id, name, order_index)
				VALUES ($1, $2, $3, $4)
			`, lvl.ID, course.ID, lvl.Name, lvl.Order)
			if err != nil {
				return fmt.Errorf("failed to create level %s: %w", lvl.ID, r.translate(err))
			}

			for _, t := range lvl.Tasks {
				_, err := q.exec(ctx, `
					INSERT INTO tasks (id, level_id, type, title, body, order_index)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, t.ID, lvl.ID, string(t.Type), t.Title, t.Body, t.Order)
				if err != nil {
					return fmt.Errorf("failed to create task %s: %w", t.ID, r.translate(err))
				}
			}
		}

		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetCourse retrieves a course with its levels and tasks sorted by order
func (r *SQLRepository) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := r.getCourseRow(ctx, id)
	if err != nil || course == nil {
		return course, err
	}

	levels, err := r.listLevels(ctx, id)
	if err != nil {
		return nil, err
	}

	tasks, err := r.listCourseTasks(ctx, id)
	if err != nil {
		return nil, err
	}

	for i := range levels {
		levels[i].Tasks = tasks[levels[i].ID]
	}
	course.Levels = levels
	course.Normalize()

	return course, nil
}

func (r *SQLRepository) getCourseRow(ctx context.Context, id string) (*models.Course, error) {
	query := `
		SELECT id, domain, title, description, difficulty, time_limit_minutes, is_active, created_at
		FROM courses
		WHERE id = $1
	`

	var c models.Course
	err := r.db.queryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Domain,
		&c.Title,
		&c.Description,
		&c.Difficulty,
		&c.TimeLimitMinutes,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	return &c, nil
}

func (r *SQLRepository) listLevels(ctx context.Context, courseID string) ([]models.Level, error) {
	rows, err := r.db.query(ctx, `
		SELECT id, course_id, name, order_index
		FROM levels
		WHERE course_id = $1
		ORDER BY order_index, id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	defer rows.Close()

	var levels []models.Level
	for rows.Next() {
		var l models.Level
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Name, &l.Order); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		levels = append(levels, l)
	}

	return levels, rows.Err()
}

// listCourseTasks returns the course's tasks grouped by level id
func (r *SQLRepository) listCourseTasks(ctx context.Context, courseID string) (map[string][]models.Task, error) {
	rows, err := r.db.query(ctx, `
		SELECT t.id, t.level_id, t.type, t.title, t.body, t.order_index
		FROM tasks t
		JOIN levels l ON l.id = t.level_id
		WHERE l.course_id = $1
		ORDER BY t.order_index, t.id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make(map[string][]models.Task)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks[t.LevelID] = append(tasks[t.LevelID], *t)
	}

	return tasks, rows.Err()
}

// ListCourses returns course rows without their level trees
func (r *SQLRepository) ListCourses(ctx context.Context, activeOnly bool) ([]*models.Course, error) {
	query := `
		SELECT id, domain, title, description, difficulty, time_limit_minutes, is_active, created_at
		FROM courses
	`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY domain, difficulty, id`

	rows, err := r.db.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		var c models.Course
		err := rows.Scan(
			&c.ID,
			&c.Domain,
			&c.Title,
			&c.Description,
			&c.Difficulty,
			&c.TimeLimitMinutes,
			&c.IsActive,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, &c)
	}

	return courses, rows.Err()
}

// GetTask retrieves a single task by ID
func (r *SQLRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(r.db.queryRow(ctx, `
		SELECT id, level_id, type, title, body, order_index
		FROM tasks
		WHERE id = $1
	`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return t, nil
}

// FindCourseByTask loads the full course tree owning the given task
func (r *SQLRepository) FindCourseByTask(ctx context.Context, taskID string) (*models.Course, error) {
	var courseID string
	err := r.db.queryRow(ctx, `
		SELECT l.course_id
		FROM tasks t
		JOIN levels l ON l.id = t.level_id
		WHERE t.id = $1
	`, taskID).Scan(&courseID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to find course by task: %w", err)
	}

	return r.GetCourse(ctx, courseID)
}

func scanTask(s row) (*models.Task, error) {
	var t models.Task
	var taskType string
	if err := s.Scan(&t.ID, &t.LevelID, &taskType, &t.Title, &t.Body, &t.Order); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.Type = models.TaskType(taskType)
	return &t, nil
}
