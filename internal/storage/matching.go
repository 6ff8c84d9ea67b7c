package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/terra-clan/progression-engine/internal/models"
)

// UpsertJobRole creates or replaces a role and its requirements
func (r *SQLRepository) UpsertJobRole(ctx context.Context, role *models.JobRole) error {
	return r.withTx(ctx, func(q querier) error {
		_, err := q.exec(ctx, `
			INSERT INTO job_roles (id, company, title, description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				company = excluded.company,
				title = excluded.title,
				description = excluded.description
		`, role.ID, role.Company, role.Title, role.Description)
		if err != nil {
			return fmt.Errorf("failed to upsert job role: %w", err)
		}

		if _, err := q.exec(ctx, `DELETE FROM job_role_requirements WHERE role_id = $1`, role.ID); err != nil {
			return fmt.Errorf("failed to clear role requirements: %w", err)
		}

		for _, req := range role.Requirements {
			_, err := q.exec(ctx, `
				INSERT INTO job_role_requirements (role_id, domain, minimum_level)
				VALUES ($1, $2, $3)
			`, role.ID, req.Domain, req.MinimumLevel)
			if err != nil {
				return fmt.Errorf("failed to create role requirement: %w", r.translate(err))
			}
		}
		return nil
	})
}

// ListJobRoles returns every role with its requirements
func (r *SQLRepository) ListJobRoles(ctx context.Context) ([]*models.JobRole, error) {
	rows, err := r.db.query(ctx, `
		SELECT id, company, title, description
		FROM job_roles
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list job roles: %w", err)
	}

	var roles []*models.JobRole
	byID := make(map[string]*models.JobRole)
	for rows.Next() {
		var role models.JobRole
		if err := rows.Scan(&role.ID, &role.Company, &role.Title, &role.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan job role: %w", err)
		}
		roles = append(roles, &role)
		byID[role.ID] = &role
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	reqRows, err := r.db.query(ctx, `
		SELECT role_id, domain, minimum_level
		FROM job_role_requirements
		ORDER BY role_id, domain
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list role requirements: %w", err)
	}
	defer reqRows.Close()

	for reqRows.Next() {
		var roleID string
		var req models.RoleRequirement
		if err := reqRows.Scan(&roleID, &req.Domain, &req.MinimumLevel); err != nil {
			return nil, fmt.Errorf("failed to scan role requirement: %w", err)
		}
		if role, ok := byID[roleID]; ok {
			role.Requirements = append(role.Requirements, req)
		}
	}

	return roles, reqRows.Err()
}

// GetSkillLevels returns the candidate's level per domain
func (r *SQLRepository) GetSkillLevels(ctx context.Context, candidateID string) (map[string]int, error) {
	rows, err := r.db.query(ctx, `
		SELECT domain, level
		FROM candidate_skill_levels
		WHERE candidate_id = $1
	`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get skill levels: %w", err)
	}
	defer rows.Close()

	levels := make(map[string]int)
	for rows.Next() {
		var domain string
		var level int
		if err := rows.Scan(&domain, &level); err != nil {
			return nil, fmt.Errorf("failed to scan skill level: %w", err)
		}
		levels[domain] = level
	}

	return levels, rows.Err()
}

// RaiseSkillLevel stores level for (candidate, domain) unless a higher one exists
func (r *SQLRepository) RaiseSkillLevel(ctx context.Context, candidateID, domain string, level int, at time.Time) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO candidate_skill_levels (candidate_id, domain, level, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (candidate_id, domain) DO UPDATE SET
			level = excluded.level,
			updated_at = excluded.updated_at
		WHERE excluded.level > candidate_skill_levels.level
	`, candidateID, domain, level, at)
	if err != nil {
		return fmt.Errorf("failed to raise skill level: %w", err)
	}
	return nil
}

// UpsertJobMatch stores the candidate's latest score for a role
func (r *SQLRepository) UpsertJobMatch(ctx context.Context, m *models.JobMatch) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO candidate_job_matches (candidate_id, role_id, match_score, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (candidate_id, role_id) DO UPDATE SET
			match_score = excluded.match_score,
			last_updated = excluded.last_updated
	`, m.CandidateID, m.RoleID, m.MatchScore, m.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert job match: %w", err)
	}
	return nil
}

// ListJobMatches returns the candidate's matches, best first
func (r *SQLRepository) ListJobMatches(ctx context.Context, candidateID string) ([]*models.JobMatch, error) {
	rows, err := r.db.query(ctx, `
		SELECT m.candidate_id, m.role_id, j.title, j.company, m.match_score, m.last_updated
		FROM candidate_job_matches m
		JOIN job_roles j ON j.id = m.role_id
		WHERE m.candidate_id = $1
		ORDER BY m.match_score DESC, m.role_id
	`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.JobMatch
	for rows.Next() {
		var m models.JobMatch
		if err := rows.Scan(&m.CandidateID, &m.RoleID, &m.RoleTitle, &m.Company, &m.MatchScore, &m.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan job match: %w", err)
		}
		matches = append(matches, &m)
	}

	return matches, rows.Err()
}

// ListSkilledCandidates returns every candidate with at least one skill level
func (r *SQLRepository) ListSkilledCandidates(ctx context.Context) ([]string, error) {
	rows, err := r.db.query(ctx, `
		SELECT DISTINCT candidate_id
		FROM candidate_skill_levels
		ORDER BY candidate_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan candidate id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
