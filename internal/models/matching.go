package models

import "time"

// JobRole is an open position with skill requirements
type JobRole struct {
	ID           string            `json:"id" yaml:"id"`
	Company      string            `json:"company" yaml:"company"`
	Title        string            `json:"title" yaml:"title"`
	Description  string            `json:"description" yaml:"description"`
	Requirements []RoleRequirement `json:"requirements" yaml:"requirements"`
}

// RoleRequirement is a minimum skill level in a technical domain
type RoleRequirement struct {
	Domain       string `json:"domain" yaml:"domain"`
	MinimumLevel int    `json:"minimum_level" yaml:"minimum_level"`
}

// SkillLevel is a candidate's demonstrated level in a domain
type SkillLevel struct {
	CandidateID string    `json:"candidate_id"`
	Domain      string    `json:"domain"`
	Level       int       `json:"level"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobMatch is a candidate's match score against a role
type JobMatch struct {
	CandidateID string    `json:"candidate_id"`
	RoleID      string    `json:"role_id"`
	RoleTitle   string    `json:"role_title,omitempty"`
	Company     string    `json:"company,omitempty"`
	MatchScore  int       `json:"match_score"`
	LastUpdated time.Time `json:"last_updated"`
}
