// Package matching scores candidates against job roles from the skill levels
// they demonstrate by completing courses.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/progression-engine/internal/models"
)

// Store is the persistence the matcher needs
type Store interface {
	ListJobRoles(ctx context.Context) ([]*models.JobRole, error)
	GetSkillLevels(ctx context.Context, candidateID string) (map[string]int, error)
	RaiseSkillLevel(ctx context.Context, candidateID, domain string, level int, at time.Time) error
	UpsertJobMatch(ctx context.Context, m *models.JobMatch) error
	ListJobMatches(ctx context.Context, candidateID string) ([]*models.JobMatch, error)
	ListSkilledCandidates(ctx context.Context) ([]string, error)
}

// Compute returns the match score (0-100) of skills against a role's
// requirements. Each requirement contributes min(1, skill/minimum).
func Compute(skills map[string]int, requirements []models.RoleRequirement) int {
	if len(requirements) == 0 {
		return 0
	}
	total := 0.0
	for _, req := range requirements {
		if req.MinimumLevel <= 0 {
			total++
			continue
		}
		total += math.Min(1, float64(skills[req.Domain])/float64(req.MinimumLevel))
	}
	return int(math.Round(100 * total / float64(len(requirements))))
}

// Service keeps candidate skill levels and job matches current
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new matching service
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "matching"),
		now:    time.Now,
	}
}

// CourseCompleted raises the candidate's level in the course domain to the
// course difficulty and recomputes their matches
func (s *Service) CourseCompleted(ctx context.Context, candidateID string, course *models.Course, score int) error {
	s.logger.Info("course completed",
		"candidate_id", candidateID,
		"course_id", course.ID,
		"domain", course.Domain,
		"score", score,
	)
	if err := s.store.RaiseSkillLevel(ctx, candidateID, course.Domain, course.Difficulty, s.now().UTC()); err != nil {
		return err
	}
	return s.Recompute(ctx, candidateID)
}

// Recompute refreshes every role match of one candidate
func (s *Service) Recompute(ctx context.Context, candidateID string) error {
	roles, err := s.store.ListJobRoles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list job roles: %w", err)
	}
	return s.recompute(ctx, candidateID, roles)
}

func (s *Service) recompute(ctx context.Context, candidateID string, roles []*models.JobRole) error {
	skills, err := s.store.GetSkillLevels(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("failed to get skill levels: %w", err)
	}

	now := s.now().UTC()
	for _, role := range roles {
		m := &models.JobMatch{
			CandidateID: candidateID,
			RoleID:      role.ID,
			MatchScore:  Compute(skills, role.Requirements),
			LastUpdated: now,
		}
		if err := s.store.UpsertJobMatch(ctx, m); err != nil {
			return fmt.Errorf("failed to store match for role %s: %w", role.ID, err)
		}
	}
	return nil
}

// RecomputeAll refreshes matches for every candidate with a skill level.
// Returns the number of candidates refreshed.
func (s *Service) RecomputeAll(ctx context.Context, workers int) (int, error) {
	roles, err := s.store.ListJobRoles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list job roles: %w", err)
	}
	candidates, err := s.store.ListSkilledCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list candidates: %w", err)
	}
	if workers <= 0 {
		workers = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range candidates {
		g.Go(func() error {
			return s.recompute(gctx, id, roles)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(candidates), nil
}

// Matches returns the candidate's stored matches, best first
func (s *Service) Matches(ctx context.Context, candidateID string) ([]*models.JobMatch, error) {
	return s.store.ListJobMatches(ctx, candidateID)
}
