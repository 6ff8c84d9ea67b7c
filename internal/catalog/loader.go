// Package catalog loads course and job role definitions from YAML files and
// seeds them into the store.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/terra-clan/progression-engine/internal/models"
)

// idNamespace scopes ids derived for levels and tasks without explicit ids
var idNamespace = uuid.MustParse("6f1d3c2e-8a4b-5c7d-9e0f-1a2b3c4d5e6f")

// Loader manages loading and caching of catalog definitions
type Loader struct {
	mu      sync.RWMutex
	courses map[string]*models.Course
	roles   map[string]*models.JobRole
	logger  *slog.Logger
}

// NewLoader creates a new catalog loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		courses: make(map[string]*models.Course),
		roles:   make(map[string]*models.JobRole),
		logger:  logger.With("component", "catalog"),
	}
}

// LoadFromDir loads courses/*.yaml and roles/*.yaml under dir.
// Invalid files are logged and skipped.
func (l *Loader) LoadFromDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("catalog directory: %w", err)
	}
	l.logger.Info("loading catalog from directory", "dir", dir)

	courseFiles := yamlFiles(filepath.Join(dir, "courses"))
	for _, file := range courseFiles {
		if _, err := l.LoadCourseFile(file); err != nil {
			l.logger.Warn("failed to load course", "file", file, "error", err)
		}
	}

	roleFiles := yamlFiles(filepath.Join(dir, "roles"))
	for _, file := range roleFiles {
		if _, err := l.LoadRoleFile(file); err != nil {
			l.logger.Warn("failed to load role", "file", file, "error", err)
		}
	}

	l.mu.RLock()
	l.logger.Info("catalog loaded", "courses", len(l.courses), "roles", len(l.roles))
	l.mu.RUnlock()
	return nil
}

func yamlFiles(dir string) []string {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files
}

// LoadCourseFile parses and validates a single course file
func (l *Loader) LoadCourseFile(path string) (*models.Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var cf courseFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Use id from YAML, fall back to filename without extension
	if cf.ID == "" {
		base := filepath.Base(path)
		cf.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	course, err := l.buildCourse(cf)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.courses[course.ID] = course
	l.mu.Unlock()

	l.logger.Info("course loaded", "id", course.ID, "domain", course.Domain, "levels", len(course.Levels))
	return course, nil
}

func (l *Loader) buildCourse(cf courseFile) (*models.Course, error) {
	if cf.Title == "" {
		return nil, fmt.Errorf("course title is required")
	}
	if cf.Domain == "" {
		return nil, fmt.Errorf("course domain is required")
	}

	course := &models.Course{
		ID:               cf.ID,
		Domain:           strings.ToLower(strings.TrimSpace(cf.Domain)),
		Title:            cf.Title,
		Description:      cf.Description,
		Difficulty:       cf.Difficulty,
		TimeLimitMinutes: cf.TimeLimitMinutes,
		IsActive:         cf.Active == nil || *cf.Active,
	}
	if course.Difficulty <= 0 {
		course.Difficulty = 1
	}

	ids := make(map[string]bool)
	levelOrders := make(map[int]bool)
	for _, lf := range cf.Levels {
		if lf.Order <= 0 {
			return nil, fmt.Errorf("level %q: order must be positive", lf.Name)
		}
		if levelOrders[lf.Order] {
			return nil, fmt.Errorf("duplicate level order %d", lf.Order)
		}
		levelOrders[lf.Order] = true

		level := models.Level{
			ID:       lf.ID,
			CourseID: course.ID,
			Name:     lf.Name,
			Order:    lf.Order,
		}
		if level.ID == "" {
			level.ID = deriveID(course.ID, "level", lf.Order)
		}
		if level.Name == "" {
			level.Name = "Level " + strconv.Itoa(lf.Order)
		}
		if ids[level.ID] {
			return nil, fmt.Errorf("duplicate id %q", level.ID)
		}
		ids[level.ID] = true

		taskOrders := make(map[int]bool)
		for _, tf := range lf.Tasks {
			if tf.Title == "" {
				return nil, fmt.Errorf("level %d: task title is required", lf.Order)
			}
			if tf.Order <= 0 {
				return nil, fmt.Errorf("task %q: order must be positive", tf.Title)
			}
			if taskOrders[tf.Order] {
				return nil, fmt.Errorf("level %d: duplicate task order %d", lf.Order, tf.Order)
			}
			taskOrders[tf.Order] = true

			task := models.Task{
				ID:      tf.ID,
				LevelID: level.ID,
				Type:    models.TaskType(strings.ToLower(strings.TrimSpace(tf.Type))),
				Title:   tf.Title,
				Body:    tf.Body,
				Order:   tf.Order,
			}
			if task.ID == "" {
				task.ID = deriveID(level.ID, "task", tf.Order)
			}
			if ids[task.ID] {
				return nil, fmt.Errorf("duplicate id %q", task.ID)
			}
			ids[task.ID] = true

			if !task.Type.IsKnown() {
				// Kept so authors can stage new types; it stays locked.
				l.logger.Warn("unknown task type", "course", course.ID, "task", task.ID, "type", task.Type)
			}
			level.Tasks = append(level.Tasks, task)
		}

		course.Levels = append(course.Levels, level)
	}

	course.Normalize()
	return course, nil
}

// deriveID returns a stable id for an element without an explicit one
func deriveID(parent, kind string, order int) string {
	return uuid.NewSHA1(idNamespace, []byte(parent+"/"+kind+"/"+strconv.Itoa(order))).String()
}

// LoadRoleFile parses and validates a single job role file
func (l *Loader) LoadRoleFile(path string) (*models.JobRole, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var role models.JobRole
	if err := yaml.Unmarshal(data, &role); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if role.ID == "" {
		base := filepath.Base(path)
		role.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if role.Title == "" {
		return nil, fmt.Errorf("role title is required")
	}

	domains := make(map[string]bool)
	for i, req := range role.Requirements {
		domain := strings.ToLower(strings.TrimSpace(req.Domain))
		if domain == "" {
			return nil, fmt.Errorf("requirement %d: domain is required", i)
		}
		if domains[domain] {
			return nil, fmt.Errorf("duplicate requirement for domain %q", domain)
		}
		domains[domain] = true
		role.Requirements[i].Domain = domain
	}

	l.mu.Lock()
	l.roles[role.ID] = &role
	l.mu.Unlock()

	l.logger.Info("role loaded", "id", role.ID, "requirements", len(role.Requirements))
	return &role, nil
}

// GetCourse retrieves a loaded course by ID
func (l *Loader) GetCourse(id string) *models.Course {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.courses[id]
}

// Courses returns all loaded courses sorted by id
func (l *Loader) Courses() []*models.Course {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Course, 0, len(l.courses))
	for _, c := range l.courses {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Roles returns all loaded roles sorted by id
func (l *Loader) Roles() []*models.JobRole {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.JobRole, 0, len(l.roles))
	for _, r := range l.roles {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Seeder is the store the catalog is written into
type Seeder interface {
	SeedCourse(ctx context.Context, course *models.Course) (bool, error)
	UpsertJobRole(ctx context.Context, role *models.JobRole) error
}

// SeedResult summarizes a seeding run
type SeedResult struct {
	CoursesCreated int
	CoursesSkipped int
	RolesUpserted  int
}

// Seed writes loaded courses that do not exist yet and upserts every role
func (l *Loader) Seed(ctx context.Context, store Seeder) (SeedResult, error) {
	var res SeedResult

	for _, course := range l.Courses() {
		created, err := store.SeedCourse(ctx, course)
		if err != nil {
			return res, fmt.Errorf("failed to seed course %s: %w", course.ID, err)
		}
		if created {
			res.CoursesCreated++
		} else {
			res.CoursesSkipped++
		}
	}

	for _, role := range l.Roles() {
		if err := store.UpsertJobRole(ctx, role); err != nil {
			return res, fmt.Errorf("failed to seed role %s: %w", role.ID, err)
		}
		res.RolesUpserted++
	}

	l.logger.Info("catalog seeded",
		"courses_created", res.CoursesCreated,
		"courses_skipped", res.CoursesSkipped,
		"roles", res.RolesUpserted,
	)
	return res, nil
}

// --- YAML file structs ---

// courseFile represents the YAML structure of a course file
type courseFile struct {
	ID               string      `yaml:"id"`
	Domain           string      `yaml:"domain"`
	Title            string      `yaml:"title"`
	Description      string      `yaml:"description"`
	Difficulty       int         `yaml:"difficulty"`
	TimeLimitMinutes int         `yaml:"time_limit_minutes"`
	Active           *bool       `yaml:"active"`
	Levels           []levelFile `yaml:"levels"`
}

type levelFile struct {
	ID    string     `yaml:"id"`
	Name  string     `yaml:"name"`
	Order int        `yaml:"order"`
	Tasks []taskFile `yaml:"tasks"`
}

type taskFile struct {
	ID    string `yaml:"id"`
	Type  string `yaml:"type"`
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
	Order int    `yaml:"order"`
}
