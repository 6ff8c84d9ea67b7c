package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/progression-engine/internal/models"
	"github.com/terra-clan/progression-engine/internal/storage"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRepositoryCatalog(t *testing.T) {
	// Use the catalog shipped with the repository
	dir := filepath.Join("..", "..", "catalog")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Skip("catalog directory not found, skipping")
	}

	loader := NewLoader(nil)
	require.NoError(t, loader.LoadFromDir(dir))

	py := loader.GetCourse("python-basics")
	require.NotNil(t, py)
	assert.Equal(t, "python", py.Domain)
	require.Len(t, py.Levels, 2)
	assert.Equal(t, models.TaskAssessment, py.Levels[0].Tasks[2].Type)

	assert.NotNil(t, loader.GetCourse("backend-cpp"))
	assert.Len(t, loader.Roles(), 2)
}

func TestLoadCourseFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "intro-go.yaml", `
domain: Go
title: Intro to Go
levels:
  - order: 2
    tasks:
      - type: assessment
        title: Quiz
        order: 2
      - type: content
        title: Slices
        order: 1
  - order: 1
    name: Basics
    tasks:
      - type: video
        title: Welcome
        order: 1
`)

	loader := NewLoader(nil)
	course, err := loader.LoadCourseFile(path)
	require.NoError(t, err)

	assert.Equal(t, "intro-go", course.ID, "id falls back to file name")
	assert.Equal(t, "go", course.Domain)
	assert.Equal(t, 1, course.Difficulty)
	assert.True(t, course.IsActive)

	require.Len(t, course.Levels, 2)
	assert.Equal(t, "Basics", course.Levels[0].Name)
	assert.Equal(t, "Level 2", course.Levels[1].Name)
	assert.Equal(t, "Slices", course.Levels[1].Tasks[0].Title)
	assert.Equal(t, models.TaskType("video"), course.Levels[0].Tasks[0].Type, "unknown types are kept")

	// Derived ids are stable across loads
	again, err := NewLoader(nil).LoadCourseFile(path)
	require.NoError(t, err)
	assert.Equal(t, course.Levels[1].ID, again.Levels[1].ID)
	assert.Equal(t, course.Levels[1].Tasks[1].ID, again.Levels[1].Tasks[1].ID)
	assert.NotEqual(t, course.Levels[0].ID, course.Levels[1].ID)
}

func TestLoadCourseFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing title", "domain: go\n"},
		{"missing domain", "title: X\n"},
		{"duplicate level order", `
domain: go
title: X
levels:
  - order: 1
  - order: 1
`},
		{"duplicate task order", `
domain: go
title: X
levels:
  - order: 1
    tasks:
      - {type: content, title: A, order: 1}
      - {type: content, title: B, order: 1}
`},
		{"non-positive order", `
domain: go
title: X
levels:
  - order: 0
`},
		{"duplicate ids", `
domain: go
title: X
levels:
  - order: 1
    tasks:
      - {id: same, type: content, title: A, order: 1}
      - {id: same, type: content, title: B, order: 2}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "course.yaml", tt.content)
			_, err := NewLoader(nil).LoadCourseFile(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadRoleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data-eng.yaml", `
title: Data Engineer
requirements:
  - domain: Python
    minimum_level: 2
`)

	role, err := NewLoader(nil).LoadRoleFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data-eng", role.ID)
	assert.Equal(t, []models.RoleRequirement{{Domain: "python", MinimumLevel: 2}}, role.Requirements)

	dup := writeFile(t, dir, "dup.yaml", `
title: Dup
requirements:
  - {domain: go, minimum_level: 1}
  - {domain: Go, minimum_level: 2}
`)
	_, err = NewLoader(nil).LoadRoleFile(dup)
	assert.Error(t, err)
}

func TestLoadFromDirSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "courses/good.yaml", "domain: go\ntitle: Good\n")
	writeFile(t, dir, "courses/bad.yml", "title: [unterminated\n")
	writeFile(t, dir, "roles/role.yaml", "title: Gopher\n")

	loader := NewLoader(nil)
	require.NoError(t, loader.LoadFromDir(dir))
	assert.Len(t, loader.Courses(), 1)
	assert.Len(t, loader.Roles(), 1)

	assert.Error(t, loader.LoadFromDir(filepath.Join(dir, "missing")))
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(ctx, storage.SQLiteConfig{DSN: ":memory:"})
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.Migrate(ctx, ""))

	dir := t.TempDir()
	writeFile(t, dir, "courses/go.yaml", `
domain: go
title: Go
time_limit_minutes: 20
levels:
  - order: 1
    tasks:
      - {type: content, title: Hello, order: 1}
      - {type: assessment, title: Quiz, order: 2}
`)
	writeFile(t, dir, "roles/gopher.yaml", `
title: Gopher
requirements:
  - {domain: go, minimum_level: 1}
`)

	loader := NewLoader(nil)
	require.NoError(t, loader.LoadFromDir(dir))

	res, err := loader.Seed(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{CoursesCreated: 1, RolesUpserted: 1}, res)

	res, err = loader.Seed(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{CoursesSkipped: 1, RolesUpserted: 1}, res)

	course, err := repo.GetCourse(ctx, "go")
	require.NoError(t, err)
	require.NotNil(t, course)
	assert.Equal(t, 20, course.TimeLimitMinutes)
	require.Len(t, course.Levels, 1)
	assert.Len(t, course.Levels[0].Tasks, 2)

	roles, err := repo.ListJobRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "gopher", roles[0].ID)
}
