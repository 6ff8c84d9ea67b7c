package progression

import (
	"math"

	"github.com/terra-clan/progression-engine/internal/models"
)

// CourseAssessment reports whether every level carrying assessment tasks has
// a recorded completion, and the rounded mean of those level scores.
// A course without assessment tasks is never complete.
func CourseAssessment(course *models.Course, completions map[string]*models.AssessmentCompletion) (bool, *int) {
	var scores []int
	for _, lvl := range course.Levels {
		if !lvl.HasAssessment() {
			continue
		}
		c, ok := completions[lvl.ID]
		if !ok {
			return false, nil
		}
		scores = append(scores, c.TotalScore)
	}
	if len(scores) == 0 {
		return false, nil
	}
	score := roundedMean(scores)
	return true, &score
}

func roundedMean(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values))))
}
