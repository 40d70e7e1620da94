package exam

import (
	"math"

	"github.com/akozyrev/sciselect/internal/model"
)

// Grade computes the percentage of correctly answered questions.
//
// A question counts as correct only when the chosen answer set equals the
// correct set exactly; a partial match on a multi-choice question earns
// nothing. Questions the candidate never answered are left out of the
// denominator, so an empty submission grades to zero. Psychological
// questionnaires are never scored.
func Grade(test *model.Test, questions []model.Question, answers map[int64][]int64) int {
	if test.Type == model.TestPsychological {
		return 0
	}

	answered := 0
	correct := 0
	for _, q := range questions {
		chosen, ok := answers[q.ID]
		if !ok || len(chosen) == 0 {
			continue
		}
		answered++
		if sameIDSet(chosen, q.CorrectAnswers) {
			correct++
		}
	}
	if answered == 0 {
		return 0
	}
	return int(math.Round(float64(correct) * 100 / float64(answered)))
}

func sameIDSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int64]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	if len(set) != len(b) {
		return false
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
