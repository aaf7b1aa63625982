package testbank

import "github.com/psych-report/backend/internal/models"

// FindSubtest looks up rawName in def by canonical name or alias using the
// simple normalizer. There is no fuzzy tier at this level.
func FindSubtest(def *models.TestDefinition, rawName string) (int, bool) {
	if def == nil {
		return -1, false
	}
	key := NormalizeSimple(rawName)
	if key == "" {
		return -1, false
	}
	for i, st := range def.Subtests {
		if NormalizeSimple(st.CanonicalName) == key {
			return i, true
		}
		for _, alias := range st.Aliases {
			if NormalizeSimple(alias) == key {
				return i, true
			}
		}
	}
	return -1, false
}

// AnnotateScores returns a copy of scores with CanonicalName and DisplayName
// filled in for every subtest def knows. Unknown subtests pass through.
func AnnotateScores(def *models.TestDefinition, scores []models.ExtractedScore) []models.ExtractedScore {
	out := make([]models.ExtractedScore, len(scores))
	for i, s := range scores {
		if idx, ok := FindSubtest(def, s.SubtestName); ok {
			st := def.Subtests[idx]
			s.CanonicalName = st.CanonicalName
			s.DisplayName = st.DisplayName
			if s.DisplayName == "" {
				s.DisplayName = s.SubtestName
			}
		}
		out[i] = s
	}
	return out
}
