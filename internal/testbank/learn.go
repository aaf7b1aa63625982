package testbank

import (
	"slices"

	"github.com/psych-report/backend/internal/models"
)

// LearnOutcome describes what one learning pass did to a test group.
type LearnOutcome struct {
	Definition    models.TestDefinition
	Index         int // position in the input slice, -1 when Created
	Created       bool
	Changed       bool
	AddedSubtests []string
}

// GroupByTest splits scores into per-test groups, keeping first-seen order.
func GroupByTest(scores []models.ExtractedScore) ([]string, map[string][]models.ExtractedScore) {
	var order []string
	groups := make(map[string][]models.ExtractedScore)
	for _, s := range scores {
		if s.TestName == "" {
			continue
		}
		if _, ok := groups[s.TestName]; !ok {
			order = append(order, s.TestName)
		}
		groups[s.TestName] = append(groups[s.TestName], s)
	}
	return order, groups
}

// Learn merges one test group into owned, the caller's user-owned
// definitions. Only exact and alias matches are considered. The returned
// definition is a copy; owned is never modified.
//
// Learning is additive: existing subtests are never removed, renamed or
// reordered, and subtests with IsUserDefined set are never touched.
func Learn(testName string, scores []models.ExtractedScore, owned []models.TestDefinition) LearnOutcome {
	res := ResolveStrict(testName, owned)
	if res.Definition == nil {
		return learnNew(testName, scores)
	}

	idx := -1
	for i := range owned {
		if &owned[i] == res.Definition {
			idx = i
			break
		}
	}
	def := res.Definition.Clone()
	out := LearnOutcome{Index: idx}

	for _, s := range scores {
		if _, ok := FindSubtest(&def, s.SubtestName); ok {
			continue
		}
		canonical := FallbackCanonical(s.SubtestName)
		if canonical == "" {
			continue
		}
		// FindSubtest already matches any name whose fallback canonical
		// exists, so an unknown score always adds a new subtest.
		def.Subtests = append(def.Subtests, learnedSubtest(canonical, s.SubtestName))
		out.AddedSubtests = append(out.AddedSubtests, canonical)
	}

	out.Definition = def
	out.Changed = len(out.AddedSubtests) > 0
	return out
}

func learnNew(testName string, scores []models.ExtractedScore) LearnOutcome {
	def := models.TestDefinition{
		TestName:    testName,
		TestAliases: []string{testName},
		Subtests:    []models.Subtest{},
	}
	out := LearnOutcome{Index: -1, Created: true, Changed: true}
	for _, s := range scores {
		canonical := FallbackCanonical(s.SubtestName)
		if canonical == "" {
			continue
		}
		pos := slices.IndexFunc(def.Subtests, func(st models.Subtest) bool { return st.CanonicalName == canonical })
		if pos >= 0 {
			st := &def.Subtests[pos]
			if !slices.Contains(st.Aliases, s.SubtestName) {
				st.Aliases = append(st.Aliases, s.SubtestName)
			}
			continue
		}
		def.Subtests = append(def.Subtests, learnedSubtest(canonical, s.SubtestName))
		out.AddedSubtests = append(out.AddedSubtests, canonical)
	}
	out.Definition = def
	return out
}

func learnedSubtest(canonical, raw string) models.Subtest {
	return models.Subtest{
		CanonicalName: canonical,
		DisplayName:   raw,
		Aliases:       []string{raw},
		ScoreType:     models.ScoreTypeStandard,
		IsUserDefined: false,
	}
}
