package testbank

import (
	"strings"

	"github.com/psych-report/backend/internal/models"
)

// FuzzyThreshold is the minimum similarity a fuzzy candidate must exceed.
const FuzzyThreshold = 0.3

// MatchMethod records which resolution tier produced a match.
type MatchMethod string

const (
	MatchExact MatchMethod = "exact"
	MatchAlias MatchMethod = "alias"
	MatchFuzzy MatchMethod = "fuzzy"
	MatchNone  MatchMethod = "none"
)

// ResolvedTest is the outcome of resolving a raw test name. When nothing
// matched, Definition is nil and DisplayName is the raw name.
type ResolvedTest struct {
	Definition  *models.TestDefinition `json:"definition,omitempty"`
	DisplayName string                 `json:"display_name"`
	Method      MatchMethod            `json:"method"`
	Similarity  float64                `json:"similarity"`
}

// Resolve matches rawName against definitions: exact name first, then any
// alias, then the best fuzzy candidate scoring above FuzzyThreshold. Within
// a tier the caller's own definitions win over system ones.
func Resolve(rawName string, definitions []models.TestDefinition) ResolvedTest {
	if res, ok := resolveStrict(rawName, definitions); ok {
		return res
	}

	key := Normalize(rawName)
	miss := ResolvedTest{DisplayName: rawName, Method: MatchNone}
	if key == "" {
		return miss
	}

	best, bestScore := -1, 0.0
	for _, i := range personalFirst(definitions) {
		name := Normalize(definitions[i].TestName)
		if name == "" || !(strings.Contains(name, key) || strings.Contains(key, name)) {
			continue
		}
		if score := Similarity(name, key); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore <= FuzzyThreshold {
		return miss
	}
	return ResolvedTest{
		Definition:  &definitions[best],
		DisplayName: definitions[best].TestName,
		Method:      MatchFuzzy,
		Similarity:  bestScore,
	}
}

// ResolveStrict is Resolve without the fuzzy tier. The learning engine uses
// it so unrelated tests are never merged silently.
func ResolveStrict(rawName string, definitions []models.TestDefinition) ResolvedTest {
	if res, ok := resolveStrict(rawName, definitions); ok {
		return res
	}
	return ResolvedTest{DisplayName: rawName, Method: MatchNone}
}

func resolveStrict(rawName string, definitions []models.TestDefinition) (ResolvedTest, bool) {
	key := Normalize(rawName)
	if key == "" {
		return ResolvedTest{}, false
	}
	order := personalFirst(definitions)
	for _, i := range order {
		if Normalize(definitions[i].TestName) == key {
			return ResolvedTest{Definition: &definitions[i], DisplayName: definitions[i].TestName, Method: MatchExact, Similarity: 1}, true
		}
	}
	for _, i := range order {
		for _, alias := range definitions[i].TestAliases {
			if Normalize(alias) == key {
				return ResolvedTest{Definition: &definitions[i], DisplayName: definitions[i].TestName, Method: MatchAlias, Similarity: 1}, true
			}
		}
	}
	return ResolvedTest{}, false
}

// personalFirst returns the indexes of definitions with user-owned entries
// ahead of system ones. Each group keeps its input order.
func personalFirst(definitions []models.TestDefinition) []int {
	order := make([]int, 0, len(definitions))
	for i := range definitions {
		if !definitions[i].IsSystemTemplate && definitions[i].OwnerID != nil {
			order = append(order, i)
		}
	}
	for i := range definitions {
		if definitions[i].IsSystemTemplate || definitions[i].OwnerID == nil {
			order = append(order, i)
		}
	}
	return order
}

// Similarity is an in-order character overlap: walk the longer string and
// advance through the shorter one on every equal character. The result is
// matches / len(longer). It is order sensitive and not an edit distance.
func Similarity(a, b string) float64 {
	longer, shorter := a, b
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	if len(longer) == 0 {
		return 0
	}
	matches, j := 0, 0
	for i := 0; i < len(longer) && j < len(shorter); i++ {
		if longer[i] == shorter[j] {
			matches++
			j++
		}
	}
	return float64(matches) / float64(len(longer))
}

// AliasCollisions lists aliases of candidate that already resolve to another
// definition in existing. Collisions are reported, not rejected.
func AliasCollisions(candidate models.TestDefinition, existing []models.TestDefinition) []string {
	var out []string
	names := append([]string{candidate.TestName}, candidate.TestAliases...)
	for _, name := range names {
		res, ok := resolveStrict(name, existing)
		if !ok || res.Definition.ID == candidate.ID {
			continue
		}
		out = append(out, name+" already resolves to "+res.Definition.TestName)
	}
	return out
}
