package descriptor

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/psych-report/backend/internal/models"
)

// NotAvailable is returned when no tier of the cascade applies.
const NotAvailable = "N/A"

// Sources name the cascade tier that produced a descriptor.
const (
	SourceUserRule   = "user_rule"
	SourcePercentile = "system_percentile"
	SourceScaled     = "system_scaled"
	SourceComposite  = "system_composite"
	SourceUpstream   = "upstream"
	SourceNone       = "none"
)

// Result holds the resolved descriptor for one score
type Result struct {
	Descriptor      string `json:"descriptor"`
	PercentileRange string `json:"percentile_range"`
	WasCustom       bool   `json:"was_custom"`
	Source          string `json:"source"`
	Reason          string `json:"reason"`
}

// Resolve runs the descriptor cascade: user rules, then the system tables
// (percentile, scaled, composite in that order), then the upstream
// descriptor when allowFallback is set.
func Resolve(score models.ExtractedScore, rules []models.ScoreDescriptorRule, allowFallback bool) Result {
	if r, ok := resolveUserRule(score, rules); ok {
		return r
	}
	if r, ok := resolveSystem(score); ok {
		return r
	}
	if allowFallback && score.Descriptor != nil && *score.Descriptor != "" && *score.Descriptor != "null" {
		r := Result{
			Descriptor: *score.Descriptor,
			Source:     SourceUpstream,
			Reason:     "Upstream descriptor used verbatim",
		}
		if score.PercentileRange != nil {
			r.PercentileRange = *score.PercentileRange
		}
		return r
	}
	return Result{Descriptor: NotAvailable, Source: SourceNone, Reason: "No rule applies"}
}

// ValueFor returns the score field a rule of scoreType is evaluated against.
func ValueFor(score models.ExtractedScore, scoreType string) *float64 {
	switch scoreType {
	case models.ScoreTypeStandard:
		return score.CompositeScore
	case models.ScoreTypeScaled:
		return score.ScaledScore
	case models.ScoreTypePercentile:
		return score.PercentileRank
	default:
		return nil
	}
}

func resolveUserRule(score models.ExtractedScore, rules []models.ScoreDescriptorRule) (Result, bool) {
	for _, rule := range SortRules(rules) {
		v := ValueFor(score, rule.ScoreType)
		if v == nil || *v < rule.MinScore {
			continue
		}
		if rule.MaxScore != nil && *v > *rule.MaxScore {
			continue
		}
		upper := "∞"
		if rule.MaxScore != nil {
			upper = formatNumber(*rule.MaxScore)
		}
		return Result{
			Descriptor:      rule.Descriptor,
			PercentileRange: rule.PercentileRange,
			WasCustom:       true,
			Source:          SourceUserRule,
			Reason: fmt.Sprintf("%s %s in [%s, %s] → %s",
				rule.ScoreType, formatNumber(*v), formatNumber(rule.MinScore), upper, rule.Descriptor),
		}, true
	}
	return Result{}, false
}

// SortRules orders overlapping rules deterministically: the earliest created
// rule wins, ID breaks ties. The input is left untouched.
func SortRules(rules []models.ScoreDescriptorRule) []models.ScoreDescriptorRule {
	sorted := make([]models.ScoreDescriptorRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

func resolveSystem(score models.ExtractedScore) (Result, bool) {
	switch {
	case present(score.PercentileRank):
		d, rng := PercentileDescriptor(*score.PercentileRank)
		return systemResult(SourcePercentile, "Percentile", *score.PercentileRank, d, rng), true
	case present(score.ScaledScore):
		d, rng := ScaledDescriptor(*score.ScaledScore)
		return systemResult(SourceScaled, "Scaled", *score.ScaledScore, d, rng), true
	case present(score.CompositeScore):
		d, rng := CompositeDescriptor(*score.CompositeScore)
		return systemResult(SourceComposite, "Composite", *score.CompositeScore, d, rng), true
	default:
		return Result{}, false
	}
}

// present treats zero as an extraction placeholder rather than a score.
func present(v *float64) bool {
	return v != nil && *v != 0
}

func systemResult(source, label string, value float64, d, rng string) Result {
	return Result{
		Descriptor:      d,
		PercentileRange: rng,
		Source:          source,
		Reason:          fmt.Sprintf("%s %s → %s (%s)", label, formatNumber(value), d, rng),
	}
}

// PercentileDescriptor maps a percentile rank to its descriptor band
func PercentileDescriptor(p float64) (string, string) {
	switch {
	case p >= 98:
		return "Extremely High", "98-99"
	case p >= 91:
		return "Very High", "91-97"
	case p >= 75:
		return "Above Average", "75-90"
	case p >= 25:
		return "Average", "25-74"
	case p >= 9:
		return "Below Average", "9-24"
	case p >= 3:
		return "Very Low", "3-8"
	default:
		return "Extremely Low", "1-2"
	}
}

// CompositeDescriptor maps a standard score (mean 100, SD 15)
func CompositeDescriptor(s float64) (string, string) {
	switch {
	case s >= 130:
		return "Extremely High", "98-99"
	case s >= 120:
		return "Very High", "91-97"
	case s >= 110:
		return "Above Average", "75-90"
	case s >= 90:
		return "Average", "25-74"
	case s >= 80:
		return "Below Average", "9-24"
	case s >= 70:
		return "Very Low", "3-8"
	default:
		return "Extremely Low", "1-2"
	}
}

// ScaledDescriptor maps a scaled score (mean 10, SD 3)
func ScaledDescriptor(s float64) (string, string) {
	switch {
	case s >= 17:
		return "Extremely High", "98-99"
	case s >= 15:
		return "Very High", "91-97"
	case s >= 12:
		return "Above Average", "75-90"
	case s >= 8:
		return "Average", "25-74"
	case s >= 6:
		return "Below Average", "9-24"
	case s >= 4:
		return "Very Low", "3-8"
	default:
		return "Extremely Low", "1-2"
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
