package report

import (
	"regexp"
	"strconv"
	"strings"
)

// conditionalPattern matches {{IF:name:op:threshold:true text:false text}}.
// The branch texts may not contain a closing brace.
var conditionalPattern = regexp.MustCompile(`\{\{IF:([^:{}]+):(>=|<=|==|!=|>|<):([^:{}]*):([^:}]*):([^}]*)\}\}`)

// EvaluateConditionals replaces every conditional expression with one of its
// branches. name is looked up as {{name}} in m. A missing, empty or
// non-numeric operand or threshold selects the false branch. Branch text is
// not evaluated again.
func EvaluateConditionals(text string, m PlaceholderMap) string {
	return conditionalPattern.ReplaceAllStringFunc(text, func(expr string) string {
		parts := conditionalPattern.FindStringSubmatch(expr)
		name, op, threshold, whenTrue, whenFalse := parts[1], parts[2], parts[3], parts[4], parts[5]
		if compare(m["{{"+strings.TrimSpace(name)+"}}"], op, threshold) {
			return whenTrue
		}
		return whenFalse
	})
}

func compare(value, op, threshold string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return false
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(threshold), 64)
	if err != nil {
		return false
	}

	switch op {
	case ">=":
		return v >= t
	case "<=":
		return v <= t
	case ">":
		return v > t
	case "<":
		return v < t
	case "==":
		return v == t
	case "!=":
		return v != t
	default:
		return false
	}
}
