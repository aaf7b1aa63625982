package report

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Render produces the final text of a template: conditionals first, then a
// single literal pass over every key in m, then pronoun capitalization.
// Keys without a value in m are left as they are.
func Render(content string, m PlaceholderMap) string {
	text := EvaluateConditionals(content, m)
	text = Substitute(text, m)
	return CapitalizePronouns(text)
}

// Substitute replaces every key of m in one left-to-right pass, so inserted
// values are never scanned for further keys.
func Substitute(text string, m PlaceholderMap) string {
	if len(m) == 0 {
		return text
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

const pronounWords = `he|she|they|him|her|his|their|them|hers|theirs`

var (
	pronounAfterStop = regexp.MustCompile(`(?i)[.!?]\s+(?:` + pronounWords + `)\b`)
	pronounLeading   = regexp.MustCompile(`(?i)^\s*(?:` + pronounWords + `)\b`)
	pronounLeadingWS = regexp.MustCompile(`(?i)^\s+(?:` + pronounWords + `)\b`)
)

// sentence state carried from one text node to the next
type sentenceState int

const (
	atStart sentenceState = iota
	midSentence
	afterStop      // terminal punctuation, no whitespace yet
	afterStopSpace // terminal punctuation followed by whitespace
)

// CapitalizePronouns uppercases the first letter of a pronoun that opens a
// sentence. Only text content is touched: tags, attributes and the bodies
// of script and style elements are copied unchanged.
func CapitalizePronouns(text string) string {
	z := html.NewTokenizer(strings.NewReader(text))
	var b strings.Builder
	b.Grow(len(text))

	state := atStart
	rawDepth := 0
	consumed := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// an unterminated tag at the end is dropped by the tokenizer
			if consumed < len(text) {
				b.WriteString(text[consumed:])
			}
			break
		}
		// TagName lowercases the tokenizer's buffer in place.
		raw := bytes.Clone(z.Raw())
		consumed += len(raw)

		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawTextElement(name) {
				rawDepth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawTextElement(name) && rawDepth > 0 {
				rawDepth--
			}
		case html.TextToken:
			if rawDepth == 0 {
				var out string
				out, state = capitalizeText(string(raw), state)
				b.WriteString(out)
				continue
			}
			if state == atStart {
				state = midSentence
			}
		}
		b.Write(raw)
	}
	return b.String()
}

func isRawTextElement(name []byte) bool {
	return string(name) == "script" || string(name) == "style"
}

func capitalizeText(s string, state sentenceState) (string, sentenceState) {
	switch state {
	case atStart, afterStopSpace:
		s = pronounLeading.ReplaceAllStringFunc(s, upperFirstLetter)
	case afterStop:
		s = pronounLeadingWS.ReplaceAllStringFunc(s, upperFirstLetter)
	}
	s = pronounAfterStop.ReplaceAllStringFunc(s, upperFirstLetter)
	return s, nextState(s, state)
}

func nextState(s string, prev sentenceState) sentenceState {
	trimmed := strings.TrimRight(s, " \t\r\n\f")
	trailingSpace := len(trimmed) < len(s)
	if trimmed == "" {
		if prev == afterStop && trailingSpace {
			return afterStopSpace
		}
		return prev
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		if trailingSpace {
			return afterStopSpace
		}
		return afterStop
	default:
		return midSentence
	}
}

func upperFirstLetter(m string) string {
	for i := 0; i < len(m); i++ {
		c := m[i]
		if c >= 'a' && c <= 'z' {
			return m[:i] + string(c-'a'+'A') + m[i+1:]
		}
		if c >= 'A' && c <= 'Z' {
			return m
		}
	}
	return m
}
