package config

import "strings"

// PeriodReplacement stands in for "." in stored query templates. The
// configuration store rejects literal periods inside nested keys.
const PeriodReplacement = "_-_"

// Literal backslashes and dashes are prefixed with a backslash so an
// unescaped "-" can only be the middle of a PeriodReplacement. That keeps
// UnescapePeriods(EscapePeriods(s)) == s for any s.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	"-", `\-`,
	".", PeriodReplacement,
)

// EscapePeriods replaces every "." with PeriodReplacement.
func EscapePeriods(s string) string {
	return escaper.Replace(s)
}

// UnescapePeriods reverses EscapePeriods.
func UnescapePeriods(s string) string {
	if !strings.ContainsAny(s, `\-`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, `\\`), strings.HasPrefix(rest, `\-`):
			b.WriteByte(rest[1])
			i += 2
		case strings.HasPrefix(rest, PeriodReplacement):
			b.WriteByte('.')
			i += len(PeriodReplacement)
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// EscapeLines applies EscapePeriods to each line.
func EscapeLines(lines []string) []string {
	return mapLines(lines, EscapePeriods)
}

// UnescapeLines applies UnescapePeriods to each line.
func UnescapeLines(lines []string) []string {
	return mapLines(lines, UnescapePeriods)
}

func mapLines(lines []string, fn func(string) string) []string {
	if lines == nil {
		return nil
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = fn(l)
	}
	return out
}
