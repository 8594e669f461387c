package usecases

import (
	"strings"
	"unicode/utf8"
)

const (
	ellipsis = "..."

	// MinLineLimit is the smallest limit that leaves room for the ellipsis.
	// Smaller limits are raised to it.
	MinLineLimit = len(ellipsis)
)

// Summarize reduces a commit message to a single line of at most lineLimit runes.
// Reading stops at the first line feed (excluded) or once lineLimit runes were
// consumed. When the first line was cut short its last three runes become "...".
func Summarize(comment string, lineLimit int) string {
	if lineLimit < MinLineLimit {
		lineLimit = MinLineLimit
	}

	var sb strings.Builder
	consumed := 0
	rest := comment
	for rest != "" && consumed < lineLimit {
		r, size := utf8.DecodeRuneInString(rest)
		if r == '\n' {
			return sb.String()
		}
		sb.WriteString(rest[:size])
		rest = rest[size:]
		consumed++
	}

	if rest == "" || rest[0] == '\n' {
		return sb.String()
	}

	return truncateRunes(sb.String(), lineLimit-len(ellipsis)) + ellipsis
}

// truncateRunes keeps the first n runes of s.
func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
