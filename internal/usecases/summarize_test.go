package usecases

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		limit   int
		want    string
	}{
		{name: "empty comment", comment: "", limit: 80, want: ""},
		{name: "only line feed", comment: "\n", limit: 80, want: ""},
		{name: "leading line feed", comment: "\nbody text", limit: 80, want: ""},
		{name: "short single line", comment: "abc", limit: 80, want: "abc"},
		{name: "first line kept", comment: "refactor parser\n\nDetails: rewrote the tokenizer", limit: 80, want: "refactor parser"},
		{name: "over limit", comment: strings.Repeat("x", 200), limit: 80, want: strings.Repeat("x", 77) + "..."},
		{name: "over limit small", comment: strings.Repeat("a", 120), limit: 40, want: strings.Repeat("a", 37) + "..."},
		{name: "exactly limit", comment: strings.Repeat("b", 80), limit: 80, want: strings.Repeat("b", 80)},
		{name: "exactly limit then body", comment: strings.Repeat("b", 80) + "\nbody", limit: 80, want: strings.Repeat("b", 80)},
		{name: "one over limit", comment: strings.Repeat("c", 81), limit: 80, want: strings.Repeat("c", 77) + "..."},
		{name: "multibyte runes", comment: strings.Repeat("é", 10), limit: 5, want: "éé..."},
		{name: "limit below ellipsis clamps", comment: "abcdef", limit: 1, want: "..."},
		{name: "limit below ellipsis short input", comment: "ab", limit: 2, want: "ab"},
		{name: "carriage return kept", comment: "fix\r\nbody", limit: 80, want: "fix\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.comment, tt.limit))
		})
	}
}

func TestRapidSummarize_BoundedSingleLine(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		comment := rapid.String().Draw(t, "comment")
		limit := rapid.IntRange(MinLineLimit, 200).Draw(t, "limit")

		got := Summarize(comment, limit)

		if n := utf8.RuneCountInString(got); n > limit {
			t.Fatalf("summary has %d runes, limit %d", n, limit)
		}
		if strings.ContainsRune(got, '\n') {
			t.Fatalf("summary %q contains a line feed", got)
		}
	})
}

func TestRapidSummarize_ShortLineUnchanged(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(MinLineLimit, 200).Draw(t, "limit")
		notLineFeed := rapid.Rune().Filter(func(r rune) bool { return r != '\n' })
		comment := rapid.StringOfN(notLineFeed, 0, limit-1, -1).Draw(t, "comment")

		if got := Summarize(comment, limit); got != comment {
			t.Fatalf("Summarize(%q, %d) = %q", comment, limit, got)
		}
	})
}

func TestRapidSummarize_TruncationMarksEllipsis(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(MinLineLimit, 120).Draw(t, "limit")
		extra := rapid.IntRange(1, 50).Draw(t, "extra")
		comment := strings.Repeat("z", limit+extra)

		got := Summarize(comment, limit)

		if utf8.RuneCountInString(got) != limit {
			t.Fatalf("summary length %d, want %d", utf8.RuneCountInString(got), limit)
		}
		if !strings.HasSuffix(got, "...") {
			t.Fatalf("summary %q has no ellipsis", got)
		}
	})
}
