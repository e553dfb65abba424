package export

import (
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"
)

var safeFragment = regexp.MustCompile(`^[\p{L}\p{N}_-]*$`)

// FuzzSanitizeQuery checks that file-name fragments never carry path
// separators or dots and stay within the length cap.
func FuzzSanitizeQuery(f *testing.F) {
	seeds := []string{
		"",
		"CRISPR gene therapy",
		"../../etc/passwd",
		"..\\..\\windows\\system32",
		"a/b\\c:d*e?f\"g<h>i|j",
		"Schödinger's cat",
		"‮right-to-left‬",
		"query\x00with\x00nulls",
		string([]byte{0xfe, 0xff}),
		strings.Repeat("word ", 40),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, query string) {
		got := SanitizeQuery(query)
		if !safeFragment.MatchString(got) {
			t.Fatalf("unsafe fragment %q from %q", got, query)
		}
		if n := utf8.RuneCountInString(got); n > maxFileNameQuery {
			t.Fatalf("fragment has %d runes", n)
		}
	})
}

// FuzzEscapeLatex checks that every ampersand and percent sign is escaped.
func FuzzEscapeLatex(f *testing.F) {
	f.Add("Smith & Wesson 50% off")
	f.Add(`\&`)
	f.Add("{{.Env.SECRET}}")
	f.Add("#{7*7}")
	f.Fuzz(func(t *testing.T, s string) {
		got := escapeLatex(s)
		if strings.Count(got, `\&`) != strings.Count(s, "&") {
			t.Fatalf("unescaped ampersand in %q", got)
		}
		if strings.Count(got, `\%`) != strings.Count(s, "%") {
			t.Fatalf("unescaped percent in %q", got)
		}
	})
}
