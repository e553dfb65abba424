package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/helixir/pubmed-search/internal/domain"
)

// ParseSelection turns a user's pick list into 0-based indices into a list
// of n items. The input is "all" or tokens separated by spaces or commas,
// each a 1-based number or an inclusive range "a-b". Out-of-range indices are
// dropped, duplicates are removed and first-seen order is kept.
func ParseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "all") {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	tokens := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	seen := make(map[int]bool)
	picked := []int{}
	add := func(i int) {
		if i < 1 || i > n || seen[i] {
			return
		}
		seen[i] = true
		picked = append(picked, i-1)
	}

	for _, tok := range tokens {
		lo, hi, err := parseToken(tok)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		for i := lo; i <= hi; i++ {
			if i > n {
				break
			}
			add(i)
		}
	}
	return picked, nil
}

func parseToken(tok string) (int, int, error) {
	if a, b, ok := strings.Cut(tok, "-"); ok {
		lo, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return 0, 0, domain.NewValidationError("selection", fmt.Sprintf("invalid range %q", tok))
		}
		hi, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return 0, 0, domain.NewValidationError("selection", fmt.Sprintf("invalid range %q", tok))
		}
		if lo < 0 || hi < 0 {
			return 0, 0, domain.NewValidationError("selection", fmt.Sprintf("invalid range %q", tok))
		}
		return lo, hi, nil
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, 0, domain.NewValidationError("selection", fmt.Sprintf("invalid number %q", tok))
	}
	return v, v, nil
}
