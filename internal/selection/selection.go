package selection

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

const allKeyword = "ALL"

var (
	ErrInvalidSelection = errors.New("invalid index selection")
	ErrInvalidSiteCodes = errors.New("invalid site codes")
	ErrInvalidDates     = errors.New("invalid date list")
)

// Indices is a parsed numbered-menu reply. When All is set Values lists
// every index from 1 to the item count.
type Indices struct {
	All    bool
	Values []int
}

func (s Indices) Contains(index int) bool {
	if s.All {
		return true
	}
	position := sort.SearchInts(s.Values, index)
	return position < len(s.Values) && s.Values[position] == index
}

// IsAll reports whether text is the literal ALL keyword.
func IsAll(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), allKeyword)
}

// ParseIndexSelection parses a reply like "2" or "1, 3" against a menu of
// itemCount entries. One bad token rejects the whole reply.
func ParseIndexSelection(text string, itemCount int) (Indices, error) {
	if itemCount < 1 {
		return Indices{}, ErrInvalidSelection
	}
	if IsAll(text) {
		values := make([]int, 0, itemCount)
		for index := 1; index <= itemCount; index++ {
			values = append(values, index)
		}
		return Indices{All: true, Values: values}, nil
	}

	seen := map[int]struct{}{}
	values := []int{}
	for _, token := range splitTokens(text) {
		value, err := strconv.Atoi(token)
		if err != nil || value < 1 || value > itemCount {
			return Indices{}, ErrInvalidSelection
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	if len(values) == 0 {
		return Indices{}, ErrInvalidSelection
	}
	sort.Ints(values)
	return Indices{Values: values}, nil
}

func splitTokens(text string) []string {
	parts := strings.Split(text, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}
