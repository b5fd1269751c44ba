package selection

import (
	"strconv"
	"strings"
	"unicode"
)

// SiteCode addresses one site in the lettered site menu: Zone is the
// 1-based starting-area number, Column the 0-based site position.
type SiteCode struct {
	Zone   int
	Column int
}

func (c SiteCode) String() string {
	return strconv.Itoa(c.Zone) + LabelForColumn(c.Column)
}

// SiteCodes is a parsed site-menu reply. All means no filtering.
type SiteCodes struct {
	All   bool
	Codes []SiteCode
}

// ParseSiteCodes parses replies like "1A, 2B". Malformed tokens are skipped;
// the reply is only invalid when nothing usable remains.
func ParseSiteCodes(text string) (SiteCodes, error) {
	if IsAll(text) {
		return SiteCodes{All: true}, nil
	}
	seen := map[SiteCode]struct{}{}
	codes := []SiteCode{}
	for _, token := range splitTokens(text) {
		code, ok := parseSiteCode(token)
		if !ok {
			continue
		}
		if _, exists := seen[code]; exists {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return SiteCodes{}, ErrInvalidSiteCodes
	}
	return SiteCodes{Codes: codes}, nil
}

func parseSiteCode(token string) (SiteCode, bool) {
	token = strings.ToUpper(strings.ReplaceAll(token, " ", ""))
	if len(token) < 2 {
		return SiteCode{}, false
	}
	split := strings.IndexFunc(token, func(r rune) bool { return !unicode.IsDigit(r) })
	if split <= 0 {
		return SiteCode{}, false
	}
	zone, err := strconv.Atoi(token[:split])
	if err != nil || zone < 1 {
		return SiteCode{}, false
	}
	column, ok := ColumnForLabel(token[split:])
	if !ok {
		return SiteCode{}, false
	}
	return SiteCode{Zone: zone, Column: column}, true
}
