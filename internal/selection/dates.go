package selection

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ParseDateList parses "6/15, 6/16" style replies. Tokens without a year use
// the year of now. Tokens that do not name a real calendar date are dropped.
func ParseDateList(text string, now time.Time) ([]civil.Date, error) {
	seen := map[civil.Date]struct{}{}
	dates := []civil.Date{}
	for _, token := range splitTokens(text) {
		date, ok := parseMonthDay(token, now.Year())
		if !ok {
			continue
		}
		if _, exists := seen[date]; exists {
			continue
		}
		seen[date] = struct{}{}
		dates = append(dates, date)
	}
	if len(dates) == 0 {
		return nil, ErrInvalidDates
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func parseMonthDay(token string, defaultYear int) (civil.Date, bool) {
	parts := strings.Split(strings.TrimSpace(token), "/")
	if len(parts) != 2 && len(parts) != 3 {
		return civil.Date{}, false
	}
	numbers := make([]int, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return civil.Date{}, false
		}
		numbers = append(numbers, value)
	}
	year := defaultYear
	if len(numbers) == 3 {
		year = numbers[2]
		if year < 100 {
			year += 2000
		}
	}
	date := civil.Date{Year: year, Month: time.Month(numbers[0]), Day: numbers[1]}
	if !date.IsValid() {
		return civil.Date{}, false
	}
	return date, true
}

// FormatShort renders a date as M/D, the form users type it in.
func FormatShort(date civil.Date) string {
	return strconv.Itoa(int(date.Month)) + "/" + strconv.Itoa(date.Day)
}

// FormatShortList joins dates rendered with FormatShort.
func FormatShortList(dates []civil.Date) string {
	parts := make([]string, 0, len(dates))
	for _, date := range dates {
		parts = append(parts, FormatShort(date))
	}
	return strings.Join(parts, ", ")
}
