package tracking

import (
	"fmt"
	"strings"

	"github.com/dwizi/permit-tracker/internal/selection"
)

const emptySummary = "You are not tracking any sites yet."

// Summary renders the reply to a LIST command.
func Summary(list List) string {
	lines := SummaryLines(list)
	if len(lines) == 0 {
		return emptySummary
	}
	return "You're tracking the following sites:\n\n" + strings.Join(lines, "\n")
}

// SummaryLines renders one block per permit area: the area name in bold,
// starting areas beneath it, then each site with its tracked dates.
func SummaryLines(list List) []string {
	lines := []string{}
	for _, permit := range list.PermitAreas {
		if permit.SiteCount() == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("*%s* (%s)", displayName(permit.Name, permit.ID), permit.ID))
		for _, area := range permit.StartingAreas {
			if len(area.Sites) == 0 {
				continue
			}
			lines = append(lines, " - "+area.Name)
			for _, site := range area.Sites {
				lines = append(lines, fmt.Sprintf("    • %s: %s", displayName(site.Name, site.ID), describeDates(site)))
			}
		}
	}
	return lines
}

func describeDates(site Site) string {
	if site.Unrestricted() {
		return "any date"
	}
	return selection.FormatShortList(site.Dates)
}

func displayName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
