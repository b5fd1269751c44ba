package dialogue

import (
	"fmt"
	"strings"

	"github.com/dwizi/permit-tracker/internal/selection"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

const (
	helpText = "Options:\n" +
		"\t- Enter `LIST` to list all the sites you are tracking\n" +
		"\t- Enter `ADD` followed by a Recreation.gov permit URL to choose areas, sites and dates to track. Example: `ADD https://www.recreation.gov/permits/4675338`\n" +
		"\t- Enter `CANCEL` to drop the question in progress"
	invalidCommandText = "That's not a valid command.\n\n" + helpText

	lookupFailedText   = "Sorry, I couldn't load that permit. Please start over.\n\n" + helpText
	saveFailedText     = "Sorry, something went wrong saving your tracking list. Please send the dates again."
	listFailedText     = "Sorry, I couldn't load your tracking list right now. Please try again later."
	invalidAreasText   = "Please reply with area numbers between 1 and %d separated by commas, or ALL."
	invalidSitesText   = "Please reply with site codes from the list (e.g. '1A' or '1A,2B'), or ALL."
	invalidDatesText   = "Please reply with dates as month/day separated by commas (e.g. '6/15' or '6/15,6/16'), or ANY."
	cancelledText      = "Okay, dropped that question.\n\n" + helpText
	anyDateKeyword     = "ANY"
	confirmationFormat = "✅ Tracking %d site(s) in *%s* for %s."
)

func areaPrompt(permit tracking.PermitArea) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found: *%s* associated with permit id %s\n\n", permit.Name, permit.ID)
	b.WriteString("Which starting area(s) do you want to track?\n")
	for index, area := range permit.StartingAreas {
		fmt.Fprintf(&b, "\t%d) %s\n", index+1, area.Name)
	}
	b.WriteString("\nReply with the area numbers separated by commas (e.g. '2' or '2,4,5'). Or 'ALL'.")
	return b.String()
}

// sitePrompt letters sites per area in menu order; the codes it prints are
// the ones selection.ParseSiteCodes reads back.
func sitePrompt(permit tracking.PermitArea) string {
	var b strings.Builder
	b.WriteString("Which site(s) do you want to track?\n")
	for index, area := range permit.StartingAreas {
		fmt.Fprintf(&b, "\n%d) %s\n", index+1, area.Name)
		label := ""
		for _, site := range area.Sites {
			label = selection.IncrementLabel(label)
			fmt.Fprintf(&b, "\t%d%s) %s\n", index+1, label, siteName(site))
		}
	}
	b.WriteString("\nReply with the site codes separated by commas (e.g. '1A' or '1A,2B'). Or 'ALL'.")
	return b.String()
}

func datePrompt(permit tracking.PermitArea) string {
	return fmt.Sprintf(
		"Which date(s) do you want to watch for %d site(s)?\n\nReply with month/day separated by commas (e.g. '6/15' or '6/15,6/16'). Or 'ANY' to be alerted on any open date.",
		permit.SiteCount(),
	)
}

func confirmation(permit tracking.PermitArea, datesText string) string {
	return fmt.Sprintf(confirmationFormat, permit.SiteCount(), permit.Name, datesText)
}

func siteName(site tracking.Site) string {
	if strings.TrimSpace(site.Name) == "" {
		return site.ID
	}
	return site.Name
}
