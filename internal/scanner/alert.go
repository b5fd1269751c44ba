package scanner

import (
	"strings"

	"github.com/dwizi/permit-tracker/internal/selection"
)

const alertHeader = ":rotating_light::camping: *Permits available!*"

// FormatAlert renders the chat message for one permit area digest.
func FormatAlert(alert Alert) string {
	var b strings.Builder
	b.WriteString(alertHeader)
	b.WriteString("\n\n*")
	b.WriteString(alert.PermitName)
	b.WriteString("*")
	for _, line := range alert.Lines {
		b.WriteString("\n - ")
		b.WriteString(line.StartingArea)
		b.WriteString(": _")
		b.WriteString(selection.FormatShortList(line.Dates))
		b.WriteString("_")
	}
	return b.String()
}
