package selection

import "strings"

// ExtractURLFromBracketedMessage unwraps links that chat platforms deliver as
// <url|label> or <url>. Any other text is returned unchanged.
func ExtractURLFromBracketedMessage(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 || !strings.HasPrefix(trimmed, "<") || !strings.HasSuffix(trimmed, ">") {
		return text
	}
	inner := trimmed[1 : len(trimmed)-1]
	if pipe := strings.Index(inner, "|"); pipe >= 0 {
		inner = inner[:pipe]
	}
	return inner
}
