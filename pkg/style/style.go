// Package style renders highlight settings: a CSS stylesheet for hosts that
// draw decorations as classes, and ANSI output for the terminal.
package style

import (
	"fmt"
	"strings"

	"github.com/japaniel/langsoft/pkg/config"
	"github.com/japaniel/langsoft/pkg/decorate"
	"github.com/japaniel/langsoft/pkg/dictionary"
)

// tierOrder is the order rules appear in the stylesheet.
var tierOrder = []dictionary.Tier{dictionary.TierUnknown, dictionary.TierSemiKnown, dictionary.TierKnown}

// Stylesheet renders one rule per enabled tier, plus underline rules for the
// tier's phrases and rules for collaborator ranges. With a CSS class set every
// selector is scoped to descendants of that class.
func Stylesheet(h config.HighlightConfig) string {
	scope := ""
	if h.CSSClass != "" {
		scope = "." + h.CSSClass + " "
	}

	var b strings.Builder
	tiers := h.Tiers()
	for _, tier := range tierOrder {
		ts := tiers[tier]
		if !ts.Enabled {
			continue
		}
		color := normalizeColor(ts.Color)
		fmt.Fprintf(&b, "%s.%s { color: %s }\n", scope, decorate.TierClass(tier), color)
		fmt.Fprintf(&b, "%s.%s { text-decoration: underline; text-decoration-color: %s }\n", scope, decorate.PhraseClass(tier), color)
	}
	if h.CollaboratorColor != "" {
		color := normalizeColor(h.CollaboratorColor)
		fmt.Fprintf(&b, "%s.%s { color: %s }\n", scope, decorate.ClassCollaborator, color)
		fmt.Fprintf(&b, "%s.%s { text-decoration: underline dotted; text-decoration-color: %s }\n", scope, decorate.ClassCollaboratorPhrase, color)
	}
	return b.String()
}

// normalizeColor adds the leading '#' older settings left out.
func normalizeColor(c string) string {
	if c == "" || strings.HasPrefix(c, "#") {
		return c
	}
	return "#" + c
}
