package style

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/japaniel/langsoft/pkg/config"
	"github.com/japaniel/langsoft/pkg/decorate"
)

// Terminal draws decorated text with ANSI styles.
type Terminal struct {
	r            *lipgloss.Renderer
	colors       map[string]lipgloss.Color
	underlines   map[string]lipgloss.Color
	selection    string
	collaborator lipgloss.Color
}

// NewTerminal builds styles from the highlight settings. A nil renderer uses
// lipgloss' default renderer for stdout.
func NewTerminal(r *lipgloss.Renderer, h config.HighlightConfig, selectionClass string) *Terminal {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	if selectionClass == "" {
		selectionClass = decorate.ClassSelection
	}
	t := &Terminal{
		r:          r,
		colors:     map[string]lipgloss.Color{},
		underlines: map[string]lipgloss.Color{},
		selection:  selectionClass,
	}
	for tier, ts := range h.Tiers() {
		if !ts.Enabled {
			continue
		}
		c := lipgloss.Color(normalizeColor(ts.Color))
		t.colors[decorate.TierClass(tier)] = c
		t.underlines[decorate.PhraseClass(tier)] = c
	}
	if h.CollaboratorColor != "" {
		c := lipgloss.Color(normalizeColor(h.CollaboratorColor))
		t.colors[decorate.ClassCollaborator] = c
		t.underlines[decorate.ClassCollaboratorPhrase] = c
	}
	return t
}

// Render styles text with ranges whose offsets are relative to the start of
// text. Overlapping ranges combine: a term color, an underline for phrases and
// reverse video for the selection. Ranges outside text are clipped.
func (t *Terminal) Render(text string, ranges []decorate.Range) string {
	cuts := []int{0, len(text)}
	for _, rg := range ranges {
		cuts = append(cuts, clamp(rg.From, len(text)), clamp(rg.To, len(text)))
	}
	slices.Sort(cuts)
	cuts = slices.Compact(cuts)

	var b strings.Builder
	for i := 0; i+1 < len(cuts); i++ {
		from, to := cuts[i], cuts[i+1]
		if from == to {
			continue
		}
		seg := text[from:to]
		style, styled := t.styleFor(from, to, ranges)
		if !styled {
			b.WriteString(seg)
			continue
		}
		b.WriteString(style.Render(seg))
	}
	return b.String()
}

func (t *Terminal) styleFor(from, to int, ranges []decorate.Range) (lipgloss.Style, bool) {
	s := t.r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	styled := false
	var underlineColor lipgloss.Color
	hasColor := false
	for _, rg := range ranges {
		if rg.From > from || rg.To < to {
			continue
		}
		if c, ok := t.colors[rg.Class]; ok {
			s = s.Foreground(c)
			hasColor, styled = true, true
		}
		if c, ok := t.underlines[rg.Class]; ok {
			s = s.Underline(true)
			underlineColor, styled = c, true
		}
		if rg.Class == t.selection {
			s = s.Reverse(true)
			styled = true
		}
	}
	// A phrase word with no tier of its own takes the phrase color.
	if !hasColor && underlineColor != "" {
		s = s.Foreground(underlineColor)
	}
	return s, styled
}

func clamp(v, n int) int {
	return max(0, min(v, n))
}
