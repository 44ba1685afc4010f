package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/hylla/dealboard/internal/domain"
)

// markdownRenderer renders markdown for terminal views and recreates the renderer when wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render converts markdown input into ANSI-styled terminal text with the requested wrap width.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := width
	if wrapWidth < 24 {
		wrapWidth = 24
	}

	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// cardMarkdown builds the detail document for one card.
func cardMarkdown(card domain.Card, stage domain.Stage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", card.Title)
	if who := joinNonEmpty(" · ", card.Company, card.Contact); who != "" {
		fmt.Fprintf(&b, "%s\n\n", who)
	}
	fmt.Fprintf(&b, "- **Stage:** %s\n", stage.Title)
	fmt.Fprintf(&b, "- **Value:** %s\n", formatCents(card.ValueCents))
	fmt.Fprintf(&b, "- **Priority:** %s\n", card.Priority)
	fmt.Fprintf(&b, "- **Temperature:** %s\n", card.Temperature)
	fmt.Fprintf(&b, "- **Messages:** %d\n", card.MessageCount)
	if card.Status != "" {
		fmt.Fprintf(&b, "- **Status:** %s\n", card.Status)
	}
	if len(card.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(card.Tags, ", "))
	}
	fmt.Fprintf(&b, "- **ID:** `%s`\n", card.ID)
	if notes := strings.TrimSpace(card.Notes); notes != "" {
		fmt.Fprintf(&b, "\n## Notes\n\n%s\n", notes)
	}
	return b.String()
}

// joinNonEmpty joins the non-blank parts with sep.
func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, sep)
}
