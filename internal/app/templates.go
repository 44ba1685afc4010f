package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/hylla/dealboard/internal/domain"
)

// StageTemplate describes one stage created when a board is seeded.
type StageTemplate struct {
	ID    string
	Title string
	Color domain.Color
}

// defaultStageTemplates returns the default pipeline stages.
func defaultStageTemplates() []StageTemplate {
	return []StageTemplate{
		{ID: "lead", Title: "Lead", Color: domain.ColorBlue},
		{ID: "contacted", Title: "Contacted", Color: domain.ColorIndigo},
		{ID: "qualified", Title: "Qualified", Color: domain.ColorPurple},
		{ID: "proposal", Title: "Proposal", Color: domain.ColorGray},
		{ID: "won", Title: "Won", Color: domain.ColorGreen},
	}
}

// sanitizeStageTemplates drops unnamed and duplicate templates and derives missing ids.
func sanitizeStageTemplates(in []StageTemplate) []StageTemplate {
	if len(in) == 0 {
		return nil
	}
	out := make([]StageTemplate, 0, len(in))
	seen := map[string]struct{}{}
	for _, tpl := range in {
		tpl.Title = strings.TrimSpace(tpl.Title)
		tpl.ID = strings.TrimSpace(strings.ToLower(tpl.ID))
		if tpl.Title == "" {
			continue
		}
		if tpl.ID == "" {
			tpl.ID = normalizeStageID(tpl.Title)
		}
		if tpl.ID == "" {
			continue
		}
		if _, ok := seen[tpl.ID]; ok {
			continue
		}
		seen[tpl.ID] = struct{}{}
		tpl.Color = domain.NormalizeColor(tpl.Color)
		out = append(out, tpl)
	}
	return out
}

// normalizeStageID derives a slug id from one stage title.
func normalizeStageID(title string) string {
	title = strings.TrimSpace(strings.ToLower(title))
	if title == "" {
		return ""
	}
	var b strings.Builder
	lastDash := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// seedStages builds the empty stages of a fresh board from templates.
func seedStages(templates []StageTemplate, now time.Time) ([]domain.Stage, error) {
	stages := make([]domain.Stage, 0, len(templates))
	for _, tpl := range templates {
		stage, err := domain.NewStage(domain.StageInput{ID: tpl.ID, Title: tpl.Title, Color: tpl.Color}, now)
		if err != nil {
			return nil, fmt.Errorf("seed stage %q: %w", tpl.Title, err)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// demoCards lists the fixed demo deals placed on a freshly seeded board.
var demoCards = []domain.CardInput{
	{ID: "demo-acme-renewal", Title: "Annual renewal", Company: "Acme Corp", Contact: "Dana Whitfield", Tags: []string{"renewal"}, MessageCount: 4, ValueCents: 1_200_000, Priority: domain.PriorityHigh, Temperature: domain.TemperatureHot, Notes: "Wants **multi-year** pricing before Q3."},
	{ID: "demo-globex-pilot", Title: "Pilot rollout", Company: "Globex", Contact: "Hank Scorpio", Tags: []string{"pilot", "enterprise"}, MessageCount: 2, ValueCents: 450_000, Priority: domain.PriorityMedium, Temperature: domain.TemperatureWarm},
	{ID: "demo-initech-seats", Title: "Seat expansion", Company: "Initech", Contact: "Bill Lumbergh", Tags: []string{"expansion"}, MessageCount: 7, ValueCents: 300_000, Priority: domain.PriorityLow, Temperature: domain.TemperatureCold, Status: "waiting on budget"},
	{ID: "demo-umbrella-security", Title: "Security review", Company: "Umbrella", Contact: "Alice Abernathy", Tags: []string{"security"}, MessageCount: 1, ValueCents: 900_000, Priority: domain.PriorityHigh, Temperature: domain.TemperatureWarm},
	{ID: "demo-stark-integration", Title: "API integration", Company: "Stark Industries", Contact: "Pepper Potts", Tags: []string{"api", "enterprise"}, MessageCount: 12, ValueCents: 2_500_000, Priority: domain.PriorityHigh, Temperature: domain.TemperatureHot, Notes: "- SSO required\n- Sandbox access granted"},
	{ID: "demo-wayne-upsell", Title: "Analytics upsell", Company: "Wayne Enterprises", Contact: "Lucius Fox", Tags: []string{"upsell"}, MessageCount: 3, ValueCents: 750_000, Priority: domain.PriorityMedium, Temperature: domain.TemperatureHot, Status: "signed"},
}

// addDemoCards spreads the demo deals over the seeded stages in order.
func addDemoCards(stages []domain.Stage, now time.Time) error {
	if len(stages) == 0 {
		return nil
	}
	for idx, in := range demoCards {
		card, err := domain.NewCard(in, now)
		if err != nil {
			return fmt.Errorf("seed demo card %q: %w", in.ID, err)
		}
		target := &stages[idx%len(stages)]
		target.Cards = append(target.Cards, card)
	}
	return nil
}
