package domain

// StageSummary aggregates one stage.
type StageSummary struct {
	StageID    string `json:"stage_id"`
	Title      string `json:"title"`
	Color      Color  `json:"color"`
	Count      int    `json:"count"`
	ValueCents int64  `json:"value_cents"`
	HotLeads   int    `json:"hot_leads"`
	Messages   int    `json:"messages"`
}

// Summary aggregates the whole pipeline.
type Summary struct {
	Pipeline   string         `json:"pipeline"`
	Stages     []StageSummary `json:"stages"`
	TotalCards int            `json:"total_cards"`
	ValueCents int64          `json:"value_cents"`
	HotLeads   int            `json:"hot_leads"`
	Messages   int            `json:"messages"`
}

// Summary computes pipeline figures from current board state.
func (b *Board) Summary() Summary {
	out := Summary{Pipeline: b.name, Stages: make([]StageSummary, 0, len(b.order))}
	for _, id := range b.order {
		stage := b.stages[id]
		row := StageSummary{
			StageID:    stage.ID,
			Title:      stage.Title,
			Color:      stage.Color,
			Count:      stage.Count(),
			ValueCents: stage.TotalValue(),
		}
		for _, card := range stage.Cards {
			if card.Temperature == TemperatureHot {
				row.HotLeads++
			}
			row.Messages += card.MessageCount
		}
		out.Stages = append(out.Stages, row)
		out.TotalCards += row.Count
		out.ValueCents += row.ValueCents
		out.HotLeads += row.HotLeads
		out.Messages += row.Messages
	}
	return out
}
