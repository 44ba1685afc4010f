package domain

import "fmt"

// CardFilter narrows a board view to matching cards. Zero fields match everything.
type CardFilter struct {
	Priority    Priority    `json:"priority,omitempty"`
	Temperature Temperature `json:"temperature,omitempty"`
}

// Normalize canonicalizes the filter and rejects unknown values.
func (f CardFilter) Normalize() (CardFilter, error) {
	f.Priority = NormalizePriority(f.Priority)
	f.Temperature = NormalizeTemperature(f.Temperature)
	if f.Priority != "" && !IsValidPriority(f.Priority) {
		return CardFilter{}, fmt.Errorf("%w: %q", ErrInvalidPriority, f.Priority)
	}
	if f.Temperature != "" && !IsValidTemperature(f.Temperature) {
		return CardFilter{}, fmt.Errorf("%w: %q", ErrInvalidTemperature, f.Temperature)
	}
	return f, nil
}

// IsZero reports whether the filter matches every card.
func (f CardFilter) IsZero() bool {
	return f.Priority == "" && f.Temperature == ""
}

// Matches reports whether card passes the filter.
func (f CardFilter) Matches(card Card) bool {
	if f.Priority != "" && card.Priority != f.Priority {
		return false
	}
	if f.Temperature != "" && card.Temperature != f.Temperature {
		return false
	}
	return true
}

// FilterStages returns stage copies in display order holding only the matching cards.
// Card order within each stage is preserved. Stages are kept even when nothing matches.
func (b *Board) FilterStages(f CardFilter) []Stage {
	stages := b.Stages()
	if f.IsZero() {
		return stages
	}
	for i := range stages {
		kept := make([]Card, 0, len(stages[i].Cards))
		for _, card := range stages[i].Cards {
			if f.Matches(card) {
				kept = append(kept, card)
			}
		}
		stages[i].Cards = kept
	}
	return stages
}

// PriorityCounts counts cards per priority across the board.
func (b *Board) PriorityCounts() map[Priority]int {
	out := make(map[Priority]int, len(validPriorities))
	for _, p := range validPriorities {
		out[p] = 0
	}
	for _, id := range b.order {
		for _, card := range b.stages[id].Cards {
			out[card.Priority]++
		}
	}
	return out
}
