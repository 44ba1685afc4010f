package domain

import (
	"strings"
	"time"
)

// Stage is one pipeline column holding an ordered sequence of cards.
type Stage struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Color     Color     `json:"color"`
	Cards     []Card    `json:"cards"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageInput holds write-time values for creating one stage.
type StageInput struct {
	ID    string
	Title string
	Color Color
}

// StageMetadataPatch holds optional stage metadata updates.
type StageMetadataPatch struct {
	Title *string
	Color *Color
}

// NewStage validates one stage create request and returns an empty stage.
func NewStage(in StageInput, now time.Time) (Stage, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	if in.ID == "" {
		return Stage{}, ErrInvalidID
	}
	if in.Title == "" {
		return Stage{}, ErrInvalidTitle
	}
	color := NormalizeColor(in.Color)
	if color == "" {
		color = ColorGray
	}
	if !IsValidColor(color) {
		return Stage{}, ErrInvalidColor
	}
	ts := now.UTC()
	return Stage{
		ID:        in.ID,
		Title:     in.Title,
		Color:     color,
		Cards:     []Card{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

// Count returns the number of cards in the stage.
func (s Stage) Count() int {
	return len(s.Cards)
}

// TotalValue sums card values in cents.
func (s Stage) TotalValue() int64 {
	var total int64
	for _, card := range s.Cards {
		total += card.ValueCents
	}
	return total
}

// IndexOf returns the position of one card id, or -1.
func (s Stage) IndexOf(cardID string) int {
	for idx, card := range s.Cards {
		if card.ID == cardID {
			return idx
		}
	}
	return -1
}

// applyMetadata validates and applies one metadata patch.
func (s *Stage) applyMetadata(patch StageMetadataPatch, now time.Time) error {
	title := s.Title
	color := s.Color
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		if title == "" {
			return ErrInvalidTitle
		}
	}
	if patch.Color != nil {
		color = NormalizeColor(*patch.Color)
		if !IsValidColor(color) {
			return ErrInvalidColor
		}
	}
	s.Title = title
	s.Color = color
	s.UpdatedAt = now.UTC()
	return nil
}

// clone returns a deep stage copy.
func (s Stage) clone() Stage {
	cards := make([]Card, len(s.Cards))
	for idx, card := range s.Cards {
		cards[idx] = card.clone()
	}
	s.Cards = cards
	return s
}
