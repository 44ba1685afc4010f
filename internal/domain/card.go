package domain

import (
	"slices"
	"strings"
	"time"
)

// Card is one deal tracked on the board.
type Card struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Company      string      `json:"company"`
	Contact      string      `json:"contact"`
	Tags         []string    `json:"tags"`
	MessageCount int         `json:"message_count"`
	Status       string      `json:"status,omitempty"`
	ValueCents   int64       `json:"value_cents"`
	Priority     Priority    `json:"priority"`
	Temperature  Temperature `json:"temperature"`
	Notes        string      `json:"notes,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CardInput holds write-time values for creating one card.
type CardInput struct {
	ID           string
	Title        string
	Company      string
	Contact      string
	Tags         []string
	MessageCount int
	Status       string
	ValueCents   int64
	Priority     Priority
	Temperature  Temperature
	Notes        string
}

// CardPatch holds optional field updates for one card. Nil fields are left unchanged.
type CardPatch struct {
	Title        *string
	Company      *string
	Contact      *string
	Tags         *[]string
	MessageCount *int
	Status       *string
	ValueCents   *int64
	Priority     *Priority
	Temperature  *Temperature
	Notes        *string
}

// NewCard validates and normalizes one card create request.
func NewCard(in CardInput, now time.Time) (Card, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	if in.ID == "" {
		return Card{}, ErrInvalidID
	}
	if in.Title == "" {
		return Card{}, ErrInvalidTitle
	}
	if in.MessageCount < 0 {
		return Card{}, ErrInvalidMessageCount
	}
	if in.ValueCents < 0 {
		return Card{}, ErrInvalidValue
	}

	in.Priority = NormalizePriority(in.Priority)
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !IsValidPriority(in.Priority) {
		return Card{}, ErrInvalidPriority
	}
	in.Temperature = NormalizeTemperature(in.Temperature)
	if in.Temperature == "" {
		in.Temperature = TemperatureWarm
	}
	if !IsValidTemperature(in.Temperature) {
		return Card{}, ErrInvalidTemperature
	}

	ts := now.UTC()
	return Card{
		ID:           in.ID,
		Title:        in.Title,
		Company:      strings.TrimSpace(in.Company),
		Contact:      strings.TrimSpace(in.Contact),
		Tags:         normalizeTags(in.Tags),
		MessageCount: in.MessageCount,
		Status:       strings.TrimSpace(in.Status),
		ValueCents:   in.ValueCents,
		Priority:     in.Priority,
		Temperature:  in.Temperature,
		Notes:        strings.TrimSpace(in.Notes),
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}, nil
}

// Apply validates a patch against a copy of the card and commits it only when every field is valid.
func (c *Card) Apply(patch CardPatch, now time.Time) error {
	next := c.clone()
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return ErrInvalidTitle
		}
		next.Title = title
	}
	if patch.Company != nil {
		next.Company = strings.TrimSpace(*patch.Company)
	}
	if patch.Contact != nil {
		next.Contact = strings.TrimSpace(*patch.Contact)
	}
	if patch.Tags != nil {
		next.Tags = normalizeTags(*patch.Tags)
	}
	if patch.MessageCount != nil {
		if *patch.MessageCount < 0 {
			return ErrInvalidMessageCount
		}
		next.MessageCount = *patch.MessageCount
	}
	if patch.Status != nil {
		next.Status = strings.TrimSpace(*patch.Status)
	}
	if patch.ValueCents != nil {
		if *patch.ValueCents < 0 {
			return ErrInvalidValue
		}
		next.ValueCents = *patch.ValueCents
	}
	if patch.Priority != nil {
		priority := NormalizePriority(*patch.Priority)
		if !IsValidPriority(priority) {
			return ErrInvalidPriority
		}
		next.Priority = priority
	}
	if patch.Temperature != nil {
		temperature := NormalizeTemperature(*patch.Temperature)
		if !IsValidTemperature(temperature) {
			return ErrInvalidTemperature
		}
		next.Temperature = temperature
	}
	if patch.Notes != nil {
		next.Notes = strings.TrimSpace(*patch.Notes)
	}
	next.UpdatedAt = now.UTC()
	*c = next
	return nil
}

// HasTag reports whether the card carries one tag.
func (c Card) HasTag(tag string) bool {
	return slices.Contains(c.Tags, strings.ToLower(strings.TrimSpace(tag)))
}

// clone returns a card copy that shares no slice storage with the receiver.
func (c Card) clone() Card {
	c.Tags = slices.Clone(c.Tags)
	return c
}

// normalizeTags trims, lower-cases, de-duplicates, and sorts tags.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}
