package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/dealboard/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "dealboard.snapshot.v1"

// Snapshot is the portable JSON form of one board.
type Snapshot struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Pipeline   string          `json:"pipeline,omitempty"`
	Stages     []SnapshotStage `json:"stages"`
}

// SnapshotStage represents one stage in display order.
type SnapshotStage struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Color     domain.Color   `json:"color"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Cards     []SnapshotCard `json:"cards"`
}

// SnapshotCard represents one card in stage position order.
type SnapshotCard struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Company      string             `json:"company,omitempty"`
	Contact      string             `json:"contact,omitempty"`
	Tags         []string           `json:"tags"`
	MessageCount int                `json:"message_count"`
	Status       string             `json:"status,omitempty"`
	ValueCents   int64              `json:"value_cents"`
	Priority     domain.Priority    `json:"priority"`
	Temperature  domain.Temperature `json:"temperature"`
	Notes        string             `json:"notes,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ExportSnapshot captures the live board.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	board, err := s.Board(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Pipeline:   board.Name(),
		Stages:     make([]SnapshotStage, 0, len(board.Order())),
	}
	for _, stage := range board.Stages() {
		snap.Stages = append(snap.Stages, snapshotStageFromDomain(stage))
	}
	return snap, nil
}

// ImportSnapshot replaces the live board with one validated snapshot.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	stages := make([]domain.Stage, 0, len(snap.Stages))
	for _, stage := range snap.Stages {
		stages = append(stages, stage.toDomain())
	}
	imported, err := domain.NewBoard(stages...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := imported.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if strings.TrimSpace(snap.Pipeline) != "" {
		if _, err := imported.Rename(snap.Pipeline); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
	}

	err = s.mutate(ctx, func(next *domain.Board, _ time.Time) (domain.BoardChange, error) {
		if imported.Name() == "" {
			// A snapshot without a pipeline name keeps the current one.
			if _, err := imported.Rename(next.Name()); err != nil {
				return domain.BoardChange{}, err
			}
		}
		name := imported.Name()
		change := domain.BoardChange{
			Name:   &name,
			Order:  imported.Order(),
			Stages: imported.Stages(),
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationBoardImport,
				Metadata: map[string]string{
					"source": "snapshot",
					"stages": strconv.Itoa(len(stages)),
					"cards":  strconv.Itoa(imported.CardCount()),
				},
			},
		}
		keep := map[string]struct{}{}
		for _, id := range imported.Order() {
			keep[id] = struct{}{}
		}
		for _, stage := range next.Stages() {
			if _, ok := keep[stage.ID]; !ok {
				change.DeletedStageIDs = append(change.DeletedStageIDs, stage.ID)
			}
			for _, card := range stage.Cards {
				if _, _, err := imported.Card(card.ID); err != nil {
					change.DeletedCardIDs = append(change.DeletedCardIDs, card.ID)
				}
			}
		}
		*next = *imported.Clone()
		return change, nil
	})
	if err != nil {
		return err
	}
	s.info("snapshot imported", "stages", len(stages), "cards", imported.CardCount())
	return nil
}

// Validate checks required fields and value ranges of one snapshot.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %q", ErrInvalidSnapshot, s.Version)
	}
	if len(s.Stages) == 0 {
		return fmt.Errorf("%w: at least one stage is required", ErrInvalidSnapshot)
	}
	for i, stage := range s.Stages {
		if strings.TrimSpace(stage.ID) == "" {
			return fmt.Errorf("%w: stages[%d].id is required", ErrInvalidSnapshot, i)
		}
		if strings.TrimSpace(stage.Title) == "" {
			return fmt.Errorf("%w: stages[%d].title is required", ErrInvalidSnapshot, i)
		}
		if stage.Color != "" && !domain.IsValidColor(stage.Color) {
			return fmt.Errorf("%w: stages[%d].color %q is not supported", ErrInvalidSnapshot, i, stage.Color)
		}
		if stage.CreatedAt.IsZero() || stage.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: stages[%d] timestamps are required", ErrInvalidSnapshot, i)
		}
		for j, card := range stage.Cards {
			if strings.TrimSpace(card.ID) == "" {
				return fmt.Errorf("%w: stages[%d].cards[%d].id is required", ErrInvalidSnapshot, i, j)
			}
			if strings.TrimSpace(card.Title) == "" {
				return fmt.Errorf("%w: stages[%d].cards[%d].title is required", ErrInvalidSnapshot, i, j)
			}
			if card.MessageCount < 0 || card.ValueCents < 0 {
				return fmt.Errorf("%w: stages[%d].cards[%d] counts must be >= 0", ErrInvalidSnapshot, i, j)
			}
			if card.Priority != "" && !domain.IsValidPriority(card.Priority) {
				return fmt.Errorf("%w: stages[%d].cards[%d].priority %q is not supported", ErrInvalidSnapshot, i, j, card.Priority)
			}
			if card.Temperature != "" && !domain.IsValidTemperature(card.Temperature) {
				return fmt.Errorf("%w: stages[%d].cards[%d].temperature %q is not supported", ErrInvalidSnapshot, i, j, card.Temperature)
			}
			if card.CreatedAt.IsZero() || card.UpdatedAt.IsZero() {
				return fmt.Errorf("%w: stages[%d].cards[%d] timestamps are required", ErrInvalidSnapshot, i, j)
			}
		}
	}
	return nil
}

// snapshotStageFromDomain converts one stage with its cards.
func snapshotStageFromDomain(stage domain.Stage) SnapshotStage {
	out := SnapshotStage{
		ID:        stage.ID,
		Title:     stage.Title,
		Color:     stage.Color,
		CreatedAt: stage.CreatedAt.UTC(),
		UpdatedAt: stage.UpdatedAt.UTC(),
		Cards:     make([]SnapshotCard, 0, len(stage.Cards)),
	}
	for _, card := range stage.Cards {
		out.Cards = append(out.Cards, SnapshotCard{
			ID:           card.ID,
			Title:        card.Title,
			Company:      card.Company,
			Contact:      card.Contact,
			Tags:         append([]string(nil), card.Tags...),
			MessageCount: card.MessageCount,
			Status:       card.Status,
			ValueCents:   card.ValueCents,
			Priority:     card.Priority,
			Temperature:  card.Temperature,
			Notes:        card.Notes,
			CreatedAt:    card.CreatedAt.UTC(),
			UpdatedAt:    card.UpdatedAt.UTC(),
		})
	}
	return out
}

// toDomain converts one snapshot stage. Values are normalized but not revalidated.
func (s SnapshotStage) toDomain() domain.Stage {
	color := domain.NormalizeColor(s.Color)
	if color == "" {
		color = domain.ColorGray
	}
	out := domain.Stage{
		ID:        strings.TrimSpace(s.ID),
		Title:     strings.TrimSpace(s.Title),
		Color:     color,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
		Cards:     make([]domain.Card, 0, len(s.Cards)),
	}
	for _, card := range s.Cards {
		out.Cards = append(out.Cards, card.toDomain())
	}
	return out
}

// toDomain converts one snapshot card, reusing card construction for normalization.
func (c SnapshotCard) toDomain() domain.Card {
	card, err := domain.NewCard(domain.CardInput{
		ID:           c.ID,
		Title:        c.Title,
		Company:      c.Company,
		Contact:      c.Contact,
		Tags:         c.Tags,
		MessageCount: c.MessageCount,
		Status:       c.Status,
		ValueCents:   c.ValueCents,
		Priority:     c.Priority,
		Temperature:  c.Temperature,
		Notes:        c.Notes,
	}, c.CreatedAt)
	if err != nil {
		return domain.Card{ID: strings.TrimSpace(c.ID), Title: strings.TrimSpace(c.Title)}
	}
	card.UpdatedAt = c.UpdatedAt.UTC()
	return card
}
