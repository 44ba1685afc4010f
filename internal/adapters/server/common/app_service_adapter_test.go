package common

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/hylla/dealboard/internal/app"
	"github.com/hylla/dealboard/internal/domain"
)

// memoryRepo is a minimal in-memory app.Repository.
type memoryRepo struct {
	name     string
	revision int64
	order    []string
	stages   map[string]domain.Stage
	events   []domain.ChangeEvent
}

func (m *memoryRepo) LoadBoard(context.Context) (app.StoredBoard, error) {
	out := make([]domain.Stage, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.stages[id])
	}
	return app.StoredBoard{Name: m.name, Stages: out, Revision: m.revision}, nil
}

func (m *memoryRepo) Revision(context.Context) (int64, error) {
	return m.revision, nil
}

func (m *memoryRepo) SaveChange(_ context.Context, change domain.BoardChange) error {
	if change.Revision != m.revision {
		return app.ErrRevisionConflict
	}
	m.revision++
	if change.Name != nil {
		m.name = *change.Name
	}
	if m.stages == nil {
		m.stages = map[string]domain.Stage{}
	}
	for _, id := range change.DeletedStageIDs {
		delete(m.stages, id)
	}
	for _, stage := range change.Stages {
		m.stages[stage.ID] = stage
	}
	if change.Order != nil {
		m.order = slices.Clone(change.Order)
	}
	m.events = append(m.events, change.Event)
	return nil
}

func (m *memoryRepo) ListChangeEvents(_ context.Context, limit int) ([]domain.ChangeEvent, error) {
	out := slices.Clone(m.events)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func intPtr(v int) *int {
	return &v
}

func newTestAdapter(t *testing.T) (*AppServiceAdapter, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{}
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	svc, err := app.Open(context.Background(), repo, nil, func() time.Time { return now }, app.ServiceConfig{
		StageTemplates: []app.StageTemplate{{ID: "lead", Title: "Lead"}, {ID: "won", Title: "Won"}},
	})
	if err != nil {
		t.Fatalf("app.Open() error = %v", err)
	}
	return NewAppServiceAdapter(svc), repo
}

func TestAppServiceAdapterBoardFlow(t *testing.T) {
	adapter, repo := newTestAdapter(t)
	ctx := WithActor(context.Background(), "agent-7", "agent")

	view, err := adapter.AddCard(ctx, AddCardRequest{StageID: "lead", ID: "c1", Title: "Deal", ValueCents: 900, Priority: "HIGH"})
	if err != nil {
		t.Fatalf("AddCard() error = %v", err)
	}
	if view.Location.StageID != "lead" || view.Card.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected card view %#v", view)
	}
	if got := repo.events[len(repo.events)-1].Metadata["actor_type"]; got != "agent" {
		t.Fatalf("actor_type = %q, want agent", got)
	}

	before, err := adapter.GetBoard(ctx, BoardFilter{})
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	if before.Stages[0].Count != 1 || before.Stages[0].ValueCents != 900 || before.Revision == "" {
		t.Fatalf("unexpected board view %#v", before)
	}

	if _, err := adapter.MoveCard(ctx, MoveCardRequest{CardID: "c1", SourceStageID: "lead", SourceIndex: intPtr(0), DestStageID: "won", DestIndex: intPtr(0)}); err != nil {
		t.Fatalf("MoveCard() error = %v", err)
	}
	after, _ := adapter.GetBoard(ctx, BoardFilter{})
	if after.Revision == before.Revision {
		t.Fatal("expected revision to change after a move")
	}

	reordered, err := adapter.ReorderStages(ctx, ReorderStagesRequest{Order: []string{"won", "lead"}})
	if err != nil {
		t.Fatalf("ReorderStages() error = %v", err)
	}
	if !slices.Equal(reordered.Order, []string{"won", "lead"}) {
		t.Fatalf("order = %v", reordered.Order)
	}
}

func TestAppServiceAdapterMapsErrors(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()
	if _, err := adapter.AddCard(ctx, AddCardRequest{StageID: "lead", ID: "c1", Title: "Deal"}); err != nil {
		t.Fatalf("AddCard() error = %v", err)
	}

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{name: "stale", want: ErrStaleMove, run: func() error {
			_, err := adapter.MoveCard(ctx, MoveCardRequest{CardID: "c1", SourceStageID: "lead", SourceIndex: intPtr(3), DestStageID: "won", DestIndex: intPtr(0)})
			return err
		}},
		{name: "missing fields", want: ErrInvalidRequest, run: func() error {
			_, err := adapter.MoveCard(ctx, MoveCardRequest{CardID: "c1"})
			return err
		}},
		{name: "missing source index", want: ErrInvalidRequest, run: func() error {
			_, err := adapter.MoveCard(ctx, MoveCardRequest{CardID: "c1", SourceStageID: "lead", DestStageID: "won", DestIndex: intPtr(0)})
			return err
		}},
		{name: "missing dest index", want: ErrInvalidRequest, run: func() error {
			_, err := adapter.MoveCard(ctx, MoveCardRequest{CardID: "c1", SourceStageID: "lead", SourceIndex: intPtr(0), DestStageID: "won"})
			return err
		}},
		{name: "unknown stage", want: ErrNotFound, run: func() error {
			_, err := adapter.MoveCard(ctx, MoveCardRequest{CardID: "c1", SourceStageID: "lead", SourceIndex: intPtr(0), DestStageID: "nope", DestIndex: intPtr(0)})
			return err
		}},
		{name: "bad filter", want: ErrInvalidRequest, run: func() error {
			_, err := adapter.GetBoard(ctx, BoardFilter{Priority: "urgent"})
			return err
		}},
		{name: "blank pipeline name", want: ErrInvalidRequest, run: func() error {
			_, err := adapter.RenamePipeline(ctx, RenamePipelineRequest{Name: " "})
			return err
		}},
		{name: "not empty", want: ErrStageNotEmpty, run: func() error {
			_, err := adapter.DeleteStage(ctx, DeleteStageRequest{StageID: "lead"})
			return err
		}},
		{name: "bad permutation", want: ErrInvalidRequest, run: func() error {
			_, err := adapter.ReorderStages(ctx, ReorderStagesRequest{Order: []string{"lead"}})
			return err
		}},
		{name: "duplicate card", want: ErrConflict, run: func() error {
			_, err := adapter.AddCard(ctx, AddCardRequest{StageID: "won", ID: "c1", Title: "Again"})
			return err
		}},
		{name: "bad color", want: ErrInvalidRequest, run: func() error {
			color := "orange"
			_, err := adapter.EditStage(ctx, EditStageRequest{StageID: "lead", Color: &color})
			return err
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var nilAdapter *AppServiceAdapter
	if _, err := nilAdapter.GetBoard(ctx, BoardFilter{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAppServiceAdapterFiltersAndRenames(t *testing.T) {
	adapter, repo := newTestAdapter(t)
	ctx := context.Background()
	for _, in := range []AddCardRequest{
		{StageID: "lead", ID: "hot", Title: "Hot deal", Priority: "high", Temperature: "hot"},
		{StageID: "lead", ID: "cool", Title: "Cool deal", Priority: "low", Temperature: "cold"},
		{StageID: "won", ID: "done", Title: "Done deal", Priority: "high", Temperature: "warm"},
	} {
		if _, err := adapter.AddCard(ctx, in); err != nil {
			t.Fatalf("AddCard(%s) error = %v", in.ID, err)
		}
	}

	full, err := adapter.GetBoard(ctx, BoardFilter{})
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	filtered, err := adapter.GetBoard(ctx, BoardFilter{Priority: "HIGH"})
	if err != nil {
		t.Fatalf("GetBoard(filter) error = %v", err)
	}
	if filtered.Filter == nil || filtered.Filter.Priority != "high" || full.Filter != nil {
		t.Fatalf("unexpected filter echo %#v / %#v", filtered.Filter, full.Filter)
	}
	if filtered.Revision != full.Revision || len(filtered.Stages) != 2 {
		t.Fatalf("filtered view changed revision or stages: %#v", filtered)
	}
	if filtered.Stages[0].Count != 1 || filtered.Stages[0].Cards[0].ID != "hot" || filtered.Stages[1].Count != 1 {
		t.Fatalf("unexpected filtered stages %#v", filtered.Stages)
	}
	wantCounts := map[string]int{"high": 2, "medium": 0, "low": 1}
	if !reflect.DeepEqual(filtered.PriorityCounts, wantCounts) || !reflect.DeepEqual(full.PriorityCounts, wantCounts) {
		t.Fatalf("priority counts = %v / %v, want %v", filtered.PriorityCounts, full.PriorityCounts, wantCounts)
	}
	both, _ := adapter.GetBoard(ctx, BoardFilter{Priority: "high", Temperature: "warm"})
	if both.Stages[0].Count != 0 || both.Stages[1].Cards[0].ID != "done" {
		t.Fatalf("unexpected combined filter %#v", both.Stages)
	}

	renamed, err := adapter.RenamePipeline(ctx, RenamePipelineRequest{Name: "Partners"})
	if err != nil {
		t.Fatalf("RenamePipeline() error = %v", err)
	}
	if renamed.Name != "Partners" || repo.name != "Partners" {
		t.Fatalf("renamed = %q, stored = %q", renamed.Name, repo.name)
	}
	after, _ := adapter.GetBoard(ctx, BoardFilter{})
	if after.Pipeline != "Partners" || after.Revision == full.Revision {
		t.Fatalf("unexpected board after rename %q %q", after.Pipeline, after.Revision)
	}
}
