package app

import (
	"context"

	"github.com/hylla/dealboard/internal/domain"
)

// StoredBoard is one consistent read of the persisted board.
type StoredBoard struct {
	Name   string
	Stages []domain.Stage
	// Revision counts saved changes. Zero means nothing was ever written.
	Revision int64
}

// Repository persists the board and its activity ledger.
//
// Several processes may share one store. Every saved change bumps the stored revision, and
// SaveChange rejects a change whose Revision no longer matches with ErrRevisionConflict.
type Repository interface {
	// LoadBoard returns every stored stage in display order with its cards in position order.
	// An empty store returns no stages and no error.
	LoadBoard(context.Context) (StoredBoard, error)
	// Revision returns the current stored revision.
	Revision(context.Context) (int64, error)
	// SaveChange writes one mutation footprint atomically.
	SaveChange(context.Context, domain.BoardChange) error
	ListChangeEvents(context.Context, int) ([]domain.ChangeEvent, error)
}

// Logger receives service diagnostics. A nil Logger discards them.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}
