package domain

import "strings"

// DragState identifies one drag gesture state.
type DragState int

// DragState values.
const (
	DragIdle DragState = iota
	DragActive
)

// Drag tracks one in-flight drag gesture. Its zero value is idle.
//
// Begin records where the card was picked up; Drop turns the gesture into a MoveRequest for
// Board.MoveCard; Cancel discards it. Drag never mutates the board itself.
type Drag struct {
	state  DragState
	cardID string
	source CardLocation
}

// State returns the current gesture state.
func (d *Drag) State() DragState {
	return d.state
}

// Active reports whether a card is currently picked up.
func (d *Drag) Active() bool {
	return d.state == DragActive
}

// CardID returns the picked-up card id, or "" when idle.
func (d *Drag) CardID() string {
	return d.cardID
}

// Source returns the slot the card was picked up from.
func (d *Drag) Source() CardLocation {
	return d.source
}

// Begin picks up one card from its current slot.
func (d *Drag) Begin(b *Board, cardID string) error {
	if d.state == DragActive {
		return ErrDragInProgress
	}
	loc, err := b.Locate(cardID)
	if err != nil {
		return err
	}
	d.state = DragActive
	d.cardID = strings.TrimSpace(cardID)
	d.source = loc
	return nil
}

// Drop ends the gesture on one destination slot and returns the move to apply.
func (d *Drag) Drop(destStageID string, destIndex int) (MoveRequest, error) {
	if d.state != DragActive {
		return MoveRequest{}, ErrNoDrag
	}
	req := MoveRequest{
		CardID:        d.cardID,
		SourceStageID: d.source.StageID,
		SourceIndex:   d.source.Index,
		DestStageID:   strings.TrimSpace(destStageID),
		DestIndex:     destIndex,
	}
	d.reset()
	return req, nil
}

// Cancel ends the gesture without producing a move.
func (d *Drag) Cancel() error {
	if d.state != DragActive {
		return ErrNoDrag
	}
	d.reset()
	return nil
}

// reset returns the gesture to idle.
func (d *Drag) reset() {
	*d = Drag{}
}
