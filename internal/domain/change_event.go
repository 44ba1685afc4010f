package domain

import "time"

// ChangeOperation describes a persisted board mutation.
type ChangeOperation string

// ChangeOperation values used by the local activity ledger.
const (
	ChangeOperationCardCreate   ChangeOperation = "card_create"
	ChangeOperationCardUpdate   ChangeOperation = "card_update"
	ChangeOperationCardMove     ChangeOperation = "card_move"
	ChangeOperationCardDelete   ChangeOperation = "card_delete"
	ChangeOperationStageCreate  ChangeOperation = "stage_create"
	ChangeOperationStageUpdate  ChangeOperation = "stage_update"
	ChangeOperationStageReorder ChangeOperation = "stage_reorder"
	ChangeOperationStageDelete  ChangeOperation = "stage_delete"
	ChangeOperationBoardImport  ChangeOperation = "board_import"
	ChangeOperationBoardRename  ChangeOperation = "board_rename"
)

// ChangeEvent represents a single activity-log entry for the board.
type ChangeEvent struct {
	ID         int64             `json:"id"`
	Operation  ChangeOperation   `json:"operation"`
	StageID    string            `json:"stage_id,omitempty"`
	CardID     string            `json:"card_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// BoardChange is the persisted footprint of one mutation.
//
// Order is nil when the display order did not change. Stages lists every stage whose
// metadata or card sequence changed, with its full card sequence. Name is nil when the
// pipeline name did not change. Revision is the stored revision the change was computed
// against; a store holding any other revision rejects the change.
type BoardChange struct {
	Revision        int64
	Name            *string
	Order           []string
	Stages          []Stage
	DeletedStageIDs []string
	DeletedCardIDs  []string
	Event           ChangeEvent
}
