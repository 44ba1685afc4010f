package domain

import "errors"

var (
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidTitle        = errors.New("invalid title")
	ErrInvalidColor        = errors.New("invalid color")
	ErrInvalidPriority     = errors.New("invalid priority")
	ErrInvalidTemperature  = errors.New("invalid temperature")
	ErrInvalidValue        = errors.New("invalid value")
	ErrInvalidMessageCount = errors.New("invalid message count")
	ErrInvalidPolicy       = errors.New("invalid delete policy")
)

// Board mutation failures. All of them leave the board unchanged.
var (
	ErrStaleMove          = errors.New("stale move")
	ErrStageNotFound      = errors.New("stage not found")
	ErrCardNotFound       = errors.New("card not found")
	ErrInvalidPermutation = errors.New("invalid stage permutation")
	ErrStageNotEmpty      = errors.New("stage not empty")
	ErrDuplicateStage     = errors.New("duplicate stage id")
	ErrDuplicateCard      = errors.New("duplicate card id")
)

// Drag gesture failures.
var (
	ErrDragInProgress = errors.New("drag already in progress")
	ErrNoDrag         = errors.New("no drag in progress")
)
