package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
	ErrBoardNotLoaded   = errors.New("board not loaded")
	ErrRevisionConflict = errors.New("board revision conflict")
)
