package entity

import "errors"

var (
	ErrNoSession         = errors.New("no current user")
	ErrNotParticipant    = errors.New("current user is neither buyer nor seller")
	ErrTombstoned        = errors.New("notification was cleared")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrUnknownScreen     = errors.New("unknown screen")
	ErrScreenNotFocused  = errors.New("screen is not focused")
	ErrStaleCompletion   = errors.New("completion no longer relevant")
	ErrMessageNotPending = errors.New("no pending message with that temp id")
)
