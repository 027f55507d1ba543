package engine

import (
	"errors"
	"fmt"

	"spycats/internal/repo"
)

var (
	// ErrCatBusy means the cat already has an incomplete mission.
	ErrCatBusy = errors.New("cat already has an active mission")
	// ErrTargetLocked means the target or its mission is complete.
	ErrTargetLocked = errors.New("target is locked")
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AssignmentError is a refused cat-to-mission assignment.
// Err is ErrCatBusy or wraps repo.ErrNotFound.
type AssignmentError struct {
	MissionID       int64
	CatID           int64
	ActiveMissionID int64
	Err             error
}

func (e *AssignmentError) Error() string {
	if errors.Is(e.Err, ErrCatBusy) {
		return fmt.Sprintf("cannot assign cat %d to mission %d: cat is on active mission %d", e.CatID, e.MissionID, e.ActiveMissionID)
	}
	return fmt.Sprintf("cannot assign cat %d to mission %d: %v", e.CatID, e.MissionID, e.Err)
}

func (e *AssignmentError) Unwrap() error { return e.Err }

// RejectedError is a refused target update. Err is ErrTargetLocked or wraps repo.ErrNotFound.
type RejectedError struct {
	TargetID int64
	Err      error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("cannot update target %d: %v", e.TargetID, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// rejected reports whether err is a caller-correctable refusal rather than a fault.
func rejected(err error) bool {
	var ve *ValidationError
	var ae *AssignmentError
	var re *RejectedError
	return errors.As(err, &ve) || errors.As(err, &ae) || errors.As(err, &re) || errors.Is(err, repo.ErrNotFound)
}
