package store

import (
	"errors"
	"time"
)

var (
	// ErrStandNotFound indicates an unknown stand id.
	ErrStandNotFound = errors.New("stand not found")
	// ErrCapacityExceeded indicates the stand is at its capacity ceiling.
	ErrCapacityExceeded = errors.New("stand capacity exceeded")
	// ErrDuplicateActiveVehicle indicates the plate is already checked in
	// at this stand.
	ErrDuplicateActiveVehicle = errors.New("vehicle already has an active session at this stand")
	// ErrSessionNotFound indicates no matching active session exists for
	// the caller's stand.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRef identifies an active session for checkout: by internal id, by
// display token, or by exact plate. Exactly one field should be set; when
// several are, id wins over token over plate.
type SessionRef struct {
	SessionID int64
	Token     string
	Plate     string
}

// IsZero reports whether no lookup key was supplied.
func (r SessionRef) IsZero() bool {
	return r.SessionID == 0 && r.Token == "" && r.Plate == ""
}

// CloseSessionParams carries the one-time checkout write.
type CloseSessionParams struct {
	SessionID     int64
	StandID       int64
	CheckOutTime  time.Time
	AmountDue     int64
	PaymentMethod string
	CustomerName  string
	CustomerPhone string
}

// OccupancyDrift reports a stand whose counter disagreed with the true
// count of active sessions.
type OccupancyDrift struct {
	StandID  int64
	Recorded int
	Actual   int
}
