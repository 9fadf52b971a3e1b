// Package session orchestrates the parking session lifecycle: check-in,
// checkout and cancellation against a single stand.
package session

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"parkstand-backend/internal/model"
	"parkstand-backend/internal/pricing"
	"parkstand-backend/internal/store"
)

// ValidationError reports a caller-fixable problem with a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// TokenSource produces display codes for new sessions.
type TokenSource interface {
	Next() (string, error)
}

// Manager ties the store, the tariff and the token source together.
type Manager struct {
	store  store.Store
	tariff pricing.Tariff
	tokens TokenSource
	logger *zap.Logger
	now    func() time.Time
}

// NewManager builds a Manager. The clock defaults to time.Now (UTC) and is
// injectable for tests.
func NewManager(s store.Store, tariff pricing.Tariff, tokens TokenSource, logger *zap.Logger) *Manager {
	return &Manager{
		store:  s,
		tariff: tariff,
		tokens: tokens,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the manager's clock. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CheckInInput carries a check-in request resolved by the HTTP layer.
type CheckInInput struct {
	StandID      int64
	OperatorID   int64
	PlateNumber  string
	VehicleClass string
}

// CheckOutInput carries a checkout request. Ref resolves the session;
// the metadata fields are optional.
type CheckOutInput struct {
	StandID       int64
	Ref           store.SessionRef
	PaymentMethod string
	CustomerName  string
	CustomerPhone string
}

// CheckIn validates the request, reserves a slot and persists an active
// session. The store runs reservation, duplicate check, token assignment
// and the insert as one transaction, so nothing leaks on failure.
func (m *Manager) CheckIn(ctx context.Context, input CheckInInput) (*model.ParkingSession, error) {
	plate := strings.ToUpper(strings.TrimSpace(input.PlateNumber))
	if plate == "" {
		return nil, &ValidationError{Field: "plate_number", Reason: "is required"}
	}
	rawClass := strings.ToLower(strings.TrimSpace(input.VehicleClass))
	if rawClass == "" {
		return nil, &ValidationError{Field: "vehicle_class", Reason: "is required"}
	}
	class, err := model.ParseVehicleClass(rawClass)
	if err != nil {
		return nil, &ValidationError{Field: "vehicle_class", Reason: "must be one of cycle, bike, car"}
	}

	session := &model.ParkingSession{
		PlateNumber:  plate,
		VehicleClass: class,
		StandID:      input.StandID,
		OperatorID:   input.OperatorID,
		CheckInTime:  m.now(),
	}
	if err := m.store.CreateSession(ctx, session, m.tokens.Next); err != nil {
		return nil, err
	}

	m.logger.Info("vehicle checked in",
		zap.Int64("session_id", session.ID),
		zap.Int64("stand_id", session.StandID),
		zap.String("plate", session.PlateNumber),
		zap.String("token", session.TokenID),
	)
	return session, nil
}

// CheckOut resolves the active session, computes the fee exactly once from
// the stand's current base rate, and closes session and occupancy together.
func (m *Manager) CheckOut(ctx context.Context, input CheckOutInput) (*model.ParkingSession, error) {
	if input.Ref.Plate != "" {
		input.Ref.Plate = strings.ToUpper(strings.TrimSpace(input.Ref.Plate))
	}
	if input.Ref.IsZero() {
		return nil, &ValidationError{Field: "session_ref", Reason: "an id, token or plate is required"}
	}

	sess, err := m.store.FindActiveSession(ctx, input.Ref, input.StandID)
	if err != nil {
		return nil, err
	}
	stand, err := m.store.GetStand(ctx, input.StandID)
	if err != nil {
		return nil, err
	}

	checkOut := m.now()
	amount, err := m.tariff.Compute(sess.CheckInTime, checkOut, sess.VehicleClass, stand.BaseRate)
	if err != nil {
		return nil, err
	}

	closed, err := m.store.CloseSession(ctx, store.CloseSessionParams{
		SessionID:     sess.ID,
		StandID:       input.StandID,
		CheckOutTime:  checkOut,
		AmountDue:     amount,
		PaymentMethod: input.PaymentMethod,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
	}, model.StatusCompleted)
	if err != nil {
		return nil, err
	}

	m.logger.Info("vehicle checked out",
		zap.Int64("session_id", closed.ID),
		zap.Int64("stand_id", closed.StandID),
		zap.Int64("amount_due", closed.AmountDue),
	)
	return closed, nil
}

// Cancel voids an active session without charging and frees its slot.
func (m *Manager) Cancel(ctx context.Context, sessionID, standID int64) (*model.ParkingSession, error) {
	sess, err := m.store.FindActiveSession(ctx, store.SessionRef{SessionID: sessionID}, standID)
	if err != nil {
		return nil, err
	}

	cancelled, err := m.store.CloseSession(ctx, store.CloseSessionParams{
		SessionID:    sess.ID,
		StandID:      standID,
		CheckOutTime: m.now(),
	}, model.StatusCancelled)
	if err != nil {
		return nil, err
	}

	m.logger.Info("session cancelled",
		zap.Int64("session_id", cancelled.ID),
		zap.Int64("stand_id", cancelled.StandID),
	)
	return cancelled, nil
}

// ListToday returns the stand's sessions created since local midnight in
// the given timezone, most recent first.
func (m *Manager) ListToday(ctx context.Context, standID int64, loc *time.Location) ([]model.ParkingSession, error) {
	now := m.now().In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return m.store.ListSince(ctx, standID, midnight.UTC())
}

// ListActive returns the stand's currently parked vehicles.
func (m *Manager) ListActive(ctx context.Context, standID int64) ([]model.ParkingSession, error) {
	return m.store.ListActive(ctx, standID)
}

// FindByToken looks a session up by its exact display code.
func (m *Manager) FindByToken(ctx context.Context, tokenID string, standID int64) (*model.ParkingSession, error) {
	return m.store.FindByToken(ctx, strings.ToUpper(strings.TrimSpace(tokenID)), standID)
}

// SearchByPlate returns active sessions matching a plate fragment,
// case-insensitively. Plates are stored uppercase, so uppercasing the
// fragment makes the LIKE match case-insensitive on every backend.
func (m *Manager) SearchByPlate(ctx context.Context, fragment string, standID int64) ([]model.ParkingSession, error) {
	fragment = strings.ToUpper(strings.TrimSpace(fragment))
	if fragment == "" {
		return nil, &ValidationError{Field: "plate", Reason: "is required"}
	}
	return m.store.SearchActiveByPlate(ctx, fragment, standID)
}
