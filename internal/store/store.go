package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"parkstand-backend/internal/model"
)

// tokenAttempts bounds the uniqueness retry loop at check-in.
const tokenAttempts = 5

// Store defines the persistence operations of the session core. All state
// changes run inside a single transaction so occupancy and session status
// can never drift apart on a crash.
type Store interface {
	GetStand(ctx context.Context, standID int64) (*model.Stand, error)
	CreateSession(ctx context.Context, session *model.ParkingSession, nextToken func() (string, error)) error
	CloseSession(ctx context.Context, params CloseSessionParams, status model.SessionStatus) (*model.ParkingSession, error)
	FindActiveSession(ctx context.Context, ref SessionRef, standID int64) (*model.ParkingSession, error)
	ListSince(ctx context.Context, standID int64, since time.Time) ([]model.ParkingSession, error)
	ListActive(ctx context.Context, standID int64) ([]model.ParkingSession, error)
	FindByToken(ctx context.Context, tokenID string, standID int64) (*model.ParkingSession, error)
	SearchActiveByPlate(ctx context.Context, fragment string, standID int64) ([]model.ParkingSession, error)
	RecountOccupancy(ctx context.Context) ([]OccupancyDrift, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, logger *zap.Logger) Store {
	return &gormStore{db: db, logger: logger}
}

// GetStand returns the stand record this core reads rates and capacity from.
func (s *gormStore) GetStand(ctx context.Context, standID int64) (*model.Stand, error) {
	var stand model.Stand
	if err := s.db.WithContext(ctx).First(&stand, standID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStandNotFound
		}
		return nil, fmt.Errorf("failed to fetch stand %d: %w", standID, err)
	}
	return &stand, nil
}

// CreateSession performs the check-in write. The conditional occupancy
// increment runs first: it both enforces the capacity ceiling in a single
// statement and takes the stand's row lock, which serializes the duplicate
// and token checks for concurrent check-ins at the same stand. Any failure
// rolls the reservation back with the transaction.
func (s *gormStore) CreateSession(ctx context.Context, session *model.ParkingSession, nextToken func() (string, error)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Stand{}).
			Where("id = ? AND current_occupancy < capacity", session.StandID).
			UpdateColumn("current_occupancy", gorm.Expr("current_occupancy + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to reserve occupancy for stand %d: %w", session.StandID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Either the stand is full or it does not exist.
			var count int64
			if err := tx.Model(&model.Stand{}).Where("id = ?", session.StandID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to verify stand %d: %w", session.StandID, err)
			}
			if count == 0 {
				return ErrStandNotFound
			}
			return ErrCapacityExceeded
		}

		var dup int64
		if err := tx.Model(&model.ParkingSession{}).
			Where("stand_id = ? AND plate_number = ? AND status = ?", session.StandID, session.PlateNumber, model.StatusActive).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("failed to check for duplicate plate %s: %w", session.PlateNumber, err)
		}
		if dup > 0 {
			return ErrDuplicateActiveVehicle
		}

		tokenID, err := s.uniqueToken(tx, nextToken)
		if err != nil {
			return err
		}
		session.TokenID = tokenID
		session.Status = model.StatusActive

		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session for plate %s: %w", session.PlateNumber, err)
		}
		return nil
	})
}

// uniqueToken draws display codes until one is free among active sessions
// system-wide. Staff may search by token alone, so the check is not scoped
// to a stand.
func (s *gormStore) uniqueToken(tx *gorm.DB, nextToken func() (string, error)) (string, error) {
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		code, err := nextToken()
		if err != nil {
			return "", err
		}
		var taken int64
		if err := tx.Model(&model.ParkingSession{}).
			Where("token_id = ? AND status = ?", code, model.StatusActive).
			Count(&taken).Error; err != nil {
			return "", fmt.Errorf("failed to check token uniqueness: %w", err)
		}
		if taken == 0 {
			return code, nil
		}
		s.logger.Warn("token collision, retrying", zap.String("token", code), zap.Int("attempt", attempt+1))
	}
	return "", fmt.Errorf("no unique token after %d attempts", tokenAttempts)
}

// CloseSession flips an active session to completed or cancelled and
// releases its occupancy slot in the same transaction. The status flip is
// conditional on the session still being active, so a second checkout
// affects zero rows and reports not found instead of double charging.
func (s *gormStore) CloseSession(ctx context.Context, params CloseSessionParams, status model.SessionStatus) (*model.ParkingSession, error) {
	var closed model.ParkingSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":         status,
			"check_out_time": params.CheckOutTime,
			"amount_due":     params.AmountDue,
		}
		if params.PaymentMethod != "" {
			updates["payment_method"] = params.PaymentMethod
		}
		if params.CustomerName != "" {
			updates["customer_name"] = params.CustomerName
		}
		if params.CustomerPhone != "" {
			updates["customer_phone"] = params.CustomerPhone
		}

		res := tx.Model(&model.ParkingSession{}).
			Where("id = ? AND stand_id = ? AND status = ?", params.SessionID, params.StandID, model.StatusActive).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to close session %d: %w", params.SessionID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotFound
		}

		if err := s.releaseOccupancy(tx, params.StandID); err != nil {
			return err
		}

		if err := tx.First(&closed, params.SessionID).Error; err != nil {
			return fmt.Errorf("failed to reload session %d: %w", params.SessionID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

// releaseOccupancy decrements the counter, clamped at zero. A clamped
// release means the counter and the active set had already drifted; that is
// a bookkeeping defect worth a loud signal, not silent corruption.
func (s *gormStore) releaseOccupancy(tx *gorm.DB, standID int64) error {
	res := tx.Model(&model.Stand{}).
		Where("id = ? AND current_occupancy > 0", standID).
		UpdateColumn("current_occupancy", gorm.Expr("current_occupancy - 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to release occupancy for stand %d: %w", standID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.logger.Warn("negative occupancy prevented, counter already at zero",
			zap.Int64("stand_id", standID))
	}
	return nil
}

// FindActiveSession resolves a checkout reference against the caller's
// stand. Only active sessions match; completed and foreign-stand sessions
// report not found.
func (s *gormStore) FindActiveSession(ctx context.Context, ref SessionRef, standID int64) (*model.ParkingSession, error) {
	query := s.db.WithContext(ctx).
		Where("stand_id = ? AND status = ?", standID, model.StatusActive)
	switch {
	case ref.SessionID != 0:
		query = query.Where("id = ?", ref.SessionID)
	case ref.Token != "":
		query = query.Where("token_id = ?", ref.Token)
	case ref.Plate != "":
		query = query.Where("plate_number = ?", ref.Plate)
	default:
		return nil, ErrSessionNotFound
	}

	var session model.ParkingSession
	if err := query.First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to resolve session reference: %w", err)
	}
	return &session, nil
}

// ListSince returns the stand's sessions created at or after the given
// instant, most recent first.
func (s *gormStore) ListSince(ctx context.Context, standID int64, since time.Time) ([]model.ParkingSession, error) {
	sessions := make([]model.ParkingSession, 0)
	if err := s.db.WithContext(ctx).
		Where("stand_id = ? AND check_in_time >= ?", standID, since).
		Order("check_in_time DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions for stand %d: %w", standID, err)
	}
	return sessions, nil
}

// ListActive returns the stand's currently parked vehicles, most recent first.
func (s *gormStore) ListActive(ctx context.Context, standID int64) ([]model.ParkingSession, error) {
	sessions := make([]model.ParkingSession, 0)
	if err := s.db.WithContext(ctx).
		Where("stand_id = ? AND status = ?", standID, model.StatusActive).
		Order("check_in_time DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list active sessions for stand %d: %w", standID, err)
	}
	return sessions, nil
}

// FindByToken returns the stand's most recent session carrying the token.
func (s *gormStore) FindByToken(ctx context.Context, tokenID string, standID int64) (*model.ParkingSession, error) {
	var session model.ParkingSession
	if err := s.db.WithContext(ctx).
		Where("stand_id = ? AND token_id = ?", standID, tokenID).
		Order("check_in_time DESC").
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to look up token %s: %w", tokenID, err)
	}
	return &session, nil
}

// SearchActiveByPlate returns active sessions whose plate contains the
// fragment, most recent first. No match is an empty slice, not an error.
func (s *gormStore) SearchActiveByPlate(ctx context.Context, fragment string, standID int64) ([]model.ParkingSession, error) {
	sessions := make([]model.ParkingSession, 0)
	if err := s.db.WithContext(ctx).
		Where("stand_id = ? AND status = ? AND plate_number LIKE ?", standID, model.StatusActive, "%"+fragment+"%").
		Order("check_in_time DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to search plates for stand %d: %w", standID, err)
	}
	return sessions, nil
}

// RecountOccupancy realigns every stand's counter with the true count of
// its active sessions and reports the stands that had drifted. Each repair
// is a single statement so it cannot race check-in traffic into a stale
// value.
func (s *gormStore) RecountOccupancy(ctx context.Context) ([]OccupancyDrift, error) {
	type countRow struct {
		ID               int64
		CurrentOccupancy int
		Actual           int
	}
	var rows []countRow
	if err := s.db.WithContext(ctx).Model(&model.Stand{}).
		Select("stands.id, stands.current_occupancy, (SELECT COUNT(*) FROM parking_sessions WHERE parking_sessions.stand_id = stands.id AND parking_sessions.status = ?) AS actual", model.StatusActive).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count active sessions: %w", err)
	}

	var drifts []OccupancyDrift
	for _, row := range rows {
		if row.CurrentOccupancy == row.Actual {
			continue
		}
		res := s.db.WithContext(ctx).Model(&model.Stand{}).
			Where("id = ? AND current_occupancy = ?", row.ID, row.CurrentOccupancy).
			UpdateColumn("current_occupancy", gorm.Expr(
				"(SELECT COUNT(*) FROM parking_sessions WHERE parking_sessions.stand_id = stands.id AND parking_sessions.status = ?)", model.StatusActive))
		if res.Error != nil {
			return drifts, fmt.Errorf("failed to repair occupancy for stand %d: %w", row.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Counter moved since the read; the next run will re-check.
			continue
		}
		drifts = append(drifts, OccupancyDrift{StandID: row.ID, Recorded: row.CurrentOccupancy, Actual: row.Actual})
	}
	return drifts, nil
}
