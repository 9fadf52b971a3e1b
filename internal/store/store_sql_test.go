package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parkstand-backend/internal/model"
)

// newMockDB creates a mock database connection for asserting the exact SQL
// the store emits.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

// The capacity check and the increment must be one conditional statement.
// A read-then-write pair would let two concurrent check-ins both pass the
// check and jointly exceed capacity.
func TestReserveIsSingleConditionalUpdate(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "stands" SET "current_occupancy"=current_occupancy \+ 1 WHERE id = \$1 AND current_occupancy < capacity`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// Zero rows affected: distinguish a full stand from a missing one.
	mock.ExpectQuery(`SELECT count\(\*\) FROM "stands" WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := s.CreateSession(context.Background(), &model.ParkingSession{
		PlateNumber:  "BA1PA100",
		VehicleClass: model.ClassCar,
		StandID:      1,
		OperatorID:   7,
		CheckInTime:  time.Now().UTC(),
	}, func() (string, error) { return "AAAAAA", nil })

	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The release decrement is likewise conditional so the counter can never
// go below zero.
func TestReleaseClampsInSingleStatement(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, zap.NewNop())

	checkOut := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "parking_sessions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "stands" SET "current_occupancy"=current_occupancy - 1 WHERE id = \$1 AND current_occupancy > 0`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "parking_sessions" WHERE "parking_sessions"."id" = \$1`).
		WithArgs(int64(5), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "stand_id", "status"}).AddRow(5, 1, "completed"))
	mock.ExpectCommit()

	_, err := s.CloseSession(context.Background(), CloseSessionParams{
		SessionID:    5,
		StandID:      1,
		CheckOutTime: checkOut,
	}, model.StatusCompleted)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
