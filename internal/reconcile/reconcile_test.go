package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parkstand-backend/internal/db"
	"parkstand-backend/internal/model"
	"parkstand-backend/internal/store"
)

func TestRunRepairsDriftedCounter(t *testing.T) {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gormDB))

	require.NoError(t, gormDB.Create(&model.Stand{ID: 1, Capacity: 5, BaseRate: 20}).Error)

	appStore := store.NewGormStore(gormDB, zap.NewNop())
	sess := &model.ParkingSession{
		PlateNumber:  "BA1PA100",
		VehicleClass: model.ClassCar,
		StandID:      1,
		OperatorID:   7,
		CheckInTime:  time.Now().UTC(),
	}
	require.NoError(t, appStore.CreateSession(context.Background(), sess,
		func() (string, error) { return "AAAAAA", nil }))

	// Corrupt the counter to simulate drift from a crash.
	require.NoError(t, gormDB.Model(&model.Stand{}).Where("id = ?", 1).
		UpdateColumn("current_occupancy", 3).Error)

	New(appStore, zap.NewNop()).Run()

	var stand model.Stand
	require.NoError(t, gormDB.First(&stand, 1).Error)
	assert.Equal(t, 1, stand.CurrentOccupancy)
}
