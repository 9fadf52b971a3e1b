package internal

import (
	"context"
	"sync"
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
	"parkstand-backend/internal/pricing"
	"parkstand-backend/internal/session"
	"parkstand-backend/internal/store"
	"parkstand-backend/internal/token"
)

func setupCore(t *testing.T) (*session.Manager, store.Store, *gorm.DB) {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	// One connection serializes writes, which in-memory SQLite needs.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gormDB))

	appStore := store.NewGormStore(gormDB, zap.NewNop())
	manager := session.NewManager(appStore, pricing.DefaultTariff(), token.New(), zap.NewNop())
	return manager, appStore, gormDB
}

func countActive(t *testing.T, gormDB *gorm.DB, standID int64) int {
	t.Helper()
	var n int64
	require.NoError(t, gormDB.Model(&model.ParkingSession{}).
		Where("stand_id = ? AND status = ?", standID, model.StatusActive).
		Count(&n).Error)
	return int(n)
}

func occupancy(t *testing.T, gormDB *gorm.DB, standID int64) int {
	t.Helper()
	var stand model.Stand
	require.NoError(t, gormDB.First(&stand, standID).Error)
	return stand.CurrentOccupancy
}

// TestSessionLifecycle walks one vehicle through check-in and checkout and
// verifies the occupancy counter tracks the active set at every step.
func TestSessionLifecycle(t *testing.T) {
	manager, _, gormDB := setupCore(t)
	require.NoError(t, gormDB.Create(&model.Stand{ID: 1, Capacity: 3, BaseRate: 20}).Error)

	checkIn := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := checkIn
	manager.WithClock(func() time.Time { return clock })

	created, err := manager.CheckIn(context.Background(), session.CheckInInput{
		StandID: 1, OperatorID: 7, PlateNumber: "ba1pa100", VehicleClass: "car",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, occupancy(t, gormDB, 1))
	assert.Equal(t, countActive(t, gormDB, 1), occupancy(t, gormDB, 1))

	// The round-trip property: 61 seconds, car, base rate 20 -> amount 2.
	clock = checkIn.Add(61 * time.Second)
	closed, err := manager.CheckOut(context.Background(), session.CheckOutInput{
		StandID: 1, Ref: store.SessionRef{Token: created.TokenID},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), closed.AmountDue)
	assert.Equal(t, model.StatusCompleted, closed.Status)
	assert.Equal(t, 0, occupancy(t, gormDB, 1))
	assert.Equal(t, countActive(t, gormDB, 1), occupancy(t, gormDB, 1))

	// Completed sessions never change again.
	reloaded, err := manager.FindByToken(context.Background(), created.TokenID, 1)
	require.NoError(t, err)
	assert.Equal(t, closed.AmountDue, reloaded.AmountDue)
	require.NotNil(t, reloaded.CheckOutTime)
	assert.True(t, closed.CheckOutTime.Equal(*reloaded.CheckOutTime))

	// And a second checkout attempt fails cleanly.
	_, err = manager.CheckOut(context.Background(), session.CheckOutInput{
		StandID: 1, Ref: store.SessionRef{Token: created.TokenID},
	})
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

// TestConcurrentCheckInsOneSlot races two check-ins for the last slot.
// Exactly one may win.
func TestConcurrentCheckInsOneSlot(t *testing.T) {
	manager, _, gormDB := setupCore(t)
	require.NoError(t, gormDB.Create(&model.Stand{ID: 1, Capacity: 1, BaseRate: 20}).Error)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	plates := []string{"AAA111", "BBB222"}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = manager.CheckIn(context.Background(), session.CheckInInput{
				StandID: 1, OperatorID: 7, PlateNumber: plates[i], VehicleClass: "bike",
			})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, store.ErrCapacityExceeded)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, occupancy(t, gormDB, 1))
	assert.Equal(t, countActive(t, gormDB, 1), occupancy(t, gormDB, 1))
}

// TestMixedPathsReleaseExactlyOnce closes sessions by id, token, plate and
// cancellation, and checks every path frees exactly one slot.
func TestMixedPathsReleaseExactlyOnce(t *testing.T) {
	manager, _, gormDB := setupCore(t)
	require.NoError(t, gormDB.Create(&model.Stand{ID: 1, Capacity: 10, BaseRate: 20}).Error)

	checkIn := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := checkIn
	manager.WithClock(func() time.Time { return clock })

	var created []*model.ParkingSession
	for _, plate := range []string{"AAA111", "BBB222", "CCC333", "DDD444"} {
		s, err := manager.CheckIn(context.Background(), session.CheckInInput{
			StandID: 1, OperatorID: 7, PlateNumber: plate, VehicleClass: "car",
		})
		require.NoError(t, err)
		created = append(created, s)
	}
	require.Equal(t, 4, occupancy(t, gormDB, 1))

	clock = checkIn.Add(time.Hour)

	_, err := manager.CheckOut(context.Background(), session.CheckOutInput{
		StandID: 1, Ref: store.SessionRef{SessionID: created[0].ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, occupancy(t, gormDB, 1))

	_, err = manager.CheckOut(context.Background(), session.CheckOutInput{
		StandID: 1, Ref: store.SessionRef{Token: created[1].TokenID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, occupancy(t, gormDB, 1))

	_, err = manager.CheckOut(context.Background(), session.CheckOutInput{
		StandID: 1, Ref: store.SessionRef{Plate: "ccc333"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, occupancy(t, gormDB, 1))

	_, err = manager.Cancel(context.Background(), created[3].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, occupancy(t, gormDB, 1))
	assert.Equal(t, countActive(t, gormDB, 1), occupancy(t, gormDB, 1))
}

// TestStandsAreIsolated verifies one stand's traffic never consumes
// another stand's capacity.
func TestStandsAreIsolated(t *testing.T) {
	manager, _, gormDB := setupCore(t)
	require.NoError(t, gormDB.Create(&model.Stand{ID: 1, Capacity: 1, BaseRate: 20}).Error)
	require.NoError(t, gormDB.Create(&model.Stand{ID: 2, Capacity: 1, BaseRate: 30}).Error)

	_, err := manager.CheckIn(context.Background(), session.CheckInInput{
		StandID: 1, OperatorID: 7, PlateNumber: "AAA111", VehicleClass: "car",
	})
	require.NoError(t, err)

	// Stand 1 is full; stand 2 is untouched.
	_, err = manager.CheckIn(context.Background(), session.CheckInInput{
		StandID: 1, OperatorID: 7, PlateNumber: "BBB222", VehicleClass: "car",
	})
	assert.ErrorIs(t, err, store.ErrCapacityExceeded)

	_, err = manager.CheckIn(context.Background(), session.CheckInInput{
		StandID: 2, OperatorID: 7, PlateNumber: "BBB222", VehicleClass: "car",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, occupancy(t, gormDB, 1))
	assert.Equal(t, 1, occupancy(t, gormDB, 2))
}
