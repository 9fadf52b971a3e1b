package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"parkstand-backend/internal/model"
)

var (
	// ErrInvalidInterval is returned when checkout does not follow check-in.
	ErrInvalidInterval = errors.New("checkout time must be after check-in time")
	// ErrMissingRate is returned when the stand has no usable base rate.
	ErrMissingRate = errors.New("stand base rate is not configured")
)

// Tariff is the single authoritative rate source for billing: the stand's
// hourly base rate scaled by a per-class multiplier.
type Tariff struct {
	Multipliers map[model.VehicleClass]float64
}

// DefaultTariff returns the standard class multipliers.
func DefaultTariff() Tariff {
	return Tariff{
		Multipliers: map[model.VehicleClass]float64{
			model.ClassCycle: 0.5,
			model.ClassBike:  1.0,
			model.ClassCar:   2.0,
		},
	}
}

// Compute returns the integer amount owed for a stay. Duration is billed in
// whole minutes rounded up (a 61 second stay counts as 2 minutes); the final
// amount is rounded up so fractions of a currency unit are never undercharged.
// Pure: no clock, no I/O.
func (t Tariff) Compute(checkIn, checkOut time.Time, class model.VehicleClass, baseRate float64) (int64, error) {
	if !checkOut.After(checkIn) {
		return 0, ErrInvalidInterval
	}
	if baseRate <= 0 {
		return 0, ErrMissingRate
	}
	mult, ok := t.Multipliers[class]
	if !ok {
		return 0, fmt.Errorf("no multiplier for vehicle class %q", class)
	}

	minutes := math.Ceil(checkOut.Sub(checkIn).Seconds() / 60)
	hours := minutes / 60
	return int64(math.Ceil(hours * baseRate * mult)), nil
}
