package model

import (
	"fmt"
	"time"
)

// VehicleClass is the closed set of vehicle categories a stand admits.
type VehicleClass string

const (
	ClassCycle VehicleClass = "cycle"
	ClassBike  VehicleClass = "bike"
	ClassCar   VehicleClass = "car"
)

// ParseVehicleClass validates membership in the closed set.
func ParseVehicleClass(s string) (VehicleClass, error) {
	switch VehicleClass(s) {
	case ClassCycle, ClassBike, ClassCar:
		return VehicleClass(s), nil
	}
	return "", fmt.Errorf("unknown vehicle class %q", s)
}

// SessionStatus is the session lifecycle state. Transitions are monotonic:
// active may become completed or cancelled, never the reverse.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// ParkingSession is one vehicle's stay from check-in to checkout or
// cancellation. CheckOutTime and AmountDue are written exactly once, at
// checkout; rows are never deleted.
type ParkingSession struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	TokenID       string        `gorm:"size:16;not null;index" json:"token_id"`
	PlateNumber   string        `gorm:"size:32;not null;index" json:"plate_number"`
	VehicleClass  VehicleClass  `gorm:"size:16;not null" json:"vehicle_class"`
	Status        SessionStatus `gorm:"size:16;not null;index" json:"status"`
	StandID       int64         `gorm:"not null;index" json:"stand_id"`
	OperatorID    int64         `gorm:"not null" json:"operator_id"`
	CheckInTime   time.Time     `gorm:"not null;index" json:"check_in_time"`
	CheckOutTime  *time.Time    `json:"check_out_time"`
	AmountDue     int64         `gorm:"not null;default:0" json:"amount_due"`
	PaymentMethod string        `gorm:"size:32" json:"payment_method,omitempty"`
	CustomerName  string        `gorm:"size:128" json:"customer_name,omitempty"`
	CustomerPhone string        `gorm:"size:32" json:"customer_phone,omitempty"`
	CreatedAt     time.Time     `json:"-"`
	UpdatedAt     time.Time     `json:"-"`
}
