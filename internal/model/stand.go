package model

import "time"

// Stand holds the slice of a parking stand this core owns: the capacity
// ceiling, the live occupancy counter and the hourly base rate. The full
// stand record (name, address, staff) lives with the admin service.
type Stand struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	Capacity         int       `gorm:"not null" json:"capacity"`
	CurrentOccupancy int       `gorm:"not null;default:0" json:"current_occupancy"`
	BaseRate         float64   `gorm:"not null" json:"base_rate"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}
