package models

import (
	"time"

	"gorm.io/datatypes"
)

type SensorStatus string

const (
	SensorStatusActive      SensorStatus = "active"
	SensorStatusInactive    SensorStatus = "inactive"
	SensorStatusMaintenance SensorStatus = "maintenance"
)

func (s SensorStatus) Valid() bool {
	switch s {
	case SensorStatusActive, SensorStatusInactive, SensorStatusMaintenance:
		return true
	}
	return false
}

// Sensor is immutable after creation except for Status and Metadata.
type Sensor struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:100;not null" json:"name"`
	SensorType SensorType     `gorm:"size:50;not null;index" json:"type"`
	Location   string         `gorm:"size:200;not null" json:"location"`
	BuildingID uint           `gorm:"not null;index" json:"building_id"`
	Floor      *int           `json:"floor"`
	PositionX  *float64       `json:"position_x,omitempty"`
	PositionY  *float64       `json:"position_y,omitempty"`
	Status     SensorStatus   `gorm:"size:20;not null;default:active" json:"status"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
