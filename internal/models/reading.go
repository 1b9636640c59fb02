package models

import "time"

// Reading is append-only: rows are never updated after insertion and the
// alert flag reflects the thresholds in force at write time.
type Reading struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SensorID  uint      `gorm:"not null;index:idx_reading_sensor_ts,priority:1" json:"sensor_id"`
	Timestamp time.Time `gorm:"not null;index:idx_reading_sensor_ts,priority:2;index:idx_reading_ts" json:"timestamp"`
	Value     float64   `gorm:"not null" json:"value"`
	Unit      string    `gorm:"size:20;not null" json:"unit"`
	IsAlert   bool      `gorm:"not null;default:false;index" json:"is_alert"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	Sensor    *Sensor   `gorm:"foreignKey:SensorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

func (Reading) TableName() string {
	return "sensor_readings"
}
