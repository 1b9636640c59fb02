package models

import "time"

type Building struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:200;not null" json:"name"`
	Address          string    `gorm:"size:300;not null" json:"address"`
	Floors           *int      `json:"floors"`
	ConstructionYear *int      `json:"construction_year"`
	BuildingType     string    `gorm:"size:100" json:"building_type"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	Sensors          []Sensor  `gorm:"foreignKey:BuildingID" json:"sensors,omitempty"`
}
