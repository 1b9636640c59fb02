package models

type AlertConfig struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SensorType   SensorType `gorm:"size:50;not null;uniqueIndex" json:"sensor_type"`
	MinThreshold *float64   `json:"min_threshold"`
	MaxThreshold *float64   `json:"max_threshold"`
	Unit         string     `gorm:"size:20;not null" json:"unit"`
}

// DefaultAlertConfigs builds one config per known sensor type from the
// profile table.
func DefaultAlertConfigs() []AlertConfig {
	configs := make([]AlertConfig, 0, len(SensorProfiles))
	for _, t := range AllSensorTypes() {
		p := SensorProfiles[t]
		configs = append(configs, AlertConfig{
			SensorType:   t,
			MinThreshold: p.MinThreshold,
			MaxThreshold: p.MaxThreshold,
			Unit:         p.Unit,
		})
	}
	return configs
}
