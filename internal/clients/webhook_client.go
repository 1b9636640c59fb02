package clients

import (
	"context"
	"fmt"
	"time"

	"geomonitoring/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AlertEvent is the JSON body posted to the alert webhook.
type AlertEvent struct {
	Event        string            `json:"event"`
	SensorID     uint              `json:"sensor_id"`
	SensorName   string            `json:"sensor_name"`
	SensorType   models.SensorType `json:"sensor_type"`
	BuildingID   uint              `json:"building_id"`
	Location     string            `json:"location"`
	ReadingID    uint              `json:"reading_id"`
	Value        float64           `json:"value"`
	Unit         string            `json:"unit"`
	Timestamp    time.Time         `json:"timestamp"`
	MinThreshold *float64          `json:"min_threshold,omitempty"`
	MaxThreshold *float64          `json:"max_threshold,omitempty"`
}

type WebhookClient interface {
	NotifyAlert(ctx context.Context, sensor *models.Sensor, reading *models.Reading) error
}

type webhookClient struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

func NewWebhookClient(url string, timeout time.Duration, retries int, logger *zap.Logger) WebhookClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Geomonitoring/1.0")

	return &webhookClient{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

func (c *webhookClient) NotifyAlert(ctx context.Context, sensor *models.Sensor, reading *models.Reading) error {
	profile := sensor.SensorType.Profile()
	event := AlertEvent{
		Event:        "threshold_exceeded",
		SensorID:     sensor.ID,
		SensorName:   sensor.Name,
		SensorType:   sensor.SensorType,
		BuildingID:   sensor.BuildingID,
		Location:     sensor.Location,
		ReadingID:    reading.ID,
		Value:        reading.Value,
		Unit:         reading.Unit,
		Timestamp:    reading.Timestamp,
		MinThreshold: profile.MinThreshold,
		MaxThreshold: profile.MaxThreshold,
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(event).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("failed to post alert webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Debug("alert webhook delivered",
		zap.Uint("sensor_id", sensor.ID),
		zap.Uint("reading_id", reading.ID),
		zap.Int("status", resp.StatusCode()),
	)
	return nil
}
