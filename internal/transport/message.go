package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"geomonitoring/internal/models"

	"github.com/relvacode/iso8601"
)

const (
	TopicPrefix = "geo/sensors"
	// SubscribeTopic matches every sensor data topic.
	SubscribeTopic = TopicPrefix + "/+/+/data"
)

var (
	ErrBadTopic   = errors.New("malformed topic")
	ErrBadPayload = errors.New("malformed payload")
)

// DataTopic builds geo/sensors/<type>/<id>/data.
func DataTopic(sensorType models.SensorType, sensorID uint) string {
	return fmt.Sprintf("%s/%s/%d/data", TopicPrefix, sensorType, sensorID)
}

// ParseTopic extracts the sensor type segment and numeric id from a data topic.
// The type segment is informational; the stored sensor decides the real type.
func ParseTopic(topic string) (string, uint, error) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 5 || parts[0]+"/"+parts[1] != TopicPrefix || parts[4] != "data" {
		return "", 0, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	id, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil || id == 0 {
		return "", 0, fmt.Errorf("%w: sensor id %q is not a positive integer", ErrBadTopic, parts[3])
	}
	return parts[2], uint(id), nil
}

// Payload is the wire format published by sensors and the simulator.
type Payload struct {
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

type rawPayload struct {
	Value     json.RawMessage `json:"value"`
	Unit      string          `json:"unit"`
	Timestamp string          `json:"timestamp"`
}

// Message is a decoded delivery ready for ingestion. A zero Timestamp means
// the payload had no usable time.
type Message struct {
	SensorType string
	SensorID   uint
	Value      float64
	Unit       string
	Timestamp  time.Time
}

// DecodePayload accepts value as a JSON number or numeric string. A missing
// or unparsable timestamp yields a zero time.
func DecodePayload(payload []byte) (value float64, unit string, ts time.Time, err error) {
	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return 0, "", time.Time{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	v := bytes.TrimSpace(raw.Value)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return 0, "", time.Time{}, fmt.Errorf("%w: missing value", ErrBadPayload)
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, "", time.Time{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		v = []byte(strings.TrimSpace(s))
	}
	value, err = strconv.ParseFloat(string(v), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, "", time.Time{}, fmt.Errorf("%w: value %s is not numeric", ErrBadPayload, raw.Value)
	}

	if raw.Timestamp != "" {
		if parsed, perr := iso8601.ParseString(raw.Timestamp); perr == nil {
			ts = parsed.UTC()
		}
	}
	return value, strings.TrimSpace(raw.Unit), ts, nil
}

func ParseMessage(topic string, payload []byte) (*Message, error) {
	sensorType, sensorID, err := ParseTopic(topic)
	if err != nil {
		return nil, err
	}
	value, unit, ts, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		SensorType: sensorType,
		SensorID:   sensorID,
		Value:      value,
		Unit:       unit,
		Timestamp:  ts,
	}, nil
}
