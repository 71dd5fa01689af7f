// Package mqtt mirrors dashboard readings and notifications to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"monotub_dashboard/internal/models"
)

// Topic suffixes under the configured prefix.
const (
	SuffixStatus        = "status"
	SuffixNotifications = "notifications"
	SuffixOnline        = "online"
)

// Publisher publishes dashboard messages to MQTT.
type Publisher interface {
	// PublishStatus sends one device reading. Errors must not stop the caller.
	PublishStatus(msg StatusMessage) error

	// PublishNotification sends one user-facing notification.
	PublishNotification(msg NotificationMessage) error

	// Close disconnects from the broker.
	Close() error
}

// StatusMessage is a device reading taken at At.
// HasSetpoint is false when the device has not reported a setpoint.
type StatusMessage struct {
	At          time.Time
	Status      models.DeviceStatus
	HasSetpoint bool
}

// NotificationMessage is a notification raised at At.
type NotificationMessage struct {
	At      time.Time
	Level   string
	Message string
}

// Topic joins prefix and suffix with a single slash.
func Topic(prefix, suffix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

type statusPayload struct {
	Timestamp   string   `json:"timestamp"`
	Temperature float64  `json:"temperature"`
	Humidity    float64  `json:"humidity"`
	FogState    bool     `json:"fogState"`
	FanState    bool     `json:"fanState"`
	FanManual   bool     `json:"fanManual"`
	Setpoint    *float64 `json:"setpoint,omitempty"`
}

// FormatStatusPayload creates the JSON payload for a reading.
func FormatStatusPayload(msg StatusMessage) ([]byte, error) {
	var setpoint *float64
	if msg.HasSetpoint {
		sp := msg.Status.Setpoint
		setpoint = &sp
	}
	return json.Marshal(statusPayload{
		Timestamp:   msg.At.UTC().Format(time.RFC3339),
		Temperature: msg.Status.Temperature,
		Humidity:    msg.Status.Humidity,
		FogState:    msg.Status.FogState,
		FanState:    msg.Status.FanState,
		FanManual:   msg.Status.FanManual,
		Setpoint:    setpoint,
	})
}

type notificationPayload struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// FormatNotificationPayload creates the JSON payload for a notification.
func FormatNotificationPayload(msg NotificationMessage) ([]byte, error) {
	return json.Marshal(notificationPayload{
		Timestamp: msg.At.UTC().Format(time.RFC3339),
		Level:     msg.Level,
		Message:   msg.Message,
	})
}
