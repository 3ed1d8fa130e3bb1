package models

import "time"

type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

type AlertCategory string

const (
	CategorySensorThreshold AlertCategory = "sensor-threshold"
	CategoryOfflineSensor   AlertCategory = "offline-sensor"
	CategorySystem          AlertCategory = "system"
)

type AlertStatus string

const (
	AlertNew      AlertStatus = "new"
	AlertRead     AlertStatus = "read"
	AlertResolved AlertStatus = "resolved"
	AlertIgnored  AlertStatus = "ignored"
)

// Alert is a derived event produced when a measurement breaches thresholds or
// a sensor goes silent. Delivery flags record which channels accepted it.
type Alert struct {
	ID        string         `json:"id"`
	UserID    int            `json:"user_id"`
	ParcelID  *string        `json:"parcel_id,omitempty"`
	SensorID  *string        `json:"sensor_id,omitempty"`
	Category  AlertCategory  `json:"category"`
	Severity  AlertSeverity  `json:"severity"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Status    AlertStatus    `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	Delivery  DeliveryResult `json:"delivery"`
}

// DeliveryResult holds per-channel delivery outcomes for one alert.
type DeliveryResult struct {
	Email     bool `json:"email"`
	Telegram  bool `json:"telegram"`
	Websocket bool `json:"websocket"`
}

// UserContact is the address book entry the dispatcher needs for a user.
type UserContact struct {
	UserID         int    `json:"user_id"`
	Email          string `json:"email"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}
