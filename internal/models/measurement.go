package models

import "time"

// Measurement is one immutable timestamped reading. Value is kept as text:
// scalar sensors store a number, composite sensors (NPK) store a JSON object
// keyed by sub-element. Rows are append-only; a bad reading is superseded by
// a newer one, never edited.
type Measurement struct {
	ID        int64     `json:"id"`
	SensorID  string    `json:"sensor_id"`
	Value     string    `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}
