package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// FlexValue accepts a JSON number, string, or object and normalizes it to
// text. Devices send numbers, the legacy API sends strings, and NPK sensors
// send JSON objects; downstream code parses the text form it needs.
type FlexValue string

func (v *FlexValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FlexValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = FlexValue(n.String())
		return nil
	}
	// Composite payload, keep the raw JSON text.
	*v = FlexValue(data)
	return nil
}

func (v FlexValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

func (v FlexValue) Float64() (float64, error) {
	return strconv.ParseFloat(string(v), 64)
}

type JobKind int

const (
	JobUnknown JobKind = iota
	JobSingleReading
	JobDeviceReading
)

// IngestionJob is the queue wire contract between the gateways and the
// worker pool. Exactly one of SensorID or DeviceCode is set; Kind dispatches
// on that so the two paths stay explicit at the call sites.
type IngestionJob struct {
	SensorID   string               `json:"sensorId,omitempty"`
	Value      FlexValue            `json:"value,omitempty"`
	Unit       string               `json:"unit,omitempty"`
	DeviceCode string               `json:"deviceCode,omitempty"`
	Values     map[string]FlexValue `json:"values,omitempty"`
	ObservedAt *time.Time           `json:"observedAt,omitempty"`
	Batch      bool                 `json:"batch,omitempty"`
}

func (j IngestionJob) Kind() JobKind {
	switch {
	case j.SensorID != "":
		return JobSingleReading
	case j.DeviceCode != "" && len(j.Values) > 0:
		return JobDeviceReading
	default:
		return JobUnknown
	}
}

// Timestamp returns the observation time, defaulting to processing time when
// the device did not supply one.
func (j IngestionJob) Timestamp(now time.Time) time.Time {
	if j.ObservedAt != nil && !j.ObservedAt.IsZero() {
		return *j.ObservedAt
	}
	return now
}
