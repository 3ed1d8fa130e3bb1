package models

import "time"

// SensorType enumerates the supported sensor kinds. Values are the legacy
// French identifiers persisted by the dashboard schema.
type SensorType string

const (
	SensorHumiditeSol SensorType = "HUMIDITE_SOL"
	SensorTemperature SensorType = "TEMPERATURE"
	SensorHumiditeAir SensorType = "HUMIDITE_AIR"
	SensorNPK         SensorType = "NPK"
	SensorPH          SensorType = "PH"
	SensorNiveauEau   SensorType = "NIVEAU_EAU"
)

type SensorStatus string

const (
	SensorActive      SensorStatus = "ACTIF"
	SensorInactive    SensorStatus = "INACTIF"
	SensorMaintenance SensorStatus = "MAINTENANCE"
)

// Accepting returns true when the sensor should accept new readings.
// Sensors under maintenance keep reporting so technicians can verify them.
func (s SensorStatus) Accepting() bool {
	return s == SensorActive || s == SensorMaintenance
}

// Sensor is a monitoring device attached to a Station and, through it, to a
// Parcel. ParcelID and OwnerID are resolved by the repository (direct parcel
// reference or sensor -> station -> parcel).
type Sensor struct {
	ID           string       `json:"id"`
	Type         SensorType   `json:"type"`
	Status       SensorStatus `json:"status"`
	StationID    *string      `json:"station_id,omitempty"`
	ParcelID     string       `json:"parcel_id,omitempty"`
	OwnerID      int          `json:"owner_id"`
	ThresholdMin *float64     `json:"threshold_min,omitempty"`
	ThresholdMax *float64     `json:"threshold_max,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Station is a physical gateway grouping sensors on a parcel, addressed by
// its device code on the MQTT side.
type Station struct {
	ID         string `json:"id"`
	DeviceCode string `json:"device_code"`
	ParcelID   string `json:"parcel_id"`
	OwnerID    int    `json:"owner_id"`
}

// SensorReading pairs a sensor with its single most recent measurement, if
// any. This is the unit the health aggregator works from.
type SensorReading struct {
	Sensor Sensor
	Latest *Measurement
}
