package threshold

import (
	"strings"

	"ingestion-service/internal/models"
)

// Bounds is a 4-band threshold: values at or beyond the critical bounds are
// critical, values at or beyond the warning bounds are warnings, everything
// between the warning bounds is nominal.
type Bounds struct {
	WarningLow   float64
	WarningHigh  float64
	CriticalLow  float64
	CriticalHigh float64
}

// Severity classifies a scalar against the bands. The second return is false
// when the value breaches nothing.
func (b Bounds) Severity(v float64) (models.AlertSeverity, bool) {
	if v <= b.CriticalLow || v >= b.CriticalHigh {
		return models.SeverityCritical, true
	}
	if v <= b.WarningLow || v >= b.WarningHigh {
		return models.SeverityWarning, true
	}
	return "", false
}

// Classify maps a scalar onto the parcel health scale.
func (b Bounds) Classify(v float64) models.HealthLevel {
	switch sev, breached := b.Severity(v); {
	case !breached:
		return models.HealthOptimal
	case sev == models.SeverityCritical:
		return models.HealthCritique
	default:
		return models.HealthSurveillance
	}
}

// DerivedBounds builds a 4-band threshold from a sensor's configured min/max,
// placing the critical bounds 15% of the configured range beyond each bound.
func DerivedBounds(min, max float64) Bounds {
	margin := 0.15 * (max - min)
	return Bounds{
		WarningLow:   min,
		WarningHigh:  max,
		CriticalLow:  min - margin,
		CriticalHigh: max + margin,
	}
}

// Tables carries the per-deployment threshold configuration: default bands
// per sensor type and per NPK sub-element. Injected rather than global so
// tests and deployments can tune them.
type Tables struct {
	Sensor   map[models.SensorType]Bounds
	Nutrient map[string]Bounds
}

// DefaultTables returns the stock agronomic bands used when a sensor carries
// no explicit bounds.
func DefaultTables() Tables {
	return Tables{
		Sensor: map[models.SensorType]Bounds{
			models.SensorHumiditeSol: {WarningLow: 25, WarningHigh: 75, CriticalLow: 15, CriticalHigh: 85},
			models.SensorTemperature: {WarningLow: 10, WarningHigh: 35, CriticalLow: 2, CriticalHigh: 42},
			models.SensorHumiditeAir: {WarningLow: 30, WarningHigh: 80, CriticalLow: 20, CriticalHigh: 90},
			models.SensorPH:          {WarningLow: 5.5, WarningHigh: 7.5, CriticalLow: 4.5, CriticalHigh: 8.5},
			models.SensorNiveauEau:   {WarningLow: 20, WarningHigh: 80, CriticalLow: 10, CriticalHigh: 95},
		},
		Nutrient: map[string]Bounds{
			"nitrogen":   {WarningLow: 10, WarningHigh: 80, CriticalLow: 5, CriticalHigh: 120},
			"phosphorus": {WarningLow: 15, WarningHigh: 100, CriticalLow: 8, CriticalHigh: 150},
			"potassium":  {WarningLow: 50, WarningHigh: 150, CriticalLow: 30, CriticalHigh: 250},
		},
	}
}

// channelTypes maps device message channel names onto sensor types.
var channelTypes = map[string]models.SensorType{
	"soil_moisture": models.SensorHumiditeSol,
	"humidite_sol":  models.SensorHumiditeSol,
	"temperature":   models.SensorTemperature,
	"humidity":      models.SensorHumiditeAir,
	"humidite_air":  models.SensorHumiditeAir,
	"npk":           models.SensorNPK,
	"ph":            models.SensorPH,
	"water_level":   models.SensorNiveauEau,
	"niveau_eau":    models.SensorNiveauEau,
}

// ChannelType resolves a device channel name to a sensor type.
func ChannelType(name string) (models.SensorType, bool) {
	t, ok := channelTypes[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}
