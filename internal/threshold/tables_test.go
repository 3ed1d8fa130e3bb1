package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingestion-service/internal/models"
)

func TestBoundsClassify(t *testing.T) {
	tables := DefaultTables()
	soil := tables.Sensor[models.SensorHumiditeSol]

	tests := []struct {
		name  string
		value float64
		want  models.HealthLevel
	}{
		{"far below critical low", 12, models.HealthCritique},
		{"at critical low", 15, models.HealthCritique},
		{"warning band low", 20, models.HealthSurveillance},
		{"nominal", 50, models.HealthOptimal},
		{"warning band high", 80, models.HealthSurveillance},
		{"at critical high", 85, models.HealthCritique},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, soil.Classify(tt.value))
		})
	}
}

func TestBoundsSeverity(t *testing.T) {
	soil := DefaultTables().Sensor[models.SensorHumiditeSol]

	sev, breached := soil.Severity(12)
	require.True(t, breached)
	assert.Equal(t, models.SeverityCritical, sev)

	sev, breached = soil.Severity(20)
	require.True(t, breached)
	assert.Equal(t, models.SeverityWarning, sev)

	_, breached = soil.Severity(50)
	assert.False(t, breached)
}

func TestDerivedBounds(t *testing.T) {
	b := DerivedBounds(20, 60)

	assert.Equal(t, 20.0, b.WarningLow)
	assert.Equal(t, 60.0, b.WarningHigh)
	assert.InDelta(t, 14.0, b.CriticalLow, 1e-9)
	assert.InDelta(t, 66.0, b.CriticalHigh, 1e-9)

	assert.Equal(t, models.HealthCritique, b.Classify(13))
	assert.Equal(t, models.HealthSurveillance, b.Classify(18))
	assert.Equal(t, models.HealthOptimal, b.Classify(40))
}

func TestChannelType(t *testing.T) {
	got, ok := ChannelType("soil_moisture")
	require.True(t, ok)
	assert.Equal(t, models.SensorHumiditeSol, got)

	got, ok = ChannelType(" Temperature ")
	require.True(t, ok)
	assert.Equal(t, models.SensorTemperature, got)

	_, ok = ChannelType("wind_speed")
	assert.False(t, ok)
}

func TestParseComposite(t *testing.T) {
	comp, ok := ParseComposite(`{"N": 20, "P": 80, "K": 200}`)
	require.True(t, ok)
	assert.Equal(t, 20.0, comp["nitrogen"])
	assert.Equal(t, 80.0, comp["phosphorus"])
	assert.Equal(t, 200.0, comp["potassium"])

	comp, ok = ParseComposite(`{"azote": 15, "phosphore": 30}`)
	require.True(t, ok)
	assert.Equal(t, 15.0, comp["nitrogen"])
	assert.Equal(t, 30.0, comp["phosphorus"])

	_, ok = ParseComposite("42.5")
	assert.False(t, ok)

	_, ok = ParseComposite(`{"unknown": 1}`)
	assert.False(t, ok)
}
