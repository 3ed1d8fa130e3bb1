package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobKind(t *testing.T) {
	assert.Equal(t, JobSingleReading, IngestionJob{SensorID: "s1", Value: "1"}.Kind())
	assert.Equal(t, JobDeviceReading, IngestionJob{
		DeviceCode: "STA-1",
		Values:     map[string]FlexValue{"temperature": "20"},
	}.Kind())
	assert.Equal(t, JobUnknown, IngestionJob{}.Kind())
	assert.Equal(t, JobUnknown, IngestionJob{DeviceCode: "STA-1"}.Kind())
}

func TestFlexValueAcceptsNumberStringAndObject(t *testing.T) {
	var job IngestionJob

	require.NoError(t, json.Unmarshal([]byte(`{"sensorId":"s1","value":42.5,"unit":"%"}`), &job))
	assert.Equal(t, FlexValue("42.5"), job.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"sensorId":"s1","value":"12"}`), &job))
	assert.Equal(t, FlexValue("12"), job.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"sensorId":"npk","value":{"N":20,"P":80,"K":200}}`), &job))
	assert.JSONEq(t, `{"N":20,"P":80,"K":200}`, string(job.Value))
}

func TestJobTimestampDefaultsToProcessingTime(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, now, IngestionJob{}.Timestamp(now))

	observed := now.Add(-time.Hour)
	job := IngestionJob{ObservedAt: &observed}
	assert.Equal(t, observed, job.Timestamp(now))
}

func TestWorstOf(t *testing.T) {
	assert.Equal(t, HealthCritique, WorstOf(HealthOptimal, HealthCritique))
	assert.Equal(t, HealthCritique, WorstOf(HealthCritique, HealthSurveillance))
	assert.Equal(t, HealthSurveillance, WorstOf(HealthSurveillance, HealthOptimal))
	assert.Equal(t, HealthOptimal, WorstOf(HealthOptimal, HealthOptimal))
}
