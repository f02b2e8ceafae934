package nats

import (
	"testing"
	"time"

	"ai-tutoring-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTripsEnvelope(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	data := []byte(`{"type":"EXERCISES_APPROVED","occurred_at":"2025-01-02T03:04:05Z","data":{"job_id":"j-1","count":2}}`)

	event, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, events.ExercisesApproved, event.EventType())
	assert.Equal(t, at, event.Timestamp())
	assert.Equal(t, "j-1", event.Payload()["job_id"])
	assert.Equal(t, float64(2), event.Payload()["count"])

	_, err = Decode([]byte("nope"))
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "tutoring.DIAGNOSIS_READY", Subject(events.DiagnosisReady))
}
