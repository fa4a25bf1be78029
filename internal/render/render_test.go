package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/franzego/eventmailer/internal/models"
	"github.com/franzego/eventmailer/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(eventType string, payload string) models.Event {
	return models.Event{
		ID:         "evt-1",
		DeviceID:   "dev-1",
		EventType:  eventType,
		Payload:    json.RawMessage(payload),
		OccurredAt: time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC),
	}
}

func TestRender_Subject(t *testing.T) {
	device := models.Device{ID: "dev-1", Name: "Porch Cam"}

	subject, _, err := Render(testEvent(templates.TypePerson, `{}`), device, models.Owner{})
	require.NoError(t, err)
	assert.Equal(t, "👤 Person Detected: Porch Cam", subject)

	subject, _, err = Render(testEvent("unknown_type", `{}`), device, models.Owner{})
	require.NoError(t, err)
	assert.Equal(t, "🏠 Device Alert: Porch Cam", subject)
}

func TestRender_GreetingFallback(t *testing.T) {
	device := models.Device{Name: "Porch Cam"}

	_, html, err := Render(testEvent(templates.TypeMotion, `{}`), device, models.Owner{FirstName: "Ada"})
	require.NoError(t, err)
	assert.Contains(t, html, "Hi Ada,")

	_, html, err = Render(testEvent(templates.TypeMotion, `{}`), device, models.Owner{})
	require.NoError(t, err)
	assert.Contains(t, html, "Hi there,")
}

func TestRender_DeviceNameAndLocation(t *testing.T) {
	withLocation := models.Device{Name: "Garage Sensor", Location: "Back Garden"}
	_, html, err := Render(testEvent(templates.TypeMotion, `{}`), withLocation, models.Owner{})
	require.NoError(t, err)
	assert.Contains(t, html, "Garage Sensor")
	assert.Contains(t, html, "Motion was detected at Back Garden.")
	assert.Contains(t, html, "Garage Sensor (Back Garden)")

	withoutLocation := models.Device{Name: "Garage Sensor"}
	_, html, err = Render(testEvent(templates.TypeMotion, `{}`), withoutLocation, models.Owner{})
	require.NoError(t, err)
	assert.Contains(t, html, "Garage Sensor")
	assert.Contains(t, html, "Motion was detected.")
	assert.NotContains(t, html, "Back Garden")
	assert.NotContains(t, html, "Garage Sensor (")
}

func TestRender_MediaBlock(t *testing.T) {
	device := models.Device{Name: "Doorbell"}

	_, html, err := Render(testEvent(templates.TypeDoorbell,
		`{"media_url":"http://x/y.mp4","media_transcript":"hello"}`), device, models.Owner{})
	require.NoError(t, err)
	assert.Contains(t, html, `href="http://x/y.mp4"`)
	assert.Contains(t, html, "hello")
	assert.Contains(t, html, "Transcript:")

	_, html, err = Render(testEvent(templates.TypeDoorbell, `{}`), device, models.Owner{})
	require.NoError(t, err)
	assert.NotContains(t, html, "http://x/y.mp4")
	assert.NotContains(t, html, "View recording")
	assert.NotContains(t, html, "Transcript:")
}

func TestRender_TranscriptRequiresMediaURL(t *testing.T) {
	device := models.Device{Name: "Doorbell"}

	_, html, err := Render(testEvent(templates.TypeDoorbell, `{"media_transcript":"orphan words"}`), device, models.Owner{})
	require.NoError(t, err)
	assert.NotContains(t, html, "orphan words")
	assert.NotContains(t, html, "View recording")

	_, html, err = Render(testEvent(templates.TypeDoorbell, `{"media_url":"http://x/y.mp4"}`), device, models.Owner{})
	require.NoError(t, err)
	assert.Contains(t, html, "View recording")
	assert.NotContains(t, html, "Transcript:")
}

func TestRender_Message(t *testing.T) {
	device := models.Device{Name: "Hallway"}

	_, html, err := Render(testEvent(templates.TypeSound, `{"message":"Glass break suspected"}`), device, models.Owner{})
	require.NoError(t, err)
	assert.Contains(t, html, "Glass break suspected")

	_, html, err = Render(testEvent(templates.TypeSound, `not json`), device, models.Owner{})
	require.NoError(t, err)
	assert.NotContains(t, html, `class="message"`)
}

func TestRender_EscapesInterpolatedFields(t *testing.T) {
	device := models.Device{Name: `<script>alert(1)</script>`, Location: `"><img src=x>`}
	payload := `{"message":"<b>bold</b>","media_url":"javascript:alert(1)","media_transcript":"<i>hi</i>"}`

	subject, html, err := Render(testEvent(templates.TypeMotion, payload), device, models.Owner{FirstName: "<em>Eve</em>"})
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<img src=x>")
	assert.NotContains(t, html, "<b>bold</b>")
	assert.NotContains(t, html, "<i>hi</i>")
	assert.NotContains(t, html, "<em>Eve</em>")
	assert.NotContains(t, html, `href="javascript:`)
	assert.Contains(t, html, "&lt;script&gt;")
	// the subject is plain text and is not HTML-escaped
	assert.True(t, strings.HasSuffix(subject, device.Name))
}

func TestRender_HeaderColorFollowsPriority(t *testing.T) {
	device := models.Device{Name: "Door"}

	_, html, err := Render(testEvent(templates.TypeDoorOpened, `{}`), device, models.Owner{})
	require.NoError(t, err)
	assert.Contains(t, html, templates.PriorityHigh.Color())

	_, html, err = Render(testEvent(templates.TypeLowBattery, `{}`), device, models.Owner{})
	require.NoError(t, err)
	assert.Contains(t, html, templates.PriorityLow.Color())
}

func TestRender_EventTime(t *testing.T) {
	_, html, err := Render(testEvent(templates.TypeMotion, `{}`), models.Device{Name: "Cam"}, models.Owner{})
	require.NoError(t, err)
	assert.Contains(t, html, "Saturday, March 14, 2026 at 3:09 PM UTC")
}
