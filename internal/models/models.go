package models

import (
	"encoding/json"
	"time"
)

// Event is a row of the events table awaiting (or past) email notification.
type Event struct {
	ID         string          `json:"id"`
	DeviceID   string          `json:"device_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	EmailSent  bool            `json:"email_sent"`
}

// EventPayload holds the payload keys the mailer understands. Unknown keys are ignored.
type EventPayload struct {
	Message         string `json:"message,omitempty"`
	MediaURL        string `json:"media_url,omitempty"`
	MediaTranscript string `json:"media_transcript,omitempty"`
}

// DecodePayload parses the free-form payload. A missing or malformed payload
// yields an empty EventPayload so that rendering still succeeds.
func (e Event) DecodePayload() EventPayload {
	var p EventPayload
	if len(e.Payload) == 0 {
		return p
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return EventPayload{}
	}
	return p
}

type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	OwnerID  string `json:"owner_id"`
}

// Owner is the identity resolved from the user directory. Both fields may be empty.
type Owner struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type Email struct {
	To      string
	Subject string
	HTML    string
}

// Stages at which a single event can fail.
const (
	StageDevice   = "device_lookup"
	StageOwner    = "owner_lookup"
	StageEmail    = "missing_email"
	StageRender   = "render"
	StageSend     = "send"
	StageMarkSent = "mark_sent"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type EventResult struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
	Stage   string `json:"stage,omitempty"`
	Error   string `json:"error,omitempty"`
	To      string `json:"to,omitempty"`
}

type BatchResult struct {
	Processed  int           `json:"processed"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Results    []EventResult `json:"results,omitempty"`
}

// DeliveryStatus is the per-event record kept in redis after every attempt.
type DeliveryStatus struct {
	EventID   string    `json:"event_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SentMessage is published on the broker once an event is marked sent.
type SentMessage struct {
	EventID       string    `json:"event_id"`
	DeviceID      string    `json:"device_id"`
	EventType     string    `json:"event_type"`
	Recipient     string    `json:"recipient"`
	SentAt        time.Time `json:"sent_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

type WebhookPayload struct {
	Table  string        `json:"table" binding:"required"`
	Type   string        `json:"type" binding:"required"`
	Record WebhookRecord `json:"record"`
}

type WebhookRecord struct {
	EventID string `json:"event_id"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
}

type ProcessResponse struct {
	Success    bool          `json:"success"`
	Processed  int           `json:"processed"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Message    string        `json:"message"`
	Results    []EventResult `json:"results,omitempty"`
}

type WebhookResponse struct {
	Success bool         `json:"success"`
	Result  *EventResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}
