package events

import (
	"time"

	"github.com/google/uuid"
)

// Type is the terminal state a job reached.
type Type string

const (
	TypeDelivered Type = "delivered"
	TypeEscalated Type = "escalated"
	TypeDropped   Type = "dropped"
)

// Event describes how a notification job ended.
type Event struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	JobID       string            `json:"jobId"`
	Attempts    int               `json:"attempts"`
	SenderEmail string            `json:"senderEmail"`
	Timestamp   time.Time         `json:"timestamp"`
	Details     map[string]string `json:"details,omitempty"`
}

// NewEvent returns an event with a fresh ID.
func NewEvent(t Type, jobID string, attempts int, senderEmail string, at time.Time) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        t,
		JobID:       jobID,
		Attempts:    attempts,
		SenderEmail: senderEmail,
		Timestamp:   at.UTC(),
	}
}

// WithDetail attaches a key/value pair and returns the event.
func (e *Event) WithDetail(key, value string) *Event {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}
