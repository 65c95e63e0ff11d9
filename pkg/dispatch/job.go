package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/telekom/form-relay/pkg/validation"
)

// Job is one submission travelling through the delivery pipeline. Only Attempt
// and NextAttemptAt change between attempts.
type Job struct {
	ID            string                `json:"id"`
	Submission    validation.Submission `json:"submission"`
	Attempt       int                   `json:"attempt"`
	CreatedAt     time.Time             `json:"createdAt"`
	NextAttemptAt time.Time             `json:"nextAttemptAt,omitempty"`
}

func NewJob(sub validation.Submission, now time.Time) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Submission: sub,
		CreatedAt:  now.UTC(),
	}
}
