package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// a Job is the envelope a unit of asynchronous work travels in on the
// queue. Attempts rides inside the envelope so retries survive worker
// restarts.

type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
}

//  creation of a new job with defaults.

func New(t JobType, payload json.RawMessage) Job {
	return Job{
		ID:          uuid.NewString(),
		Type:        t,
		Payload:     payload,
		Attempts:    0,
		MaxAttempts: 5,
		EnqueuedAt:  time.Now().UTC(),
	}
}
