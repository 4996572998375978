// Package job keeps index tasks the worker gave up on so an operator can
// inspect and republish them.
package job

import (
	"context"
	"encoding/json"
	"time"
)

const (
	// MaxErrorLength caps the stored failure message, in runes.
	MaxErrorLength = 2000

	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Job is a background task that failed and can be republished.
type Job struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}

type Repository interface {
	Save(ctx context.Context, job *Job) error
	List(ctx context.Context, limit int) ([]Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// newJob builds the record for a failed task. Payloads that are not JSON
// are stored as a JSON string so the raw bytes survive.
func newJob(topic string, payload []byte, cause error) *Job {
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(payload))
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if r := []rune(msg); len(r) > MaxErrorLength {
		msg = string(r[:MaxErrorLength])
	}

	return &Job{Topic: topic, Payload: payload, Error: msg}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}
