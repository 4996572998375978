package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"marketlens/internal/apperr"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub, publishTimeout: 5 * time.Second}
}

// WithPublishTimeout bounds how long Retry waits for the broker.
func (s *Service) WithPublishTimeout(d time.Duration) *Service {
	s.publishTimeout = d
	return s
}

// Record stores a failed task for later inspection.
func (s *Service) Record(ctx context.Context, topic string, payload []byte, cause error) error {
	j := newJob(topic, payload, cause)
	if err := s.repo.Save(ctx, j); err != nil {
		return apperr.Storage("job.Record", err)
	}
	return nil
}

// List returns up to limit failures. Non-positive limits use the default.
func (s *Service) List(ctx context.Context, limit int) ([]Job, error) {
	jobs, err := s.repo.List(ctx, clampLimit(limit))
	if err != nil {
		return nil, apperr.Storage("job.List", err)
	}
	return jobs, nil
}

// Retry republishes the job's payload to its topic and removes the record.
// The record stays when the broker does not accept the message.
func (s *Service) Retry(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("job.Retry", "job not found")
		}
		return nil, apperr.Storage("job.Retry", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(job.Topic, job.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, apperr.Transient("job.Retry", fmt.Errorf("publish: %w", err))
		}
	case <-time.After(s.publishTimeout):
		return nil, apperr.Transient("job.Retry", errors.New("timeout waiting for NSQ publish"))
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, apperr.Storage("job.Retry", err)
	}
	slog.InfoContext(ctx, "failed job requeued", "id", id, "topic", job.Topic)
	return job, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
