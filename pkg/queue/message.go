package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

// JobMessage is the envelope published for every accepted prediction job.
// Attempt is the attempt number this delivery starts from; the worker runs
// its bounded retries in process, so a fresh publish always carries 1.
type JobMessage struct {
	JobID      string    `json:"job_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DecodeJobMessage parses a queue payload back into a JobMessage.
func DecodeJobMessage(data []byte) (JobMessage, error) {
	var msg JobMessage
	if len(data) == 0 {
		return msg, errors.New("empty message payload")
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode job message: %w", err)
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return msg, errors.New("job message missing job_id")
	}
	if _, err := uuid.Parse(msg.JobID); err != nil {
		return msg, fmt.Errorf("job message has invalid job_id: %w", err)
	}
	if msg.Attempt < 1 {
		msg.Attempt = 1
	}
	return msg, nil
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// JobPublisher publishes prediction job envelopes to the predictions topic.
type JobPublisher struct {
	pub publisher
	now func() time.Time
}

// NewJobPublisher wraps a topic publisher handle.
func NewJobPublisher(pub *pubsub.Publisher) (*JobPublisher, error) {
	if pub == nil {
		return nil, errors.New("predictions publisher is required")
	}
	return &JobPublisher{pub: pub, now: time.Now}, nil
}

// PublishJob enqueues the first attempt for a job and waits for the broker
// acknowledgment.
func (p *JobPublisher) PublishJob(ctx context.Context, jobID uuid.UUID) error {
	msg := JobMessage{
		JobID:      jobID.String(),
		Attempt:    1,
		EnqueuedAt: p.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode job message: %w", err)
	}

	result := p.pub.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish job %s: %w", jobID, err)
	}
	return nil
}
