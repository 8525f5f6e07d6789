// Package worker executes queued prediction jobs: it loads the model bundle,
// preprocesses the stored input, runs inference, and drives the job to its
// terminal status. Attempts are bounded and backed off; exhaustion marks the
// job failed without refunding the admission charge.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/artifacts"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/infer"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/preprocess"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/tabular"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/config"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/enums"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/metrics"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/queue"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

type jobService interface {
	GetByID(ctx context.Context, jobID uuid.UUID) (*models.PredictionJob, error)
	UpdateResult(ctx context.Context, jobID uuid.UUID, result []string, status enums.JobStatus) error
}

type catalogService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ModelDescriptor, error)
}

type bundleLoader interface {
	Load(ctx context.Context, descriptor *models.ModelDescriptor) (*artifacts.Bundle, error)
}

// Consumer processes prediction job messages from the queue.
type Consumer struct {
	subscription *pubsub.Subscriber
	jobs         jobService
	catalog      catalogService
	store        bundleLoader
	metrics      *metrics.WorkerMetrics
	cfg          config.WorkerConfig
	logg         *logger.Logger
	now          func() time.Time
}

// NewConsumer constructs a consumer that watches the predictions subscription.
func NewConsumer(
	subscription *pubsub.Subscriber,
	jobs jobService,
	catalog catalogService,
	store bundleLoader,
	workerMetrics *metrics.WorkerMetrics,
	cfg config.WorkerConfig,
	logg *logger.Logger,
) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("predictions subscription is required")
	}
	if jobs == nil {
		return nil, errors.New("jobs service is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog service is required")
	}
	if store == nil {
		return nil, errors.New("artifact store is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	return &Consumer{
		subscription: subscription,
		jobs:         jobs,
		catalog:      catalog,
		store:        store,
		metrics:      workerMetrics,
		cfg:          cfg,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	envelope, err := queue.DecodeJobMessage(msg.Data)
	if err != nil {
		logCtx := c.logg.WithField(ctx, "message_id", msg.ID)
		c.logg.Error(logCtx, "dropping undecodable job message", err)
		return processResult{ack: true}
	}
	return c.Execute(ctx, envelope)
}

// Execute runs a decoded job envelope to completion. Exposed for the worker
// binary's readiness probe tests; Run is the production entry point.
func (c *Consumer) Execute(ctx context.Context, envelope queue.JobMessage) processResult {
	jobID := uuid.MustParse(envelope.JobID)
	logCtx := c.logg.WithJobID(ctx, envelope.JobID)

	job, err := c.jobs.GetByID(logCtx, jobID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			c.logg.Warn(logCtx, "job row not found")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "failed to load job", err)
		return processResult{nack: true}
	}

	// At-least-once delivery: a redelivered message for a finished job is
	// acked without rerunning inference or touching the ledger.
	if job.Status.IsTerminal() {
		c.logg.Info(logCtx, "job already in terminal status")
		return processResult{ack: true}
	}

	descriptor, err := c.catalog.Get(logCtx, job.ModelID)
	if err != nil {
		if isRetryable(err) {
			c.logg.Error(logCtx, "failed to resolve model descriptor", err)
			return processResult{nack: true}
		}
		c.logg.Error(logCtx, "job references unknown model", err)
		return c.fail(logCtx, jobID, "")
	}
	logCtx = c.logg.WithField(logCtx, "model", descriptor.Name)

	started := c.now()
	labels, err := c.runWithRetry(logCtx, envelope, job, descriptor)
	if err != nil {
		c.logg.Error(logCtx, "prediction attempts exhausted", err)
		return c.fail(logCtx, jobID, descriptor.Name)
	}

	if err := c.jobs.UpdateResult(logCtx, jobID, labels, enums.JobStatusCompleted); err != nil {
		c.logg.Error(logCtx, "failed to persist job result", err)
		return processResult{nack: true}
	}

	c.metrics.IncSuccess(descriptor.Name)
	c.metrics.ObserveDuration(descriptor.Name, c.now().Sub(started))
	c.logg.Info(logCtx, "prediction job completed")
	return processResult{ack: true}
}

func (c *Consumer) runWithRetry(
	ctx context.Context,
	envelope queue.JobMessage,
	job *models.PredictionJob,
	descriptor *models.ModelDescriptor,
) ([]string, error) {
	remaining := c.cfg.MaxAttempts - envelope.Attempt
	if remaining < 0 {
		remaining = 0
	}

	attempt := envelope.Attempt
	backoff := retry.WithMaxRetries(uint64(remaining), retry.NewExponential(c.cfg.BackoffBase))

	var labels []string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > envelope.Attempt {
			c.metrics.IncRetry(descriptor.Name)
		}
		attemptCtx := c.logg.WithField(ctx, "attempt", attempt)
		attempt++

		result, err := c.runAttempt(attemptCtx, job, descriptor)
		if err != nil {
			if isRetryable(err) {
				c.logg.Warn(attemptCtx, fmt.Sprintf("prediction attempt failed: %v", err))
				return retry.RetryableError(err)
			}
			return err
		}
		labels = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return labels, nil
}

func (c *Consumer) runAttempt(ctx context.Context, job *models.PredictionJob, descriptor *models.ModelDescriptor) ([]string, error) {
	bundle, err := c.store.Load(ctx, descriptor)
	if err != nil {
		return nil, err
	}

	var rows []tabular.Row
	if err := json.Unmarshal(job.Input, &rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stored input rows")
	}

	matrix, err := preprocess.Transform(rows, bundle)
	if err != nil {
		return nil, err
	}

	inferCtx := ctx
	if c.cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		inferCtx, cancel = context.WithTimeout(ctx, c.cfg.InferenceTimeout)
		defer cancel()
	}
	return infer.Predict(inferCtx, bundle, matrix)
}

func (c *Consumer) fail(ctx context.Context, jobID uuid.UUID, model string) processResult {
	if err := c.jobs.UpdateResult(ctx, jobID, nil, enums.JobStatusFailed); err != nil {
		c.logg.Error(ctx, "failed to mark job failed", err)
		return processResult{nack: true}
	}
	c.metrics.IncFailure(model)
	c.logg.Info(ctx, "prediction job failed")
	return processResult{ack: true}
}

// isRetryable keeps broken bundles and bad stored input from burning the
// remaining attempts: those cannot heal on their own.
func isRetryable(err error) bool {
	if typed := pkgerrors.As(err); typed != nil {
		return pkgerrors.MetadataFor(typed.Code()).Retryable
	}
	return true
}
