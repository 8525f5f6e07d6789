package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/SpiritGreen/mushroom-checker-backend/internal/worker"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// service wraps the consumer with dependency readiness checks so a worker
// with a broken database or queue exits instead of silently nacking forever.
type service struct {
	consumer *worker.Consumer
	logg     *logger.Logger
	deps     map[string]pinger
}

func newService(consumer *worker.Consumer, logg *logger.Logger, deps map[string]pinger) (*service, error) {
	if consumer == nil {
		return nil, errors.New("consumer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{consumer: consumer, logg: logg, deps: deps}, nil
}

func (s *service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.consumer.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker shutting down")
		// Receive returns once its context is cancelled; collect the result.
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if dep == nil {
			return fmt.Errorf("readiness dependency %s is nil", name)
		}
		if err := dep.Ping(ctx); err != nil {
			return fmt.Errorf("dependency %s not ready: %w", name, err)
		}
	}
	return nil
}
