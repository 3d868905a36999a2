package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	PubSub   pinger
	Consumer consumer
}

// Service checks dependencies once, then runs the voucher consumer until it
// stops or ctx is canceled.
type Service struct {
	logg     *logger.Logger
	deps     []dependency
	consumer consumer
}

type dependency struct {
	name string
	ping func(context.Context) error
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("voucher consumer is required")
	}
	return &Service{
		logg: params.Logger,
		deps: []dependency{
			{name: "database", ping: params.DB.Ping},
			{name: "redis", ping: params.Redis.Ping},
			{name: "pubsub", ping: params.PubSub.Ping},
		},
		consumer: params.Consumer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "voucher worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	err := s.consumer.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.logg.Info(ctx, "voucher worker context canceled")
			return ctxErr
		}
		return err
	default:
		s.logg.Error(ctx, "voucher consumer stopped unexpectedly", err)
		return err
	}
}
