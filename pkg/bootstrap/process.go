// Package bootstrap holds the startup and shutdown sequence shared by the
// service binaries.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/db"
	"github.com/angelmondragon/bookings-backend/pkg/instance"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/migrate"
	"github.com/angelmondragon/bookings-backend/pkg/pubsub"
	"github.com/angelmondragon/bookings-backend/pkg/redis"
)

var exit = os.Exit

// Process is one running binary: its config, its logger and the resources
// it has opened, which Close releases in reverse order.
type Process struct {
	Kind     string
	Instance string
	Config   *config.Config
	Logger   *logger.Logger

	closers []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

// Load reads .env when present, parses the config and builds the
// process logger at the configured level.
func Load(kind string) (*Process, error) {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Debug(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = kind

	return &Process{
		Kind:     kind,
		Instance: instance.GetID(),
		Config:   cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}, nil
}

// Start is Load that exits the process on failure.
func Start(kind string) *Process {
	p, err := Load(kind)
	if err != nil {
		logger.New(logger.Options{ServiceName: kind}).Error(context.Background(), "failed to load config", err)
		exit(1)
		return nil
	}
	return p
}

// Must exits after logging when err is non-nil. Resources opened so far are
// closed first.
func (p *Process) Must(ctx context.Context, what string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(ctx, fmt.Sprintf("%s unavailable", what), err)
	_ = p.Close(ctx)
	exit(1)
}

// OnClose registers fn to run during Close.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, namedCloser{name: name, fn: fn})
}

// Close releases resources newest first and reports every failure.
func (p *Process) Close(ctx context.Context) error {
	var errs error
	for _, c := range slices.Backward(p.closers) {
		if err := c.fn(); err != nil {
			p.Logger.Error(p.Logger.WithField(ctx, "resource", c.name), "close failed", err)
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	p.closers = nil
	return errs
}

// Database opens the database and applies dev auto-migrations.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	p.Must(ctx, "database", err)
	p.OnClose("database", client.Close)
	p.Must(ctx, "dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Logger, client))
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Must(ctx, "redis", err)
	p.OnClose("redis", client.Close)
	return client
}

func (p *Process) PubSub(ctx context.Context, required pubsub.Requirements) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, required, p.Logger)
	p.Must(ctx, "pubsub", err)
	p.OnClose("pubsub", client.Close)
	return client
}

// RunContext is canceled on SIGINT or SIGTERM and carries the process
// identity fields plus extra.
func (p *Process) RunContext(extra map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
		"instance":    p.Instance,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return p.Logger.WithFields(ctx, fields), stop
}
