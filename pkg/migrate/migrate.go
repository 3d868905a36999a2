package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/bookings-backend/pkg/db"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// Commands understood by Runner.Run.
const (
	CmdUp      = "up"
	CmdDown    = "down"
	CmdRedo    = "redo"
	CmdStatus  = "status"
	CmdVersion = "version"
)

// Runner applies the SQL migrations in a directory through a goose provider.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

// NewRunner validates dir and binds it to sqlDB. dialect is one of the db.Dialect* names.
func NewRunner(sqlDB *sql.DB, dialect, dir string, logg *logger.Logger) (*Runner, error) {
	if sqlDB == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	if err := ValidateDir(dir); err != nil {
		return nil, err
	}

	var gooseDialect goose.Dialect
	switch dialect {
	case db.DialectPostgres:
		gooseDialect = goose.DialectPostgres
	case db.DialectSQLite:
		gooseDialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	provider, err := goose.NewProvider(gooseDialect, sqlDB, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("creating goose provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Run executes one command. CmdVersion migrates up or down to target,
// which is a YYYYMMDDHHMMSS version; other commands ignore it.
func (r *Runner) Run(ctx context.Context, command, target string) error {
	switch command {
	case CmdUp:
		results, err := r.provider.Up(ctx)
		r.logResults(ctx, results...)
		return wrap(command, err)
	case CmdDown:
		res, err := r.provider.Down(ctx)
		r.logResults(ctx, res)
		return wrap(command, err)
	case CmdRedo:
		res, err := r.provider.Down(ctx)
		r.logResults(ctx, res)
		if err != nil {
			return wrap(command, err)
		}
		res, err = r.provider.UpByOne(ctx)
		r.logResults(ctx, res)
		return wrap(command, err)
	case CmdStatus:
		return r.status(ctx)
	case CmdVersion:
		return r.migrateTo(ctx, target)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

// Version reports the latest applied migration, zero when none.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	return r.provider.GetDBVersion(ctx)
}

func (r *Runner) migrateTo(ctx context.Context, target string) error {
	if target == "" {
		return errors.New("target version is required")
	}
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == version:
		return nil
	case current < version:
		results, err = r.provider.UpTo(ctx, version)
	default:
		results, err = r.provider.DownTo(ctx, version)
	}
	r.logResults(ctx, results...)
	return wrap(CmdVersion, err)
}

func (r *Runner) status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return wrap(CmdStatus, err)
	}
	for _, st := range statuses {
		fields := map[string]any{
			"version": st.Source.Version,
			"file":    st.Source.Path,
			"state":   string(st.State),
		}
		if !st.AppliedAt.IsZero() {
			fields["applied_at"] = st.AppliedAt
		}
		r.info(r.with(ctx, fields), "migration status")
	}
	return nil
}

func (r *Runner) logResults(ctx context.Context, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		ctx := r.with(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			if r.logg != nil {
				r.logg.Error(ctx, "migration failed", res.Error)
			}
			continue
		}
		r.info(ctx, "migration applied")
	}
}

func (r *Runner) with(ctx context.Context, fields map[string]any) context.Context {
	if r.logg == nil {
		return ctx
	}
	return r.logg.WithFields(ctx, fields)
}

func (r *Runner) info(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Info(ctx, msg)
	}
}

func wrap(command string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}
