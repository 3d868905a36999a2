package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/bookings-backend/pkg/bootstrap"
	"github.com/angelmondragon/bookings-backend/pkg/db"
	"github.com/angelmondragon/bookings-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", migrate.CmdUp, "up|down|redo|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory")
	name := flag.String("name", "", "migration name, for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS, for -cmd=version")
	flag.Parse()

	if handled := runOffline(*cmd, *dir, *name); handled {
		return
	}
	if *cmd == migrate.CmdVersion && *version == "" {
		fail("missing -version for version command")
	}

	proc := bootstrap.Start("migrate")
	ctx := proc.Logger.WithFields(context.Background(), map[string]any{
		"env": proc.Config.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// Opened directly: dev auto-migrate must not run ahead of the command.
	dbClient, err := db.New(ctx, proc.Config.DB, proc.Logger)
	proc.Must(ctx, "database", err)
	proc.OnClose("database", dbClient.Close)

	if dbClient.Dialect() != db.DialectPostgres {
		proc.Must(ctx, "database", fmt.Errorf("migrations target postgres; %s is configured", dbClient.Dialect()))
	}
	sqlDB, err := dbClient.DB().DB()
	proc.Must(ctx, "sql handle", err)

	runner, err := migrate.NewRunner(sqlDB, dbClient.Dialect(), *dir, proc.Logger)
	proc.Must(ctx, "migration runner", err)

	runErr := runner.Run(ctx, *cmd, *version)
	closeErr := proc.Close(ctx)
	if runErr != nil {
		fail("migrate %s failed: %v", *cmd, runErr)
	}
	if closeErr != nil {
		os.Exit(1)
	}
}

// runOffline handles the commands that only touch the filesystem.
func runOffline(cmd, dir, name string) bool {
	switch cmd {
	case "create":
		if name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(dir, name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created", path)
		return true
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			fail("invalid migrations:\n%v", err)
		}
		fmt.Println("migrations valid")
		return true
	}
	return false
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
