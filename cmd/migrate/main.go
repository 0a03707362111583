package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/surveycash/surveycash-backend/pkg/config"
	"github.com/surveycash/surveycash-backend/pkg/db"
	"github.com/surveycash/surveycash-backend/pkg/logger"
	"github.com/surveycash/surveycash-backend/pkg/migrate"
)

type flags struct {
	cmd      string
	dir      string
	name     string
	version  string
	embedded bool
}

func main() {
	_ = godotenv.Load()

	var f flags
	flag.StringVar(&f.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&f.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.BoolVar(&f.embedded, "embedded", false, "use the migrations compiled into this binary")
	flag.StringVar(&f.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&f.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", f.cmd, err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	opts := migrate.Options{}
	if f.embedded {
		opts.FS = migrate.Embedded
		f.dir = migrate.EmbeddedDir
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"cmd":      f.cmd,
		"dir":      f.dir,
		"embedded": f.embedded,
	})

	// create and validate only touch files; everything else needs a database.
	switch f.cmd {
	case "create":
		if f.name == "" {
			return errors.New("-name is required")
		}
		if f.embedded {
			return errors.New("-embedded cannot be combined with create")
		}
		path, err := migrate.CreateSQLMigration(f.dir, f.name)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		fmt.Println(path)
		return nil
	case "validate":
		if f.embedded {
			err = migrate.ValidateFS(migrate.Embedded, migrate.EmbeddedDir)
		} else {
			err = migrate.ValidateDir(f.dir)
		}
		if err != nil {
			return err
		}
		logg.Info(ctx, "migrations valid")
		return nil
	case "up", "down", "status":
	case "version":
		if f.version == "" {
			return errors.New("-version is required")
		}
	default:
		return fmt.Errorf("unknown command %q", f.cmd)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return err
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}

	if f.cmd == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, f.dir, f.version, opts)
	} else {
		err = migrate.Run(ctx, sqlDB, f.dir, f.cmd, opts)
	}
	if err != nil {
		logg.Error(ctx, "goose failed", err)
		return err
	}
	logg.Info(ctx, "migrate finished")
	return nil
}
