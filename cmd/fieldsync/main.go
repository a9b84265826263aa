// Command fieldsync opens the local database, brings the schema up to date,
// and reports sync status. The application layer embeds the same packages;
// this binary exists for provisioning and diagnostics.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andenet/fieldsync/internal/config"
	"github.com/andenet/fieldsync/internal/db"
	"github.com/andenet/fieldsync/internal/logging"
	"github.com/andenet/fieldsync/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fieldsync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.LogFile != "" {
		logging.InitFile(cfg.LogFile, cfg.LogLevel)
	} else {
		logging.Init(os.Stderr, cfg.LogLevel)
	}

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.InitSchema(); err != nil {
		return err
	}
	if cfg.MigrationsDir != "" {
		migrator := db.NewMigrator(database, cfg.MigrationsDir)
		if err := migrator.Initialize(); err != nil {
			return err
		}
		if err := migrator.Up(); err != nil {
			return err
		}
	}

	engine, err := sync.NewEngine(database)
	if err != nil {
		return err
	}

	pending, err := engine.PendingUploads(context.Background())
	if err != nil {
		return err
	}
	logging.Info("fieldsync ready", logging.Fields{
		"data_dir":  cfg.DataDir,
		"device_id": cfg.DeviceID,
		"pending":   pending,
	})
	fmt.Printf("device %s: %d change(s) pending upload\n", cfg.DeviceID, pending)
	return nil
}
