package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	config "github.com/bskysched/bskysched/configs"
	"github.com/bskysched/bskysched/internal/blob"
	"github.com/bskysched/bskysched/internal/bluesky"
	"github.com/bskysched/bskysched/internal/pipeline"
	"github.com/bskysched/bskysched/internal/store"
)

// The agent is the resident scheduler. It sweeps on a fixed interval against
// either a local SQLite file or the API server, depending on STORAGE_MODE.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	interval, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil {
		log.Fatalf("Invalid SWEEP_INTERVAL %q: %v", cfg.SweepInterval, err)
	}

	st, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Failed to set up storage: %v", err)
	}

	client := bluesky.NewClient(cfg.BlueskyPDS)
	runner := pipeline.NewRunner(pipeline.New(st, client), interval)

	runner.Start()
	log.Printf("Agent is running in %s mode, sweeping every %s", cfg.StorageMode, interval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down agent...")
	runner.Stop()
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StorageMode {
	case "remote":
		return store.NewRemote(cfg.APIBaseURL, cfg.APIUser, cfg.APIPass), nil
	default:
		blobs, err := blob.NewLocalStore(cfg.ImageDir)
		if err != nil {
			return nil, err
		}
		return store.NewSQLite(cfg.DatabasePath, blobs)
	}
}
