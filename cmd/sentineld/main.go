// Command sentineld is the engine's single entry point, grounded on the
// teacher's main.go init sequence: load config, set up structured logging,
// build every component through the Supervisor, run until signaled.
package main

import (
	"log"

	"sentineld/internal/config"
	"sentineld/internal/logging"
	"sentineld/internal/supervisor"
)

func main() {
	cfg := config.Load()

	logging.SetDefault(logging.New(&logging.Config{
		Level:       cfg.Logging.Level,
		Output:      cfg.Logging.Output,
		Component:   "sentineld",
		IncludeFile: cfg.Logging.IncludeFile,
		JSONFormat:  cfg.Logging.JSONFormat,
	}))

	sup, err := supervisor.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize supervisor: %v", err)
	}

	if err := sup.Run(); err != nil {
		log.Fatalf("supervisor exited with error: %v", err)
	}
}
