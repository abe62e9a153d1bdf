// Command triagestub serves the stub intake backend for local development.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mediflow/triagecore/internal/stubserver"
	"github.com/mediflow/triagecore/internal/util"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	server := &http.Server{
		Addr:              util.ParseStringEnv("TRIAGE_STUB_ADDR", ":8090"),
		Handler:           stubserver.NewRouter(),
		ReadHeaderTimeout: util.ParseDurationEnv("TRIAGE_STUB_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:      util.ParseDurationEnv("TRIAGE_STUB_WRITE_TIMEOUT", 30*time.Second),
	}
	slog.Info("triagestub listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("triagestub failed", "error", err)
		os.Exit(1)
	}
}
