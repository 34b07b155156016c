package main

import (
	"errors"
	"net/http"
	"os"

	"github.com/agentworkforce/relaysync/internal/config"
	"github.com/agentworkforce/relaysync/internal/httpapi"
	"github.com/agentworkforce/relaysync/internal/logger"
	"github.com/agentworkforce/relaysync/internal/relaysync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New("relaysync-server", cfg.LogLevel)

	store, err := relaysync.BuildStoreFromDSN(cfg.StoreDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open durable store")
	}
	defer func() {
		_ = store.Close()
	}()

	progress := relaysync.NewJobProgressStore(store, cfg.JobFreshness)
	failures := relaysync.NewFailureLog(store, cfg.FailureLogLimit)

	server := httpapi.NewServer(progress, failures, nil, nil, httpapi.ServerConfig{
		AuthToken: cfg.HTTPAuthToken,
		Logger:    log,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("relaysync status api listening")
	if err := http.ListenAndServe(cfg.HTTPAddr, server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
