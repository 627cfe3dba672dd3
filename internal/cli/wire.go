package cli

import (
	"net/http"

	"pdfsqueeze/internal/compression"
	"pdfsqueeze/internal/config"
	"pdfsqueeze/internal/database"
	"pdfsqueeze/internal/fetch"
	"pdfsqueeze/internal/server"
	"pdfsqueeze/internal/storage"
)

func newProber(cfg *config.Config) *compression.GhostscriptProbe {
	return compression.NewGhostscriptProbe(
		cfg.Engine.GhostscriptPath,
		cfg.Engine.GhostscriptCandidates,
		cfg.Engine.ProbeTimeout,
		cfg.Logger,
	)
}

func newSelector(cfg *config.Config, prober compression.Prober) *compression.Selector {
	native := func(bin compression.Binary) compression.Transcoder {
		return compression.NewNativeTranscoder(bin.Path, cfg.Engine.WorkDir, cfg.Engine.NativeTimeout, cfg.Logger)
	}

	opts := compression.SelectorOptions{
		FallbackOnNativeFailure: cfg.Engine.FallbackOnNativeFailure,
		MaxInputBytes:           cfg.Server.MaxUploadBytes,
	}
	if cfg.Engine.LosslessPrepass {
		opts.Prepass = compression.NewLosslessOptimizer()
	}

	return compression.NewSelector(prober, native, compression.NewPageRenderTranscoder(cfg.Logger), opts, cfg.Logger)
}

// newDependencies builds everything the HTTP boundary needs. The returned
// close func releases the statistics database.
func newDependencies(cfg *config.Config) (server.Dependencies, func(), error) {
	prober := newProber(cfg)
	client := &http.Client{}

	deps := server.Dependencies{
		Selector: newSelector(cfg, prober),
		Prober:   prober,
		Fetcher: fetch.New(client, fetch.Config{
			Attempts:       cfg.Fetch.Attempts,
			Delay:          cfg.Fetch.Delay,
			AttemptTimeout: cfg.Fetch.AttemptTimeout,
			MaxBytes:       cfg.Server.MaxUploadBytes,
		}, cfg.Logger),
		Cleaner: storage.NewCleaner(client, cfg.Storage.Endpoint, cfg.Storage.Token, cfg.Logger),
	}

	closeFn := func() {}
	if cfg.Stats.Enabled {
		db, err := database.NewDatabase(cfg.Stats.DatabasePath)
		if err != nil {
			return server.Dependencies{}, nil, err
		}
		deps.Stats = db
		closeFn = func() {
			if err := db.Close(); err != nil {
				cfg.Logger.Warn("Failed to close statistics database", "error", err)
			}
		}
	}

	return deps, closeFn, nil
}
