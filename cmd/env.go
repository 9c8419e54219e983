package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/pipeline"
	"github.com/sells-group/dealflow-cli/internal/store"
)

// appEnv bundles the store and pipeline shared by the stage commands.
type appEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases the store.
func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "dealflow.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates store config, opens the store and migrates it.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline opens the store and builds the pipeline for mode.
func initPipeline(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &appEnv{Store: st, Pipeline: p}, nil
}

// loadSettings returns the stored settings for userID.
func loadSettings(ctx context.Context, st store.Store, userID string) (*model.Settings, error) {
	if userID == "" {
		return nil, eris.New("--user is required")
	}
	s, err := st.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Errorf("no settings for user %q (run settings import first)", userID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "load settings")
	}
	return s, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
