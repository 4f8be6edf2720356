package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entrega-cli/internal/config"
	"github.com/sells-group/entrega-cli/internal/llm"
	"github.com/sells-group/entrega-cli/internal/store"
)

// initStore opens and migrates the run history database.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initCompleter builds the configured provider client behind the request
// rate limit.
func initCompleter(ctx context.Context) (llm.Completer, error) {
	c, err := llm.NewCompleter(ctx, cfg, zap.L())
	if err != nil {
		return nil, err
	}
	return llm.Limited(c, llm.NewLimiter(cfg.LLM.RequestsPerSecond)), nil
}

// lookupEntrega returns the configuration of entrega n from the entregas
// file.
func lookupEntrega(n int) (config.Entrega, error) {
	entregas, err := config.LoadEntregas(cfg.EntregasFile)
	if err != nil {
		return config.Entrega{}, eris.Wrap(err, "load entregas")
	}
	return entregas.Get(n)
}
