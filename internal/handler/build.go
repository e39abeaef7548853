package handler

import (
	"context"
	"fmt"

	"cloud.google.com/go/datastore"
	"github.com/tckz/count-transaction/internal/config"
	"github.com/tckz/count-transaction/internal/counter"
	"github.com/tckz/count-transaction/internal/log"
	"go.uber.org/zap"
)

// Build wires the logger, the datastore client and the counter for cfg.
// The returned client lives as long as the handler.
func Build(ctx context.Context, cfg *config.Config, name string) (*Handler, *datastore.Client, error) {
	zl, err := log.NewLogger(log.WithLogLevel(cfg.LogLevel), log.WithCloudLogging())
	if err != nil {
		return nil, nil, fmt.Errorf("log.NewLogger: %w", err)
	}
	logger := zl.Sugar().With(zap.String("function", name))

	cl, err := datastore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("datastore.NewClient: %w", err)
	}

	store := counter.NewDatastoreStore(cl, cfg.MaxAttempts)
	return New(counter.NewTxnCounter(store, counter.Key(cfg.Namespace), logger), logger), cl, nil
}
