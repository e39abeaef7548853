package counter

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/datastore"
	"go.uber.org/zap"
)

type Counter interface {
	// Up increments the counter and returns the committed value.
	Up(ctx context.Context) (int64, error)
	// Get returns the current value, 0 when the counter does not exist yet.
	Get(ctx context.Context) (int64, error)
}

var _ Counter = (*TxnCounter)(nil)

// TxnCounter keeps the count in a single entity and increments it with a
// read-modify-write inside one transaction.
type TxnCounter struct {
	store  Store
	key    *datastore.Key
	logger *zap.SugaredLogger
}

func NewTxnCounter(store Store, key *datastore.Key, logger *zap.SugaredLogger) *TxnCounter {
	return &TxnCounter{
		store:  store,
		key:    key,
		logger: logger,
	}
}

func (c *TxnCounter) Up(ctx context.Context) (int64, error) {
	var count int64
	err := c.store.RunInTransaction(ctx, func(tx Tx) error {
		rec, err := tx.Get(c.key)
		switch {
		case errors.Is(err, datastore.ErrNoSuchEntity):
			c.logger.Infof("counter not found, inserting new: key=%v", c.key)
			rec = &Record{Count: 1}
		case err != nil:
			return fmt.Errorf("tx.Get: %w", err)
		default:
			c.logger.Debugf("counter found, incrementing: key=%v, count=%d", c.key, rec.Count)
			rec.Count++
		}

		if err := tx.Put(c.key, rec); err != nil {
			return fmt.Errorf("tx.Put: %w", err)
		}
		count = rec.Count
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("RunInTransaction: %w", err)
	}
	return count, nil
}

func (c *TxnCounter) Get(ctx context.Context) (int64, error) {
	rec, err := c.store.Get(ctx, c.key)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("Get: %w", err)
	}
	return rec.Count, nil
}
