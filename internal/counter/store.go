package counter

import (
	"context"

	"cloud.google.com/go/datastore"
)

// Store is the part of a datastore the counter needs.
// Absent entities are reported as datastore.ErrNoSuchEntity and lost
// transactions as datastore.ErrConcurrentTransaction.
type Store interface {
	// RunInTransaction runs f in a transaction and commits it if f returns nil.
	RunInTransaction(ctx context.Context, f func(tx Tx) error) error
	Get(ctx context.Context, key *datastore.Key) (*Record, error)
}

type Tx interface {
	Get(key *datastore.Key) (*Record, error)
	Put(key *datastore.Key, rec *Record) error
}

var _ Store = (*DatastoreStore)(nil)

// DatastoreStore is a Store on Cloud Datastore.
type DatastoreStore struct {
	client      *datastore.Client
	maxAttempts int
}

// NewDatastoreStore returns a store that makes at most maxAttempts attempts per
// transaction. maxAttempts=1 surfaces every conflict to the caller.
func NewDatastoreStore(client *datastore.Client, maxAttempts int) *DatastoreStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &DatastoreStore{
		client:      client,
		maxAttempts: maxAttempts,
	}
}

func (s *DatastoreStore) RunInTransaction(ctx context.Context, f func(tx Tx) error) error {
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		return f(&datastoreTx{tx: tx})
	}, datastore.MaxAttempts(s.maxAttempts))
	return err
}

func (s *DatastoreStore) Get(ctx context.Context, key *datastore.Key) (*Record, error) {
	var rec Record
	if err := s.client.Get(ctx, key, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *DatastoreStore) Delete(ctx context.Context, key *datastore.Key) error {
	return s.client.Delete(ctx, key)
}

type datastoreTx struct {
	tx *datastore.Transaction
}

func (t *datastoreTx) Get(key *datastore.Key) (*Record, error) {
	var rec Record
	if err := t.tx.Get(key, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (t *datastoreTx) Put(key *datastore.Key, rec *Record) error {
	_, err := t.tx.Put(key, rec)
	return err
}
