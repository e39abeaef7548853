// Package memstore is an in-memory counter.Store with optimistic concurrency.
//
// A transaction remembers the version of every entity it reads. At commit the
// versions are checked again and if another transaction committed one of those
// entities in between, the commit fails with datastore.ErrConcurrentTransaction,
// the same way Cloud Datastore fails the loser of two overlapping
// read-modify-write transactions.
package memstore

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/datastore"
	"github.com/tckz/count-transaction/internal/counter"
)

var errTxDone = errors.New("memstore: transaction already finished")

type entity struct {
	props   []datastore.Property
	version int64
}

type options struct {
	maxAttempts int
}

type Option func(o *options)

// WithMaxAttempts makes RunInTransaction retry a conflicting transaction up to
// n attempts in total. Default is 1.
func WithMaxAttempts(n int) Option {
	return Option(func(o *options) {
		o.maxAttempts = n
	})
}

var _ counter.Store = (*Store)(nil)

type Store struct {
	mu         sync.Mutex
	entities   map[string]*entity
	failCommit error
	commits    int64
	conflicts  int64

	maxAttempts int
}

func New(opts ...Option) *Store {
	options := options{
		maxAttempts: 1,
	}
	for _, e := range opts {
		e(&options)
	}
	if options.maxAttempts < 1 {
		options.maxAttempts = 1
	}

	return &Store{
		entities:    map[string]*entity{},
		maxAttempts: options.maxAttempts,
	}
}

func keyString(key *datastore.Key) string {
	return key.Namespace + "|" + key.String()
}

// Seed stores raw properties under key, bypassing record validation.
func (s *Store) Seed(key *datastore.Key, props []datastore.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyString(key)
	var version int64
	if e, ok := s.entities[k]; ok {
		version = e.version
	}
	s.entities[k] = &entity{props: props, version: version + 1}
}

// FailNextCommit makes the next commit fail with err without applying any
// of its writes.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = err
}

// Stats returns the number of successful commits and of conflicts detected.
func (s *Store) Stats() (commits, conflicts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits, s.conflicts
}

func (s *Store) Get(ctx context.Context, key *datastore.Key) (*counter.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	e, ok := s.entities[keyString(key)]
	s.mu.Unlock()
	if !ok {
		return nil, datastore.ErrNoSuchEntity
	}

	var rec counter.Record
	if err := rec.Load(e.props); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) RunInTransaction(ctx context.Context, f func(tx counter.Tx) error) error {
	for i := 0; i < s.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &transaction{
			store:  s,
			reads:  map[string]int64{},
			writes: map[string][]datastore.Property{},
		}
		if err := f(tx); err != nil {
			tx.done = true
			return err
		}

		err := tx.commit()
		if errors.Is(err, datastore.ErrConcurrentTransaction) {
			continue
		}
		return err
	}
	return datastore.ErrConcurrentTransaction
}

type transaction struct {
	store  *Store
	mu     sync.Mutex
	reads  map[string]int64
	writes map[string][]datastore.Property
	done   bool
}

func (t *transaction) Get(key *datastore.Key) (*counter.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, errTxDone
	}

	k := keyString(key)
	t.store.mu.Lock()
	e, ok := t.store.entities[k]
	var props []datastore.Property
	var version int64
	if ok {
		props = e.props
		version = e.version
	}
	t.store.mu.Unlock()

	// version 0 stands for "absent"; a later insert by someone else conflicts too.
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = version
	}
	if !ok {
		return nil, datastore.ErrNoSuchEntity
	}

	var rec counter.Record
	if err := rec.Load(props); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (t *transaction) Put(key *datastore.Key, rec *counter.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errTxDone
	}

	props, err := rec.Save()
	if err != nil {
		return err
	}
	t.writes[keyString(key)] = props
	return nil
}

func (t *transaction) commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errTxDone
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failCommit; err != nil {
		s.failCommit = nil
		return err
	}

	for k, seen := range t.reads {
		var current int64
		if e, ok := s.entities[k]; ok {
			current = e.version
		}
		if current != seen {
			s.conflicts++
			return datastore.ErrConcurrentTransaction
		}
	}

	for k, props := range t.writes {
		var version int64
		if e, ok := s.entities[k]; ok {
			version = e.version
		}
		s.entities[k] = &entity{props: props, version: version + 1}
	}
	s.commits++
	return nil
}
