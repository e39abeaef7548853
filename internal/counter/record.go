package counter

import (
	"errors"
	"fmt"

	"cloud.google.com/go/datastore"
)

const (
	Kind = "TransactionCounter"
	Name = "AllPurchases"

	PropCount = "count"
)

var ErrInvalidRecord = errors.New("invalid counter record")

// Key returns the key of the purchase counter in namespace ns.
func Key(ns string) *datastore.Key {
	key := datastore.NameKey(Kind, Name, nil)
	key.Namespace = ns
	return key
}

// Record is the persisted counter entity.
type Record struct {
	Count int64

	// properties other than count, written back unchanged
	extra []datastore.Property
}

var _ datastore.PropertyLoadSaver = (*Record)(nil)

// Load rejects entities whose count is missing, not an integer or negative.
// Other properties are kept as they are and saved again by Save.
func (r *Record) Load(ps []datastore.Property) error {
	found := false
	r.extra = nil
	for _, p := range ps {
		if p.Name != PropCount {
			r.extra = append(r.extra, p)
			continue
		}
		v, ok := p.Value.(int64)
		if !ok {
			return fmt.Errorf("%w: %s is %T", ErrInvalidRecord, PropCount, p.Value)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidRecord, PropCount, v)
		}
		r.Count = v
		found = true
	}
	if !found {
		return fmt.Errorf("%w: %s is missing", ErrInvalidRecord, PropCount)
	}
	return nil
}

func (r *Record) Save() ([]datastore.Property, error) {
	if r.Count < 0 {
		return nil, fmt.Errorf("%w: %s=%d", ErrInvalidRecord, PropCount, r.Count)
	}
	ps := make([]datastore.Property, 0, len(r.extra)+1)
	ps = append(ps, r.extra...)
	return append(ps, datastore.Property{Name: PropCount, Value: r.Count}), nil
}
