package counter

import (
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	key := Key("shop")

	assert.Equal(t, "TransactionCounter", key.Kind)
	assert.Equal(t, "AllPurchases", key.Name)
	assert.Equal(t, "shop", key.Namespace)
	assert.Nil(t, key.Parent)
	assert.True(t, Key("").Equal(datastore.NameKey(Kind, Name, nil)))
}

func TestRecord_Load(t *testing.T) {
	tests := []struct {
		name    string
		props   []datastore.Property
		want    int64
		wantErr bool
	}{
		{
			name:  "count",
			props: []datastore.Property{{Name: "count", Value: int64(7)}},
			want:  7,
		},
		{
			name: "other properties are kept",
			props: []datastore.Property{
				{Name: "note", Value: "x"},
				{Name: "count", Value: int64(0)},
			},
			want: 0,
		},
		{
			name:    "missing",
			props:   []datastore.Property{{Name: "note", Value: "x"}},
			wantErr: true,
		},
		{
			name:    "wrong type",
			props:   []datastore.Property{{Name: "count", Value: "7"}},
			wantErr: true,
		},
		{
			name:    "negative",
			props:   []datastore.Property{{Name: "count", Value: int64(-1)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec Record
			err := rec.Load(tt.props)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Count)
		})
	}
}

func TestRecord_SaveKeepsOtherProperties(t *testing.T) {
	var rec Record
	require.NoError(t, rec.Load([]datastore.Property{
		{Name: "note", Value: "keep me"},
		{Name: "count", Value: int64(7)},
	}))
	rec.Count++

	props, err := rec.Save()
	require.NoError(t, err)
	assert.ElementsMatch(t, []datastore.Property{
		{Name: "note", Value: "keep me"},
		{Name: "count", Value: int64(8)},
	}, props)
}

func TestRecord_Save(t *testing.T) {
	props, err := (&Record{Count: 8}).Save()
	require.NoError(t, err)
	assert.Equal(t, []datastore.Property{{Name: "count", Value: int64(8)}}, props)

	_, err = (&Record{Count: -1}).Save()
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
