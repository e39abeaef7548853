package counter_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tckz/count-transaction/internal/counter"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const emulatorProject = "count-transaction-test"

// newEmulatorClient starts the Datastore emulator in a container.
// Set COUNTER_EMULATOR_TEST to run the tests that need it.
func newEmulatorClient(t *testing.T) *datastore.Client {
	t.Helper()
	if os.Getenv("COUNTER_EMULATOR_TEST") == "" {
		t.Skip("COUNTER_EMULATOR_TEST is not set")
	}

	ctx := context.Background()
	emu, err := testcontainers.GenericContainer(
		ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "gcr.io/google.com/cloudsdktool/google-cloud-cli:emulators",
				ExposedPorts: []string{"8081/tcp"},
				Cmd: []string{
					"gcloud", "beta", "emulators", "datastore", "start",
					"--project=" + emulatorProject,
					"--host-port=0.0.0.0:8081",
					"--no-store-on-disk",
					"--consistency=1.0",
				},
				WaitingFor: wait.ForHTTP("/").WithPort("8081/tcp"),
			},
			Started: true,
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		emu.Terminate(context.Background())
	})

	host, err := emu.Host(ctx)
	require.NoError(t, err)
	port, err := emu.MappedPort(ctx, "8081")
	require.NoError(t, err)

	t.Setenv("DATASTORE_EMULATOR_HOST", fmt.Sprintf("%s:%s", host, port.Port()))

	cl, err := datastore.NewClient(ctx, emulatorProject)
	require.NoError(t, err)
	t.Cleanup(func() {
		cl.Close()
	})
	return cl
}

func TestDatastoreStore_Emulator(t *testing.T) {
	cl := newEmulatorClient(t)
	ctx := context.Background()

	t.Run("cold start then increment", func(t *testing.T) {
		key := counter.Key(uuid.New().String())
		s := counter.NewDatastoreStore(cl, 1)
		c := counter.NewTxnCounter(s, key, nopLogger)

		n, err := c.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		for i := int64(1); i <= 3; i++ {
			n, err := c.Up(ctx)
			require.NoError(t, err)
			assert.Equal(t, i, n)
		}

		var raw datastore.PropertyList
		require.NoError(t, cl.Get(ctx, key, &raw))
		assert.Equal(t, datastore.PropertyList{{Name: "count", Value: int64(3)}}, raw)
	})

	t.Run("invalid record", func(t *testing.T) {
		key := counter.Key(uuid.New().String())
		_, err := cl.Put(ctx, key, &datastore.PropertyList{{Name: "count", Value: "seven"}})
		require.NoError(t, err)

		c := counter.NewTxnCounter(counter.NewDatastoreStore(cl, 1), key, nopLogger)
		_, err = c.Up(ctx)
		assert.ErrorIs(t, err, counter.ErrInvalidRecord)
	})

	t.Run("concurrent", func(t *testing.T) {
		key := counter.Key(uuid.New().String())
		c := counter.NewTxnCounter(counter.NewDatastoreStore(cl, 1), key, nopLogger)

		const M = 16
		var succeeded int64
		wg := &sync.WaitGroup{}
		for i := 0; i < M; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.Up(ctx); err != nil {
					if !errors.Is(err, datastore.ErrConcurrentTransaction) {
						t.Logf("Up: %v", err)
					}
					return
				}
				atomic.AddInt64(&succeeded, 1)
			}()
		}
		wg.Wait()

		n, err := c.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, atomic.LoadInt64(&succeeded), n)
	})
}
