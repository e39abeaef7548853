package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"cloud.google.com/go/datastore"
	"github.com/joho/godotenv"
	"github.com/tckz/count-transaction/internal/counter"
	"github.com/tckz/count-transaction/internal/log"
	"go.uber.org/zap"
)

// Deletes the counter entity so that the next invocation starts from 1.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel  = flag.String("log-level", "info", "info|warn|error")
	optNameSpace = flag.String("ns", "", "namespace")
	optYes       = flag.Bool("yes", false, "really delete")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	if !*optYes {
		logger.Fatalf("*** --yes must be specified.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pjID := os.Getenv("PROJECT_ID")

	cl, err := datastore.NewClient(context.Background(), pjID)
	if err != nil {
		logger.Fatalf("*** datastore.NewClient: %v", err)
	}
	defer cl.Close()

	store := counter.NewDatastoreStore(cl, 1)
	key := counter.Key(*optNameSpace)
	before, err := counter.NewTxnCounter(store, key, logger).Get(ctx)
	if err != nil {
		logger.Errorf("Get: %v", err)
		return
	}

	if err := store.Delete(ctx, key); err != nil {
		logger.Errorf("Delete: %v", err)
		return
	}
	logger.Infof("Deleted key=%v, count was %d", key, before)
}
