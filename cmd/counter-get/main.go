package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/datastore"
	"github.com/joho/godotenv"
	"github.com/tckz/count-transaction/internal/counter"
	"github.com/tckz/count-transaction/internal/log"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel  = flag.String("log-level", "info", "info|warn|error")
	optNameSpace = flag.String("ns", "", "namespace")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pjID := os.Getenv("PROJECT_ID")

	cl, err := datastore.NewClient(context.Background(), pjID)
	if err != nil {
		logger.Fatalf("*** datastore.NewClient: %v", err)
	}
	defer cl.Close()

	key := counter.Key(*optNameSpace)
	rec, err := counter.NewDatastoreStore(cl, 1).Get(ctx, key)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		fmt.Fprintf(os.Stdout, "Key=%v absent\n", key)
		return
	} else if err != nil {
		logger.Errorf("Get: %v", err)
		return
	}

	fmt.Fprintf(os.Stdout, "Key=%v count=%d\n", key, rec.Count)
}
