package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tckz/count-transaction/internal/counter"
	"github.com/tckz/count-transaction/internal/log"
	"github.com/tckz/count-transaction/internal/marker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Counts one purchase per message received from a Pub/Sub subscription.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optWorkers      = flag.Int("workers", 4, "Number of receivers")
	optLogLevel     = flag.String("log-level", "info", "info|warn|error")
	optSubscription = flag.String("subscription", "", "subscription name")
	optRedis        = flag.String("redis", "", "addr:port of redis to share processed marks")
	optMarkerTTL    = flag.Duration("marker-ttl", 10*time.Minute, "How long a processed message is remembered")
	optNameSpace    = flag.String("ns", "", "namespace")
	optMaxAttempts  = flag.Int("max-attempts", 1, "Attempts per transaction")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if *optSubscription == "" {
		logger.Fatalf("*** --subscription must be specified.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pjID := os.Getenv("PROJECT_ID")

	dsClient, err := datastore.NewClient(ctx, pjID)
	if err != nil {
		logger.Fatalf("*** datastore.NewClient: %v", err)
	}
	defer dsClient.Close()

	psClient, err := pubsub.NewClient(ctx, pjID)
	if err != nil {
		logger.Fatalf("*** pubsub.NewClient: %v", err)
	}
	defer psClient.Close()

	var processMarker marker.ProcessMarker
	if *optRedis == "" {
		processMarker = marker.NewLocalMarker(*optMarkerTTL)
	} else {
		cl := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        []string{*optRedis},
			DialTimeout:  time.Second * 2,
			ReadTimeout:  time.Second * 2,
			WriteTimeout: time.Second * 2,
			PoolSize:     200,
			PoolTimeout:  time.Second * 5,
		})
		defer cl.Close()
		processMarker = marker.NewRedisMarker(cl, *optMarkerTTL)
	}

	store := counter.NewDatastoreStore(dsClient, *optMaxAttempts)
	c := counter.NewTxnCounter(store, counter.Key(*optNameSpace), logger)

	var ctCounted, ctFailed int64
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < *optWorkers; i++ {
		eg.Go(func() error {
			subs := psClient.Subscription(*optSubscription)
			return subs.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				if got, err := processMarker.Acquire(ctx, msg.ID); err != nil {
					logger.Errorf("Acquire: %v", err)
					msg.Nack()
					return
				} else if !got {
					logger.Infof("msgID=%s already counted", msg.ID)
					msg.Ack()
					return
				}

				n, err := c.Up(ctx)
				if err != nil {
					atomic.AddInt64(&ctFailed, 1)
					logger.Errorf("msgID=%s, Up: %v", msg.ID, err)
					if err := processMarker.Release(ctx, msg.ID); err != nil {
						logger.Errorf("msgID=%s, Release: %v", msg.ID, err)
					}
					msg.Nack()
					return
				}
				msg.Ack()

				if ct := atomic.AddInt64(&ctCounted, 1); ct%1000 == 0 {
					logger.Infof("counted=%d, count=%d", ct, n)
				}
			})
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Infof("Received signal: %v", s)
	case <-ctx.Done():
	}
	cancel()

	logger.Infof("Waiting goroutines exit")
	if err := eg.Wait(); err != nil {
		logger.Errorf("Wait: %v", err)
	}

	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		v, err := c.Get(ctx)
		if err != nil {
			logger.Errorf("Get: %v", err)
		}
		logger.Infof("counted=%d, failed=%d, count=%d", atomic.LoadInt64(&ctCounted), atomic.LoadInt64(&ctFailed), v)
	}
}
