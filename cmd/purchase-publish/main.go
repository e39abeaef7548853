package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tckz/count-transaction/internal/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Publishes purchase notifications for counter-subscriber.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optTopic    = flag.String("topic", "", "topic name")
	optCount    = flag.Int("count", 100, "Number of messages to publish")
	optInterval = flag.Duration("interval", 0, "Wait between messages")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if *optTopic == "" {
		logger.Fatalf("*** --topic must be specified.")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pjID := os.Getenv("PROJECT_ID")

	cl, err := pubsub.NewClient(ctx, pjID)
	if err != nil {
		logger.Fatalf("*** pubsub.NewClient: %v", err)
	}
	defer cl.Close()

	topic := cl.Topic(*optTopic)
	defer topic.Stop()

	chRes := make(chan *pubsub.PublishResult, 30)
	eg, egCtx := errgroup.WithContext(ctx)
	var gotID int64
	for i := 0; i < 8; i++ {
		eg.Go(func() error {
			for res := range chRes {
				if _, err := res.Get(egCtx); err != nil {
					logger.Errorf("*** Get: %v", err)
					return err
				}
				atomic.AddInt64(&gotID, 1)
			}
			return nil
		})
	}

loop:
	for i := 0; i < *optCount; i++ {
		msg := &pubsub.Message{
			Data: []byte(fmt.Sprintf(`{"purchase":"%s"}`, uuid.New().String())),
			Attributes: map[string]string{
				"publishedAt": time.Now().UTC().Format(time.RFC3339Nano),
			},
		}
		select {
		case chRes <- topic.Publish(ctx, msg):
		case <-egCtx.Done():
			break loop
		}

		if *optInterval > 0 {
			select {
			case <-time.After(*optInterval):
			case <-egCtx.Done():
				break loop
			}
		}
	}
	close(chRes)

	logger.Infof("waiting goroutines for res.Get exit")
	if err := eg.Wait(); err != nil {
		logger.Errorf("Wait: %v", err)
	}
	logger.Infof("published=%d", atomic.LoadInt64(&gotID))
}
