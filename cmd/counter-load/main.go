package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/tckz/count-transaction/internal/counter"
	"github.com/tckz/count-transaction/internal/log"
	vh "github.com/tckz/vegetahelper"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

// Invokes the counter concurrently and checks that no increment was lost:
// the count after the attack must equal the count before it plus the number
// of successful invocations.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration    = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput      = flag.String("output", "", "/path/to/results.bin or 'stdout'")
	optWorkers     = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optLogLevel    = flag.String("log-level", "info", "info|warn|error")
	optNameSpace   = flag.String("ns", "", "namespace")
	optMaxAttempts = flag.Int("max-attempts", 1, "Attempts per transaction when calling datastore directly")
	optURL         = flag.String("url", "", "URL of the deployed function. Calls datastore directly if empty")
	optNoAuth      = flag.Bool("no-auth", false, "Do not attach an ID token to requests for --url")
)

func init() {
	godotenv.Load()

	flag.Var(optRate, "rate", "Number of requests per time unit")
}

type nopWriteCloser struct {
	io.Writer
}

func (c nopWriteCloser) Close() error {
	return nil
}

func openResultFile(out string) (io.WriteCloser, error) {
	switch out {
	case "stdout":
		return &nopWriteCloser{os.Stdout}, nil
	default:
		return os.Create(out)
	}
}

func newHTTPClient(ctx context.Context, audience string) (*http.Client, error) {
	if *optNoAuth {
		return http.DefaultClient, nil
	}
	ts, err := idtoken.NewTokenSource(ctx, audience)
	if err != nil {
		return nil, fmt.Errorf("idtoken.NewTokenSource: %w", err)
	}
	return oauth2.NewClient(ctx, ts), nil
}

func invokeURL(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode != http.StatusOK {
		return errors.New(res.Status)
	}
	return nil
}

func main() {
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))

	logger.Infof("ver=%s, args=%s", version, os.Args)

	if *optOutput == "" {
		logger.Fatalf("*** --output must be specified.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pjID := os.Getenv("PROJECT_ID")

	cl, err := datastore.NewClient(context.Background(), pjID)
	if err != nil {
		logger.Fatalf("*** datastore.NewClient: %v", err)
	}
	defer cl.Close()

	store := counter.NewDatastoreStore(cl, *optMaxAttempts)
	c := counter.NewTxnCounter(store, counter.Key(*optNameSpace), logger)

	up := func(ctx context.Context) error {
		_, err := c.Up(ctx)
		return err
	}
	if *optURL != "" {
		hc, err := newHTTPClient(ctx, *optURL)
		if err != nil {
			logger.Fatalf("*** newHTTPClient: %v", err)
		}
		up = func(ctx context.Context) error {
			return invokeURL(ctx, hc, *optURL)
		}
	}

	before, err := c.Get(ctx)
	if err != nil {
		logger.Fatalf("*** Get: %v", err)
	}

	var ctSuccess, ctConflict, ctError int64
	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		if err := up(ctx); err != nil {
			if errors.Is(err, datastore.ErrConcurrentTransaction) {
				atomic.AddInt64(&ctConflict, 1)
			} else {
				atomic.AddInt64(&ctError, 1)
			}
			return nil, err
		}
		atomic.AddInt64(&ctSuccess, 1)
		return result, nil
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(ctx, *optRate.Rate, *optDuration, lo.Ternary(*optURL == "", "datastore", "function"))

	out, err := openResultFile(*optOutput)
	if err != nil {
		logger.Fatal(err)
	}
	defer out.Close()
	enc := vegeta.NewEncoder(out)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)

	var metrics vegeta.Metrics
loop:
	for {
		select {
		case s := <-sig:
			logger.Infof("Received signal: %s", s)
			cancel()
			// keep loop until 'res' is closed.
		case r, ok := <-res:
			if !ok {
				break loop
			}
			metrics.Add(r)
			if err := enc.Encode(r); err != nil {
				logger.Errorf("*** Encode: %v", err)
				break loop
			}
		}
	}
	metrics.Close()

	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		after, err := c.Get(ctx)
		if err != nil {
			logger.Fatalf("*** Get: %v", err)
		}

		success := atomic.LoadInt64(&ctSuccess)
		logger.Infof("requests=%s, success=%s, conflict=%s, error=%s, p99=%s",
			humanize.Comma(int64(metrics.Requests)), humanize.Comma(success),
			humanize.Comma(atomic.LoadInt64(&ctConflict)), humanize.Comma(atomic.LoadInt64(&ctError)),
			metrics.Latencies.P99)
		logger.Infof("count before=%s, after=%s", humanize.Comma(before), humanize.Comma(after))

		if over, err := verifyCount(before, after, success); err != nil {
			logger.Fatalf("*** %v", err)
		} else if over {
			// e.g. the client gave up on a request the function still committed
			logger.Warnf("count moved by %d, more than %d successful invocations", after-before, success)
		}
	}
}
