package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/joho/godotenv"
	counttransaction "github.com/tckz/count-transaction"
	"github.com/tckz/count-transaction/internal/config"
	"github.com/tckz/count-transaction/internal/log"
	"go.uber.org/zap"
)

// Runs the function locally, e.g. against the Datastore emulator with
// DATASTORE_EMULATOR_HOST set.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel = flag.String("log-level", "info", "info|warn|error of this runner's own log. The function logs at $LOG_LEVEL")
	optPort     = flag.String("port", "", "listen port, defaults to $PORT or 8080")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("*** config.Load: %v", err)
	}

	port := *optPort
	if port == "" {
		port = cfg.Port
	}

	// The framework serves only the registered function named by FUNCTION_TARGET.
	if os.Getenv("FUNCTION_TARGET") == "" {
		os.Setenv("FUNCTION_TARGET", counttransaction.FunctionName)
	}

	logger.Infof("listen port=%s, target=%s", port, os.Getenv("FUNCTION_TARGET"))
	if err := funcframework.Start(port); err != nil {
		logger.Fatalf("*** funcframework.Start: %v", err)
	}
}
