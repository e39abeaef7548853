// Package counttransaction is the Cloud Function that counts purchases.
//
// Every invocation of CountTransaction adds one to the TransactionCounter
// entity named AllPurchases in Cloud Datastore.
package counttransaction

import (
	"context"
	"fmt"
	"net/http"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/tckz/count-transaction/internal/config"
	"github.com/tckz/count-transaction/internal/handler"
)

const FunctionName = "CountTransaction"

var countTransaction http.Handler

// init panics on any setup error so the instance never serves without a counter.
func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config.Load: %w", err))
	}

	// The client is shared by all invocations of this instance for its whole lifetime.
	h, _, err := handler.Build(context.Background(), cfg, FunctionName)
	if err != nil {
		panic(fmt.Errorf("handler.Build: %w", err))
	}
	countTransaction = h

	functions.HTTP(FunctionName, CountTransaction)
}

// CountTransaction is the HTTP entry point.
func CountTransaction(w http.ResponseWriter, r *http.Request) {
	countTransaction.ServeHTTP(w, r)
}
