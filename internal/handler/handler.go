// Package handler serves the purchase counter over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/tckz/count-transaction/internal/counter"
	"go.uber.org/zap"
)

type response struct {
	Count int64 `json:"count"`
}

type Handler struct {
	counter counter.Counter
	logger  *zap.SugaredLogger
}

var _ http.Handler = (*Handler)(nil)

func New(c counter.Counter, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		counter: c,
		logger:  logger,
	}
}

// ServeHTTP increments the counter once per request. The request itself is not
// inspected.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(zap.String("invocation", uuid.New().String()))

	n, err := h.counter.Up(r.Context())
	if err != nil {
		logger.With(zap.Error(err),
			zap.Bool("conflict", errors.Is(err, datastore.ErrConcurrentTransaction)),
		).Errorf("*** Up: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	logger.Debugf("count=%d", n)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response{Count: n}); err != nil {
		logger.Warnf("Encode: %v", err)
	}
}
