package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/internal/classify"
	"github.com/sells-group/deal-enricher/internal/pipeline"
	"github.com/sells-group/deal-enricher/internal/resilience"
)

// StatusFor maps an invocation error to an HTTP status.
func StatusFor(err error) int {
	var ve *pipeline.ValidationError
	var pe *resilience.PermanentError
	var te *classify.TimeoutError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &pe) && (pe.StatusCode == http.StatusUnauthorized || pe.StatusCode == http.StatusForbidden):
		return http.StatusForbidden
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case resilience.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it as plain text with the mapped status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	log := zap.L().With(zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	if status == http.StatusInternalServerError {
		log.Error("api: invocation failed")
	} else {
		log.Warn("api: invocation failed")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(http.StatusText(status) + ": " + err.Error()))
}
