package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/vouchbase/internal/adapters/repository"
	service "github.com/okian/vouchbase/internal/app"
	"github.com/okian/vouchbase/internal/domain/failure"
)

// ErrBadRequest marks malformed input.
var ErrBadRequest = errors.New("bad request")

// Status codes for classified ledger failures.
var failureStatus = map[failure.Kind]int{
	failure.UserCancelled:     http.StatusBadRequest,
	failure.InsufficientFunds: http.StatusPaymentRequired,
	failure.WrongNetwork:      http.StatusPreconditionFailed,
	failure.LedgerRejected:    http.StatusUnprocessableEntity,
	failure.NotFound:          http.StatusNotFound,
	failure.Unknown:           http.StatusBadGateway,
}

// writeFailure maps service and ledger errors onto status codes. Classified
// failures carry their user message; everything else its error text.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBusy):
		writeError(w, http.StatusConflict, "busy", err)
	case errors.Is(err, service.ErrNotConnected):
		writeError(w, http.StatusPreconditionFailed, "not_connected", err)
	case errors.Is(err, service.ErrSelfVouch):
		writeError(w, http.StatusBadRequest, "self_vouch", err)
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		kind := failure.Classify(err)
		status, ok := failureStatus[kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse{Code: kind.String(), Message: failure.Message(err)})
	}
}

func trimSegment(path, prefix string) string {
	s := strings.TrimPrefix(path, prefix)
	if strings.Contains(s, "/") {
		return ""
	}
	return s
}
