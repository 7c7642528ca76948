// Package handler implements the gateway contract of the account batch
// fetcher: a JSON array of account IDs in, a JSON array of payloads out.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/account-batch-fetcher/pkg/logging"
	"github.com/Sternrassler/account-batch-fetcher/pkg/metrics"
)

var handlerResponsesTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
	Name: "fanout_handler_responses_total",
	Help: "Total gateway responses by status code",
}, []string{"status"})

// Event is an HTTP gateway event. Only the body is used.
type Event struct {
	Body *string `json:"body,omitempty"`
}

// Response is an HTTP gateway result.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}

// BatchFetcher fetches payloads for a list of account IDs.
type BatchFetcher interface {
	FetchAll(ctx context.Context, accountIDs []string) []json.RawMessage
}

// Handler turns gateway events into batch fetches.
type Handler struct {
	fetcher BatchFetcher
	logger  zerolog.Logger
}

// New creates a new handler.
func New(fetcher BatchFetcher) *Handler {
	return &Handler{
		fetcher: fetcher,
		logger:  logging.NewLogger("handler"),
	}
}

// Handle validates the event body, fetches every account and shapes the response.
// It always returns a Response: 200, 400, or 500.
func (h *Handler) Handle(ctx context.Context, event Event) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = h.internalError(panicMessage(r))
		}
		handlerResponsesTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	}()

	h.logger.Debug().
		Bool("has_body", event.Body != nil).
		Int("body_bytes", bodyLen(event.Body)).
		Msg("Received event")

	accountIDs, err := ParseAccountIDs(event.Body)
	if err != nil {
		var invalid *InvalidInputError
		if errors.As(err, &invalid) {
			h.logger.Warn().Str("got", invalid.Got).Msg("Invalid input")
			return h.respond(http.StatusBadRequest, errorBody{Message: MessageInvalidInput})
		}
		return h.internalError(err.Error())
	}

	h.logger.Debug().Int("accounts", len(accountIDs)).Msg("Parsed body")

	payloads := h.fetcher.FetchAll(ctx, accountIDs)
	if payloads == nil {
		payloads = []json.RawMessage{}
	}
	return h.respond(http.StatusOK, payloads)
}

// respond encodes body as JSON. An encoding failure becomes a 500.
func (h *Handler) respond(statusCode int, body any) Response {
	encoded, err := json.Marshal(body)
	if err != nil {
		return h.internalError(err.Error())
	}

	return Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(encoded),
	}
}

func (h *Handler) internalError(message string) Response {
	h.logger.Error().Str("error", message).Msg("Error processing request")

	encoded, err := json.Marshal(errorBody{Message: MessageInternalError, Error: message})
	if err != nil {
		encoded = []byte(`{"message":"Internal server error","error":"Unknown error occurred"}`)
	}

	return Response{
		StatusCode: http.StatusInternalServerError,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(encoded),
	}
}

// panicMessage returns the message of an error panic value, or MessageUnknownError.
func panicMessage(r any) string {
	if err, ok := r.(error); ok && err.Error() != "" {
		return err.Error()
	}
	return MessageUnknownError
}

func bodyLen(body *string) int {
	if body == nil {
		return 0
	}
	return len(*body)
}
