package handler

import (
	"errors"
	"io"
	"net/http"
)

// maxBodyBytes caps the request body read by ServeHTTP. It matches the
// synchronous Lambda invocation payload limit.
const maxBodyBytes = 6 << 20

// ServeHTTP adapts a plain HTTP request to the gateway contract.
// An empty request body is passed on as an absent body. A body larger than
// maxBodyBytes is rejected with 413 instead of being parsed partially.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var resp Response

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		h.logger.Warn().Int64("limit", tooLarge.Limit).Msg("Request body too large")
		resp = h.respond(http.StatusRequestEntityTooLarge, errorBody{Message: MessageBodyTooLarge})
		handlerResponsesTotal.WithLabelValues("413").Inc()
	case err != nil:
		resp = h.internalError(err.Error())
		handlerResponsesTotal.WithLabelValues("500").Inc()
	default:
		var event Event
		if len(raw) > 0 {
			body := string(raw)
			event.Body = &body
		}
		resp = h.Handle(r.Context(), event)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
