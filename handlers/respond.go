package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type contextKey string

const contextKeyRequestID contextKey = "requestID"

// WithRequestID stores the request id for error responses and logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext returns the id set by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// RespondJSON buffers the encoding so a marshalling failure can still turn
// into a clean 500.
func RespondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("json encoding failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("response write failed", "error", err)
	}
}

// WriteError writes message, and the cause when err is non-nil, as JSON.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	resp := ErrorResponse{
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	RespondJSON(w, statusCode, resp)
}
