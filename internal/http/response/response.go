// Package response writes the API's JSON envelope. Every endpoint,
// success or failure, produces {success, data|error, meta} so clients
// can parse one shape.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *errBody  `json:"error,omitempty"`
	Meta    metaBlock `json:"meta"`
}

type errBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type metaBlock struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// JSON writes a success envelope with the given payload.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, status, envelope{Success: true, Data: data, Meta: newMeta(r)})
}

// Error writes a failure envelope. Details is optional structured
// context for the client, not a place for internals.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	write(w, status, envelope{
		Success: false,
		Error:   &errBody{Code: code, Message: message, Details: details},
		Meta:    newMeta(r),
	})
}

func write(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func newMeta(r *http.Request) metaBlock {
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = r.Header.Get("X-Request-Id")
	}
	if id == "" {
		id = "req-unknown"
	}
	return metaBlock{RequestID: id, Timestamp: time.Now().UTC()}
}
