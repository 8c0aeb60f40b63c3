package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Invoker calls a named remote operation with a JSON payload.
// Transport failures, timeouts and non-2xx envelope statuses all surface as *Error.
type Invoker interface {
	Invoke(ctx context.Context, operation string, payload any) (json.RawMessage, error)
}

// Handler executes operations in-process and answers with an envelope.
type Handler interface {
	Handle(ctx context.Context, operation string, payload json.RawMessage) Envelope
}

// Error describes a failed remote call.
type Error struct {
	Operation  string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Envelope wraps every operation result with an application status.
type Envelope struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Success builds a 200 envelope around body.
func Success(body any) Envelope {
	data, err := json.Marshal(body)
	if err != nil {
		return Failure(http.StatusInternalServerError, fmt.Sprintf("encoding result: %v", err))
	}
	return Envelope{StatusCode: http.StatusOK, Body: data}
}

// Failure builds an error envelope.
func Failure(status int, message string) Envelope {
	data, _ := json.Marshal(errorBody{Error: message})
	return Envelope{StatusCode: status, Body: data}
}

// Result returns the body of a successful envelope or an *Error.
func (env Envelope) Result(operation string) (json.RawMessage, error) {
	if env.StatusCode >= 200 && env.StatusCode < 300 {
		return env.Body, nil
	}

	message := http.StatusText(env.StatusCode)
	var body errorBody
	if err := json.Unmarshal(env.Body, &body); err == nil && body.Error != "" {
		message = body.Error
	}
	return nil, &Error{Operation: operation, Message: message, StatusCode: env.StatusCode}
}

// Local invokes a Handler in the same process.
type Local struct {
	handler Handler
}

// NewLocal creates an Invoker backed by h.
func NewLocal(h Handler) *Local {
	return &Local{handler: h}
}

// Invoke encodes payload and hands it to the handler.
func (l *Local) Invoke(ctx context.Context, operation string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Operation: operation, Message: fmt.Sprintf("encoding payload: %v", err)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Operation: operation, Message: err.Error()}
	}
	return l.handler.Handle(ctx, operation, data).Result(operation)
}
