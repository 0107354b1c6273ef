package sandbox

import (
	"context"
	"encoding/json"
)

// APIFunction is a host capability exposed to a running script. It receives
// the script's call arguments as JSON and returns a JSON-serializable value.
// Implementations are bound to the run's user before being handed to Run.
type APIFunction func(ctx context.Context, args json.RawMessage) (any, error)

// RunInput describes one sandbox execution. Each run is independent; the
// script has no access to the host process beyond APIFunctions and Context.
type RunInput struct {
	// Code is the script module, base64-encoded WASM (raw bytes also accepted).
	Code string

	// UserID scopes the run; every APIFunction call happens on behalf of it.
	UserID string

	// APIFunctions is the enumerated set of host callbacks the script may invoke.
	APIFunctions map[string]APIFunction

	// Context is the JSON-serializable input handed to the script's run export.
	Context any
}

// Result is the outcome of a sandbox run. Exactly one of the success value
// or the error text is meaningful. A run that exceeded its time budget has
// an Error containing "timed out"; callers classify timeouts by that
// substring, which is a documented contract of this package.
type Result struct {
	Success bool
	Value   json.RawMessage
	Error   string
	Logs    string
}

// Service executes untrusted scripts in an isolated, time-bounded sandbox.
type Service interface {
	// Run executes the script and reports its outcome. The returned error is
	// reserved for host-side problems (e.g. an unserializable context);
	// script failures, including timeouts, surface in the Result.
	Run(ctx context.Context, in *RunInput) (*Result, error)
}
