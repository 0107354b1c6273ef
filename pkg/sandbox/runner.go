package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	extism "github.com/extism/go-sdk"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// entrypoint is the export every sandbox script must provide. It receives
// the run context as JSON and returns the script's result as JSON.
const entrypoint = "run"

var wasmMagic = []byte("\x00asm")

type runner struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewService creates the extism-backed sandbox execution service. Every run
// instantiates a fresh plugin with no WASI ambient capabilities beyond
// stdout/stderr (captured as logs) and is torn down when the call returns.
func NewService(timeout time.Duration, logger *zap.Logger) Service {
	return &runner{
		timeout: timeout,
		logger:  logger.Named("sandbox"),
	}
}

var _ Service = (*runner)(nil)

func (r *runner) Run(ctx context.Context, in *RunInput) (*Result, error) {
	module, err := decodeModule(in.Code)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid script module: %v", err)}, nil
	}

	contextJSON, err := json.Marshal(in.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sandbox context: %w", err)
	}

	var logs bytes.Buffer

	manifest := extism.Manifest{
		Wasm:    []extism.Wasm{extism.WasmData{Data: module, Name: "script"}},
		Timeout: uint64(r.timeout.Milliseconds()),
	}
	pluginConfig := extism.PluginConfig{
		EnableWasi:    true,
		ModuleConfig:  wazero.NewModuleConfig().WithStdout(&logs).WithStderr(&logs),
		RuntimeConfig: wazero.NewRuntimeConfig().WithCloseOnContextDone(true),
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	plugin, err := extism.NewPlugin(runCtx, manifest, pluginConfig, r.hostFunctions(in))
	if err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("failed to instantiate script: %v", err),
			Logs:    logs.String(),
		}, nil
	}
	defer func() {
		if err := plugin.Close(context.WithoutCancel(runCtx)); err != nil {
			r.logger.Warn("Failed to close sandbox plugin", zap.Error(err))
		}
	}()

	start := time.Now()
	_, out, err := plugin.CallWithContext(runCtx, entrypoint, contextJSON)
	elapsed := time.Since(start)

	r.logger.Debug("Sandbox run finished",
		zap.String("user_id", in.UserID),
		zap.Duration("elapsed", elapsed),
		zap.Bool("failed", err != nil))

	if err != nil {
		msg := err.Error()
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) || strings.Contains(strings.ToLower(msg), "timeout") {
			// Documented contract: timeout failures contain "timed out".
			msg = fmt.Sprintf("script execution timed out after %s", r.timeout)
		}
		return &Result{Success: false, Error: msg, Logs: logs.String()}, nil
	}

	value := json.RawMessage(out)
	if len(bytes.TrimSpace(out)) == 0 {
		value = json.RawMessage("null")
	} else if !json.Valid(out) {
		return &Result{
			Success: false,
			Error:   "script returned malformed JSON",
			Logs:    logs.String(),
		}, nil
	}

	return &Result{Success: true, Value: value, Logs: logs.String()}, nil
}

// decodeModule accepts either raw WASM bytes or their base64 encoding.
// Builtin scripts are stored base64-encoded so the code column stays text.
func decodeModule(code string) ([]byte, error) {
	if strings.HasPrefix(code, string(wasmMagic)) {
		return []byte(code), nil
	}

	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, code)

	module, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("code is neither a WASM binary nor base64: %w", err)
	}
	if !bytes.HasPrefix(module, wasmMagic) {
		return nil, fmt.Errorf("decoded module is missing the WASM magic header")
	}

	return module, nil
}
