package sandbox

import (
	"context"
	"encoding/json"
	"sort"

	extism "github.com/extism/go-sdk"
	"go.uber.org/zap"
)

// Host call wire shape: the script passes its arguments as a JSON document
// and receives {"result": ...} on success or {"error": "..."} on failure.

type hostCallSuccess struct {
	Result any `json:"result"`
}

type hostCallFailure struct {
	Error string `json:"error"`
}

// hostFunctions wraps the run's APIFunctions as extism host functions.
// Each takes one memory offset (the JSON arguments) and returns one memory
// offset (the JSON response envelope).
func (r *runner) hostFunctions(in *RunInput) []extism.HostFunction {
	names := make([]string, 0, len(in.APIFunctions))
	for name := range in.APIFunctions {
		names = append(names, name)
	}
	sort.Strings(names)

	funcs := make([]extism.HostFunction, 0, len(names))
	for _, name := range names {
		fn := in.APIFunctions[name]
		funcs = append(funcs, extism.NewHostFunctionWithStack(
			name,
			r.hostCallback(name, in.UserID, fn),
			[]extism.ValueType{extism.ValueTypePTR},
			[]extism.ValueType{extism.ValueTypePTR},
		))
	}

	return funcs
}

func (r *runner) hostCallback(name, userID string, fn APIFunction) extism.HostFunctionStackCallback {
	return func(ctx context.Context, p *extism.CurrentPlugin, stack []uint64) {
		args, err := p.ReadBytes(stack[0])
		if err != nil {
			r.logger.Warn("Failed to read host call arguments",
				zap.String("function", name), zap.Error(err))
			stack[0] = r.writeEnvelope(p, hostCallFailure{Error: "failed to read arguments"})
			return
		}
		if len(args) == 0 {
			args = []byte("null")
		}

		value, err := fn(ctx, json.RawMessage(args))
		if err != nil {
			r.logger.Debug("Host call failed",
				zap.String("function", name),
				zap.String("user_id", userID),
				zap.Error(err))
			stack[0] = r.writeEnvelope(p, hostCallFailure{Error: err.Error()})
			return
		}

		stack[0] = r.writeEnvelope(p, hostCallSuccess{Result: value})
	}
}

func (r *runner) writeEnvelope(p *extism.CurrentPlugin, envelope any) uint64 {
	data, err := json.Marshal(envelope)
	if err != nil {
		data = []byte(`{"error":"failed to encode host response"}`)
	}

	offset, err := p.WriteBytes(data)
	if err != nil {
		r.logger.Warn("Failed to write host call response", zap.Error(err))
		return 0
	}

	return offset
}
