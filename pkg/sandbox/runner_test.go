package sandbox

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// emptyModule is the smallest valid WASM binary: magic header plus version.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestDecodeModule_RawWASM(t *testing.T) {
	module, err := decodeModule(string(emptyModule))
	require.NoError(t, err)
	assert.Equal(t, emptyModule, module)
}

func TestDecodeModule_Base64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(emptyModule)

	module, err := decodeModule(encoded)
	require.NoError(t, err)
	assert.Equal(t, emptyModule, module)
}

func TestDecodeModule_Base64WithWhitespace(t *testing.T) {
	// Stored code may carry line breaks from embedding or copy-paste.
	encoded := "AGFz\nbQEA\r\n  AAA=\n"

	module, err := decodeModule(encoded)
	require.NoError(t, err)
	assert.Equal(t, emptyModule, module)
}

func TestDecodeModule_NotBase64(t *testing.T) {
	_, err := decodeModule("definitely not a module!!!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither a WASM binary nor base64")
}

func TestDecodeModule_Base64OfNonWASM(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("plain text payload"))

	_, err := decodeModule(encoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WASM magic header")
}

func TestRun_InvalidModuleIsScriptFailure(t *testing.T) {
	svc := NewService(time.Second, zap.NewNop())

	result, err := svc.Run(context.Background(), &RunInput{
		Code:   "not a module",
		UserID: "user-1",
	})
	require.NoError(t, err, "a bad module is the script's failure, not the host's")
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid script module")
}

func TestRun_UnserializableContextIsHostError(t *testing.T) {
	svc := NewService(time.Second, zap.NewNop())

	_, err := svc.Run(context.Background(), &RunInput{
		Code:    base64.StdEncoding.EncodeToString(emptyModule),
		UserID:  "user-1",
		Context: make(chan int),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode sandbox context")
}

func TestRun_ModuleWithoutEntrypointFails(t *testing.T) {
	svc := NewService(time.Second, zap.NewNop())

	// The empty module is valid WASM but exports no run function.
	result, err := svc.Run(context.Background(), &RunInput{
		Code:    base64.StdEncoding.EncodeToString(emptyModule),
		UserID:  "user-1",
		Context: map[string]string{"query": "dune"},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
