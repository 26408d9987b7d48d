package logging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "", MaskSecret("   "))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "****3456", MaskSecret("sk-0123456789-3456"))
	assert.Equal(t, "Bearer ****wxyz", MaskSecret("Bearer sk-abcdefgh-wxyz"))
}

func TestMaskSecretShortTailNotRevealed(t *testing.T) {
	// Eight characters or fewer: the tail would give away most of the key.
	assert.Equal(t, "****", MaskSecret("12345678"))
	assert.Equal(t, "****6789", MaskSecret("123456789"))
}

func TestRedactJSON(t *testing.T) {
	raw := json.RawMessage(`{"user_id":"u1","api_key":"sk-0123456789abcd","nested":{"token":"tok-0123456789"}}`)
	out := RedactJSON(raw)

	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u1", m["user_id"])
	assert.Equal(t, "****abcd", m["api_key"])

	nested, ok := m["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "****6789", nested["token"])
}

func TestRedactJSONArray(t *testing.T) {
	raw := json.RawMessage(`[{"secret":"hunter2hunter2"},{"plain":"ok"}]`)
	out := RedactJSON(raw)

	arr, ok := out.([]any)
	require.True(t, ok)
	first := arr[0].(map[string]any)
	assert.Equal(t, "****ter2", first["secret"])
	second := arr[1].(map[string]any)
	assert.Equal(t, "ok", second["plain"])
}

func TestRedactJSONInvalid(t *testing.T) {
	out := RedactJSON(json.RawMessage("  not json  "))
	assert.Equal(t, "not json", out)
}

func TestRedactJSONEmpty(t *testing.T) {
	assert.Nil(t, RedactJSON(nil))
}
