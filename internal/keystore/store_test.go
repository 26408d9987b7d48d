package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "user_api_keys.json"), logging.New(nil, "silent"))
}

func TestStore_SetGetDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("alice", "openai", "sk-test-1234567890abcd"))

	key, ok := s.Get("alice", "openai")
	require.True(t, ok)
	assert.Equal(t, "sk-test-1234567890abcd", key)

	require.NoError(t, s.Delete("alice", "openai"))
	_, ok = s.Get("alice", "openai")
	assert.False(t, ok)
}

func TestStore_Set_Validation(t *testing.T) {
	s := newTestStore(t)

	assert.Error(t, s.Set("", "openai", "sk-x"))
	assert.Error(t, s.Set("alice", "openai", ""))
	assert.ErrorIs(t, s.Set("alice", "frontier-labs", "sk-x"), ErrUnknownProvider)
}

func TestStore_Set_NormalizesProviderCase(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("alice", "OpenAI", "sk-test-1234567890abcd"))
	key, ok := s.Get("alice", "openai")
	require.True(t, ok)
	assert.Equal(t, "sk-test-1234567890abcd", key)
}

func TestStore_Delete_NotFound(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.Delete("nobody", "openai"), ErrNotFound)

	require.NoError(t, s.Set("alice", "openai", "sk-x-1234"))
	assert.ErrorIs(t, s.Delete("alice", "gemini"), ErrNotFound)
}

func TestStore_Delete_RemovesEmptyUsers(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("alice", "openai", "sk-x-1234"))
	require.NoError(t, s.Delete("alice", "openai"))

	assert.Empty(t, s.Users())
}

func TestStore_Providers_Sorted(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("alice", "voyage", "pa-1234"))
	require.NoError(t, s.Set("alice", "anthropic", "sk-ant-1234"))
	require.NoError(t, s.Set("alice", "openai", "sk-1234"))

	assert.Equal(t, []string{"anthropic", "openai", "voyage"}, s.Providers("alice"))
	assert.Empty(t, s.Providers("bob"))
}

func TestStore_MaskedKeys_NeverExposeFullKey(t *testing.T) {
	s := newTestStore(t)
	raw := "sk-test-1234567890abcd"

	require.NoError(t, s.Set("alice", "openai", raw))

	masked := s.MaskedKeys("alice")
	require.Contains(t, masked, "openai")
	assert.NotEqual(t, raw, masked["openai"])
	assert.NotContains(t, masked["openai"], "sk-test")
	assert.Contains(t, masked["openai"], "abcd")
}

func TestStore_KeyFor(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("alice", "anthropic", "sk-ant-9876"))

	assert.Equal(t, "sk-ant-9876", s.KeyFor("alice", "anthropic"))
	assert.Equal(t, "", s.KeyFor("alice", "openai"))
	assert.Equal(t, "", s.KeyFor("bob", "anthropic"))

	var resolver = s.Resolver()
	assert.Equal(t, "sk-ant-9876", resolver.KeyFor("alice", "anthropic"))
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "user_api_keys.json")
	log := logging.New(nil, "silent")

	s := New(file, log)
	require.NoError(t, s.Set("alice", "openai", "sk-roundtrip-1234"))
	require.NoError(t, s.Set("bob", "gemini", "AIza-roundtrip"))

	reloaded := New(file, log)
	key, ok := reloaded.Get("alice", "openai")
	require.True(t, ok)
	assert.Equal(t, "sk-roundtrip-1234", key)
	assert.Equal(t, []string{"alice", "bob"}, reloaded.Users())
}

func TestStore_CorruptFileStartsEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "user_api_keys.json")
	require.NoError(t, os.WriteFile(file, []byte("{{{"), 0o600))

	s := New(file, logging.New(nil, "silent"))
	assert.Empty(t, s.Users())

	_, err := os.Stat(file + ".corrupt")
	assert.NoError(t, err)

	// The store still works after recovering.
	require.NoError(t, s.Set("alice", "openai", "sk-after-corrupt"))
	key, ok := s.Get("alice", "openai")
	require.True(t, ok)
	assert.Equal(t, "sk-after-corrupt", key)
}
