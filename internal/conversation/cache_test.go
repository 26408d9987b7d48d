package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, historyLimit int) *Cache {
	t.Helper()
	return NewCache(filepath.Join(t.TempDir(), "conversation_cache.json"), historyLimit, nil, logging.New(nil, "silent"))
}

func TestCache_GetOrCreate_ReusesByUserAndDocument(t *testing.T) {
	c := newTestCache(t, 0)

	first, err := c.GetOrCreate("alice", "/tmp/model.xlsx")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "alice", first.UserID)

	again, err := c.GetOrCreate("alice", "/tmp/model.xlsx")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := c.GetOrCreate("alice", "/tmp/other.xlsx")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	bob, err := c.GetOrCreate("bob", "/tmp/model.xlsx")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, bob.ID)
}

func TestCache_GetOrCreate_RequiresUser(t *testing.T) {
	c := newTestCache(t, 0)

	_, err := c.GetOrCreate("", "/tmp/model.xlsx")
	assert.Error(t, err)
}

func TestCache_AppendAndHistory(t *testing.T) {
	c := newTestCache(t, 0)

	conv, err := c.GetOrCreate("alice", "")
	require.NoError(t, err)

	require.NoError(t, c.Append(conv.ID, domain.Message{Role: domain.RoleUser, Content: "hello"}))
	require.NoError(t, c.Append(conv.ID, domain.Message{Role: domain.RoleAssistant, Content: "hi there"}))

	history := c.History(conv.ID, 0)
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.False(t, history[0].Timestamp.IsZero(), "timestamps should be stamped on append")

	last := c.History(conv.ID, 1)
	require.Len(t, last, 1)
	assert.Equal(t, "hi there", last[0].Content)
}

func TestCache_Append_UnknownConversation(t *testing.T) {
	c := newTestCache(t, 0)

	err := c.Append("missing", domain.Message{Role: domain.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_Append_TrimsHistory(t *testing.T) {
	c := newTestCache(t, 4)

	conv, err := c.GetOrCreate("alice", "")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Append(conv.ID, domain.Message{
			Role:    domain.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		}))
	}

	history := c.History(conv.ID, 0)
	require.Len(t, history, 4)
	assert.Equal(t, "message 6", history[0].Content)
	assert.Equal(t, "message 9", history[3].Content)
}

func TestCache_Append_BumpsUpdatedAt(t *testing.T) {
	c := newTestCache(t, 0)

	conv, err := c.GetOrCreate("alice", "")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Append(conv.ID, domain.Message{Role: domain.RoleUser, Content: "x"}))

	updated, err := c.Get(conv.ID)
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(conv.UpdatedAt))
}

func TestCache_List_NewestFirst(t *testing.T) {
	c := newTestCache(t, 0)

	first, err := c.GetOrCreate("alice", "/tmp/a.xlsx")
	require.NoError(t, err)
	second, err := c.GetOrCreate("alice", "/tmp/b.xlsx")
	require.NoError(t, err)
	_, err = c.GetOrCreate("bob", "/tmp/c.xlsx")
	require.NoError(t, err)

	// Touch the older conversation so it becomes the most recent.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Append(first.ID, domain.Message{Role: domain.RoleUser, Content: "bump"}))

	list := c.List("alice")
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t, 0)

	conv, err := c.GetOrCreate("alice", "/tmp/a.xlsx")
	require.NoError(t, err)

	require.NoError(t, c.Delete(conv.ID))
	_, err = c.Get(conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Delete(conv.ID), ErrNotFound)

	// A fresh conversation takes over the user/document key.
	fresh, err := c.GetOrCreate("alice", "/tmp/a.xlsx")
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, fresh.ID)
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t, 0)

	_, err := c.GetOrCreate("alice", "/tmp/a.xlsx")
	require.NoError(t, err)
	_, err = c.GetOrCreate("alice", "/tmp/b.xlsx")
	require.NoError(t, err)
	keep, err := c.GetOrCreate("bob", "/tmp/c.xlsx")
	require.NoError(t, err)

	removed, err := c.Clear("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Empty(t, c.List("alice"))

	_, err = c.Get(keep.ID)
	assert.NoError(t, err)
}

func TestCache_PersistenceRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conversation_cache.json")
	log := logging.New(nil, "silent")

	c := NewCache(file, 0, nil, log)
	conv, err := c.GetOrCreate("alice", "/tmp/model.xlsx")
	require.NoError(t, err)
	require.NoError(t, c.Append(conv.ID, domain.Message{Role: domain.RoleUser, Content: "hello"}))
	require.NoError(t, c.Append(conv.ID, domain.Message{Role: domain.RoleAssistant, Content: "hi"}))

	reloaded := NewCache(file, 0, nil, log)
	assert.Equal(t, 1, reloaded.Count())

	got, err := reloaded.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "/tmp/model.xlsx", got.DocumentPath)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hello", got.Messages[0].Content)

	// The same user/document pair resolves to the restored conversation.
	again, err := reloaded.GetOrCreate("alice", "/tmp/model.xlsx")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conversation_cache.json")
	require.NoError(t, os.WriteFile(file, []byte("no json here"), 0o600))

	c := NewCache(file, 0, nil, logging.New(nil, "silent"))
	assert.Equal(t, 0, c.Count())

	_, err := os.Stat(file + ".corrupt")
	assert.NoError(t, err)
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := newTestCache(t, 0)

	conv, err := c.GetOrCreate("alice", "")
	require.NoError(t, err)
	require.NoError(t, c.Append(conv.ID, domain.Message{Role: domain.RoleUser, Content: "original"}))

	got, err := c.Get(conv.ID)
	require.NoError(t, err)
	got.Messages[0].Content = "mutated"

	fresh, err := c.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.Messages[0].Content)
}
