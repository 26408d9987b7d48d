// Package conversation persists chat history to conversation_cache.json.
// The cache doubles as the agent's session store: the runner reads history
// through it and writes both sides of every turn back.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/hooks"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

// ErrNotFound is returned for unknown conversation IDs.
var ErrNotFound = errors.New("conversation: not found")

const cacheVersion = 1

// DefaultHistoryLimit bounds how many messages a conversation keeps.
const DefaultHistoryLimit = 40

// record is the persisted shape of one conversation.
type record struct {
	UserID       string           `json:"user_id"`
	DocumentPath string           `json:"document_path,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Messages     []domain.Message `json:"messages,omitempty"`
}

type cacheFile struct {
	Version       int               `json:"version"`
	Conversations map[string]record `json:"conversations"`
}

// Cache stores conversations keyed by ID, with a secondary index so the
// same user/document pair keeps landing in the same conversation.
type Cache struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	byKey         map[string]string // ConversationKey → conversation ID

	file         string
	historyLimit int
	hooks        *hooks.Manager
	log          *logging.Logger
}

// NewCache loads the conversation cache from file. A missing file starts
// empty; a corrupt one is moved aside. The hooks manager may be nil.
func NewCache(file string, historyLimit int, hk *hooks.Manager, log *logging.Logger) *Cache {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	c := &Cache{
		conversations: make(map[string]*domain.Conversation),
		byKey:         make(map[string]string),
		file:          file,
		historyLimit:  historyLimit,
		hooks:         hk,
		log:           log.Sub("conversation"),
	}
	c.load()
	return c
}

// Count returns the number of stored conversations.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conversations)
}

// GetOrCreate returns the conversation for a user/document pair, creating
// it on first use.
func (c *Cache) GetOrCreate(userID, documentPath string) (*domain.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("conversation: user required")
	}
	key := domain.ConversationKey(userID, documentPath)

	c.mu.Lock()
	if id, ok := c.byKey[key]; ok {
		if conv, ok := c.conversations[id]; ok {
			out := copyConversation(conv)
			c.mu.Unlock()
			return out, nil
		}
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:           uuid.New().String(),
		UserID:       userID,
		DocumentPath: documentPath,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.conversations[conv.ID] = conv
	c.byKey[key] = conv.ID
	err := c.saveLocked()
	out := copyConversation(conv)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("id", out.ID).Str("user", userID).Msg("conversation created")
	return out, nil
}

// Get returns a conversation by ID.
func (c *Cache) Get(id string) (*domain.Conversation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conv, ok := c.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

// Append adds a message to a conversation, trimming history to the
// configured limit and bumping UpdatedAt.
func (c *Cache) Append(id string, msg domain.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	c.mu.Lock()
	conv, ok := c.conversations[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	conv.Messages = append(conv.Messages, msg)
	if len(conv.Messages) > c.historyLimit {
		trimmed := make([]domain.Message, c.historyLimit)
		copy(trimmed, conv.Messages[len(conv.Messages)-c.historyLimit:])
		conv.Messages = trimmed
	}
	conv.UpdatedAt = time.Now()
	err := c.saveLocked()
	n := len(conv.Messages)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.emit(hooks.EventConversationSaved, map[string]any{
		"conversation_id": id,
		"messages":        n,
	})
	return nil
}

// History returns the last n messages of a conversation, oldest first.
// n <= 0 returns the full history.
func (c *Cache) History(id string, n int) []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conv, ok := c.conversations[id]
	if !ok {
		return nil
	}
	msgs := conv.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Delete removes a conversation.
func (c *Cache) Delete(id string) error {
	c.mu.Lock()
	conv, ok := c.conversations[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	delete(c.conversations, id)
	key := domain.ConversationKey(conv.UserID, conv.DocumentPath)
	if c.byKey[key] == id {
		delete(c.byKey, key)
	}
	err := c.saveLocked()
	c.mu.Unlock()
	return err
}

// List returns a user's conversations, most recently updated first.
func (c *Cache) List(userID string) []domain.Conversation {
	c.mu.RLock()
	out := make([]domain.Conversation, 0)
	for _, conv := range c.conversations {
		if conv.UserID != userID {
			continue
		}
		out = append(out, *copyConversation(conv))
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Clear deletes all of a user's conversations and returns how many were
// removed.
func (c *Cache) Clear(userID string) (int, error) {
	c.mu.Lock()
	removed := 0
	for id, conv := range c.conversations {
		if conv.UserID != userID {
			continue
		}
		delete(c.conversations, id)
		key := domain.ConversationKey(conv.UserID, conv.DocumentPath)
		if c.byKey[key] == id {
			delete(c.byKey, key)
		}
		removed++
	}
	var err error
	if removed > 0 {
		err = c.saveLocked()
	}
	c.mu.Unlock()
	return removed, err
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.file)
	if err != nil {
		return
	}

	var parsed cacheFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		corrupt := c.file + ".corrupt"
		if renameErr := os.Rename(c.file, corrupt); renameErr == nil {
			c.log.Warn().Str("movedTo", corrupt).Msg("corrupt conversation cache moved aside")
		} else {
			c.log.Warn().Err(err).Msg("corrupt conversation cache ignored")
		}
		return
	}

	for id, rec := range parsed.Conversations {
		conv := &domain.Conversation{
			ID:           id,
			UserID:       rec.UserID,
			DocumentPath: rec.DocumentPath,
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
			Messages:     rec.Messages,
		}
		c.conversations[id] = conv

		// Newest conversation wins the user/document key.
		key := domain.ConversationKey(conv.UserID, conv.DocumentPath)
		if cur, ok := c.byKey[key]; !ok || conv.UpdatedAt.After(c.conversations[cur].UpdatedAt) {
			c.byKey[key] = id
		}
	}
}

func (c *Cache) saveLocked() error {
	payload := cacheFile{
		Version:       cacheVersion,
		Conversations: make(map[string]record, len(c.conversations)),
	}
	for id, conv := range c.conversations {
		payload.Conversations[id] = record{
			UserID:       conv.UserID,
			DocumentPath: conv.DocumentPath,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			Messages:     conv.Messages,
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding conversations: %w", err)
	}

	tmp := c.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing conversations: %w", err)
	}
	if err := os.Rename(tmp, c.file); err != nil {
		return fmt.Errorf("replacing conversations: %w", err)
	}
	return nil
}

func (c *Cache) emit(event string, data map[string]any) {
	if c.hooks == nil {
		return
	}
	c.hooks.Emit(context.Background(), event, data)
}

func copyConversation(conv *domain.Conversation) *domain.Conversation {
	out := *conv
	out.Messages = make([]domain.Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return &out
}
