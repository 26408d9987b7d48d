package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
)

// SessionStore is the conversation history the runner reads and writes.
// conversation.Cache is the persistent implementation; MemorySessionStore
// backs tests and the one-shot CLI chat path.
type SessionStore interface {
	// GetOrCreate returns the conversation for a user/document pair,
	// creating it on first use.
	GetOrCreate(userID, documentPath string) (*domain.Conversation, error)

	// Get returns a conversation by ID.
	Get(id string) (*domain.Conversation, error)

	// Append adds a message to a conversation.
	Append(id string, msg domain.Message) error

	// History returns the last n messages, oldest first. n <= 0 returns all.
	History(id string, n int) []domain.Message
}

// MemorySessionStore is an in-memory SessionStore.
type MemorySessionStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	byKey         map[string]string // ConversationKey → conversation ID
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		conversations: make(map[string]*domain.Conversation),
		byKey:         make(map[string]string),
	}
}

func (s *MemorySessionStore) GetOrCreate(userID, documentPath string) (*domain.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("agent: user required")
	}
	key := domain.ConversationKey(userID, documentPath)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[key]; ok {
		if conv, ok := s.conversations[id]; ok {
			return copyConversation(conv), nil
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
	s.conversations[conv.ID] = conv
	s.byKey[key] = conv.ID
	return copyConversation(conv), nil
}

func (s *MemorySessionStore) Get(id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("agent: conversation %s not found", id)
	}
	return copyConversation(conv), nil
}

func (s *MemorySessionStore) Append(id string, msg domain.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("agent: conversation %s not found", id)
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()
	return nil
}

func (s *MemorySessionStore) History(id string, n int) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
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

func copyConversation(conv *domain.Conversation) *domain.Conversation {
	out := *conv
	out.Messages = make([]domain.Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return &out
}
