package bot

import (
	"sync"

	"github.com/shuttlekit/shuttlebot/internal/shuttle"
)

// DefaultMaxMemory is the number of messages a conversation retains.
const DefaultMaxMemory = 8

// Conversation is the bounded per-user message history. The oldest message is
// evicted first once the cap is reached.
type Conversation struct {
	mu        sync.Mutex
	messages  []shuttle.ChatMessage
	maxMemory int
}

// Add appends one role/content pair, evicting the oldest entry at capacity.
func (c *Conversation) Add(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) >= c.maxMemory {
		c.messages = c.messages[1:]
	}
	c.messages = append(c.messages, shuttle.Text(role, content))
}

// Messages returns a copy of the history in order.
func (c *Conversation) Messages() []shuttle.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]shuttle.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of retained messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// ConversationManager owns the per-user conversations for the process
// lifetime. Conversations are created lazily on first interaction and never
// explicitly destroyed, only reset.
type ConversationManager struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	maxMemory     int
}

// NewConversationManager creates a manager; maxMemory <= 0 uses the default.
func NewConversationManager(maxMemory int) *ConversationManager {
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}
	return &ConversationManager{
		conversations: make(map[string]*Conversation),
		maxMemory:     maxMemory,
	}
}

// GetOrCreate returns the conversation for userID, creating it on first use.
func (m *ConversationManager) GetOrCreate(userID string) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[userID]
	if !ok {
		conv = &Conversation{maxMemory: m.maxMemory}
		m.conversations[userID] = conv
	}
	return conv
}

// Clear resets the history for userID.
func (m *ConversationManager) Clear(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, userID)
}
