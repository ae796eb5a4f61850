package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/effective-security/llmkit/pkg/llms"
)

type chat struct {
	info     ChatInfo
	messages []llms.Message
}

type inMemory struct {
	mu    sync.RWMutex
	chats map[string]map[string]*chat
}

// NewMemoryStore returns a store that keeps chats in process memory.
func NewMemoryStore() MessageStore {
	return &inMemory{
		chats: make(map[string]map[string]*chat),
	}
}

func (m *inMemory) get(tenantID, chatID string, create bool) *chat {
	tenant := m.chats[tenantID]
	if tenant == nil {
		if !create {
			return nil
		}
		tenant = make(map[string]*chat)
		m.chats[tenantID] = tenant
	}
	c := tenant[chatID]
	if c == nil && create {
		c = &chat{info: *newChatInfo(tenantID, chatID)}
		tenant[chatID] = c
	}
	return c
}

func (m *inMemory) Messages(ctx context.Context, chatID string) ([]llms.Message, error) {
	if chatID == "" {
		return nil, ErrInvalidChat
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.get(Tenant(ctx), chatID, false)
	if c == nil {
		return nil, nil
	}
	return slices.Clone(c.messages), nil
}

func (m *inMemory) Add(ctx context.Context, chatID string, msgs ...llms.Message) error {
	if chatID == "" {
		return ErrInvalidChat
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(Tenant(ctx), chatID, true)
	c.messages = append(c.messages, msgs...)
	if n := len(c.messages); n > MaxMessages {
		c.messages = slices.Clone(c.messages[n-MaxMessages:])
	}
	c.info.update("", nil)
	return nil
}

func (m *inMemory) Reset(ctx context.Context, chatID string) error {
	if chatID == "" {
		return ErrInvalidChat
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats[Tenant(ctx)], chatID)
	return nil
}

func (m *inMemory) UpdateChat(ctx context.Context, chatID, title string, metadata map[string]any) (*ChatInfo, error) {
	if chatID == "" {
		return nil, ErrInvalidChat
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(Tenant(ctx), chatID, true)
	c.info.update(title, metadata)
	info := c.info
	info.Metadata = maps.Clone(c.info.Metadata)
	return &info, nil
}

func (m *inMemory) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	if chatID == "" {
		return nil, ErrInvalidChat
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(Tenant(ctx), chatID, true)
	info := c.info
	info.Metadata = maps.Clone(c.info.Metadata)
	info.Messages = slices.Clone(c.messages)
	return &info, nil
}

func (m *inMemory) ListChats(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.chats[Tenant(ctx)])), nil
}
