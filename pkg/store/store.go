// Package store keeps conversation history, so prior turns can be sent
// with the next request.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg", "store")

// MaxMessages is the number of most recent messages kept per chat.
const MaxMessages = 50

// DefaultTenant is used when the context has no tenant.
const DefaultTenant = "default"

// ErrInvalidChat is returned for an empty chat ID.
var ErrInvalidChat = errors.New("invalid chat ID")

// ChatInfo describes a chat.
type ChatInfo struct {
	TenantID  string         `json:"tenant_id"`
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	// Messages is only set by GetChatInfo.
	Messages []llms.Message `json:"messages,omitempty"`
}

// MessageStore stores the messages of chats of the tenant in the context.
type MessageStore interface {
	// Messages returns the messages of the chat, oldest first.
	Messages(ctx context.Context, chatID string) ([]llms.Message, error)
	// Add appends messages to the chat, creating it on first use.
	Add(ctx context.Context, chatID string, msgs ...llms.Message) error
	// Reset deletes the chat.
	Reset(ctx context.Context, chatID string) error
	// UpdateChat sets the title, if not empty, and merges metadata.
	UpdateChat(ctx context.Context, chatID, title string, metadata map[string]any) (*ChatInfo, error)
	// GetChatInfo returns the chat with its messages.
	GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error)
	// ListChats returns the chat IDs of the tenant.
	ListChats(ctx context.Context) ([]string, error)
}

type tenantKey struct{}

// WithTenant returns a context scoped to the tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// Tenant returns the tenant of the context, or DefaultTenant.
func Tenant(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultTenant
}

func newChatInfo(tenantID, chatID string) *ChatInfo {
	now := time.Now().UTC()
	return &ChatInfo{
		TenantID:  tenantID,
		ChatID:    chatID,
		Title:     "New Chat",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *ChatInfo) update(title string, metadata map[string]any) {
	if title != "" {
		c.Title = title
	}
	if len(metadata) > 0 && c.Metadata == nil {
		c.Metadata = make(map[string]any, len(metadata))
	}
	for k, v := range metadata {
		c.Metadata[k] = v
	}
	c.UpdatedAt = time.Now().UTC()
}
