package store

import (
	"context"
	"encoding/json"
	"path"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// redisStore keeps chats in Redis with the keys:
//   - `<prefix>/chatstore/<tenantID>/messages/<chatID>` list of JSON messages
//   - `<prefix>/chatstore/<tenantID>/info/<chatID>` JSON chat info
//   - `<prefix>/chatstore/<tenantID>/chats` set of chat IDs
type redisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store on the Redis client, with keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) MessageStore {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) messagesKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "messages", chatID)
}

func (m *redisStore) infoKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "info", chatID)
}

func (m *redisStore) listKey(tenantID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "chats")
}

func (m *redisStore) Messages(ctx context.Context, chatID string) ([]llms.Message, error) {
	if chatID == "" {
		return nil, ErrInvalidChat
	}
	data, err := m.client.LRange(ctx, m.messagesKey(Tenant(ctx), chatID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messages from Redis")
	}

	messages := make([]llms.Message, 0, len(data))
	for _, item := range data {
		var msg llms.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal message", "chat", chatID, "err", err.Error())
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (m *redisStore) Add(ctx context.Context, chatID string, msgs ...llms.Message) error {
	if chatID == "" {
		return ErrInvalidChat
	}
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		values = append(values, data)
	}

	key := m.messagesKey(Tenant(ctx), chatID)
	pipe := m.client.Pipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -MaxMessages, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store message in Redis")
	}

	_, err := m.UpdateChat(ctx, chatID, "", nil)
	return err
}

func (m *redisStore) Reset(ctx context.Context, chatID string) error {
	if chatID == "" {
		return ErrInvalidChat
	}
	tenantID := Tenant(ctx)
	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.messagesKey(tenantID, chatID))
	pipe.Del(ctx, m.infoKey(tenantID, chatID))
	pipe.SRem(ctx, m.listKey(tenantID), chatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to reset chat in Redis")
	}
	return nil
}

func (m *redisStore) UpdateChat(ctx context.Context, chatID, title string, metadata map[string]any) (*ChatInfo, error) {
	if chatID == "" {
		return nil, ErrInvalidChat
	}
	chat, err := m.chatInfo(ctx, chatID)
	if err != nil {
		return nil, err
	}
	chat.update(title, metadata)
	if err = m.save(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (m *redisStore) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	if chatID == "" {
		return nil, ErrInvalidChat
	}
	chat, err := m.chatInfo(ctx, chatID)
	if err != nil {
		return nil, err
	}
	chat.Messages, err = m.Messages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (m *redisStore) ListChats(ctx context.Context) ([]string, error) {
	ids, err := m.client.SMembers(ctx, m.listKey(Tenant(ctx))).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}
	slices.Sort(ids)
	return ids, nil
}

// Cleanup deletes the chats of the tenant not updated within olderThan,
// and returns the number of deleted chats.
func Cleanup(ctx context.Context, client redis.UniversalClient, prefix, tenantID string, olderThan time.Duration) (uint32, error) {
	m := &redisStore{client: client, prefix: prefix}
	listKey := m.listKey(tenantID)
	ids, err := client.SMembers(ctx, listKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chats from Redis")
	}

	deleted := uint32(0)
	cutoff := time.Now().Add(-olderThan)
	for _, chatID := range ids {
		data, err := client.Get(ctx, m.infoKey(tenantID, chatID)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return deleted, errors.Wrap(err, "failed to get chat info")
		}
		var chat ChatInfo
		if err := json.Unmarshal(data, &chat); err != nil {
			return deleted, errors.Wrap(err, "failed to unmarshal chat info")
		}
		if !chat.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := m.Reset(WithTenant(ctx, tenantID), chatID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// chatInfo returns the stored chat info, or a new chat when none is stored.
func (m *redisStore) chatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	tenantID := Tenant(ctx)
	data, err := m.client.Get(ctx, m.infoKey(tenantID, chatID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, errors.Wrap(err, "failed to get chat info from Redis")
		}
		return newChatInfo(tenantID, chatID), nil
	}
	chat := new(ChatInfo)
	if err = json.Unmarshal(data, chat); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chat info")
	}
	return chat, nil
}

func (m *redisStore) save(ctx context.Context, chat *ChatInfo) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}
	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.infoKey(chat.TenantID, chat.ChatID), data, 0)
	pipe.SAdd(ctx, m.listKey(chat.TenantID), chat.ChatID)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store chat info in Redis")
	}
	return nil
}
