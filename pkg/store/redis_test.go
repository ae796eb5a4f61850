package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscon "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisStore(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	redisContainer, err := rediscon.Run(ctx, "redis:7",
		testcontainers.WithConfigModifier(func(config *container.Config) {
			config.Env = []string{
				"ALLOW_EMPTY_PASSWORD=yes",
			}
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, redisContainer.Terminate(ctx))
	})

	host, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)
	options, err := redis.ParseURL(host)
	require.NoError(t, err)

	client := redis.NewClient(options)
	require.NoError(t, client.Ping(ctx).Err(), "failed to connect to Redis")

	root := fmt.Sprintf("test-%d", time.Now().Unix())
	testStore(t, store.NewRedisStore(client, root))

	tctx := store.WithTenant(ctx, "tenant3")
	st := store.NewRedisStore(client, root)
	require.NoError(t, st.Add(tctx, "old", llms.MessageFromTextParts(llms.RoleHuman, "Hello")))

	n, err := store.Cleanup(ctx, client, root, "tenant3", time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Cleanup(ctx, client, root, "tenant3", -time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)

	chats, err := st.ListChats(tctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}
