package notify_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/config"
	"github.com/warp/warehouse-engine/notify"
	"github.com/warp/warehouse-engine/warehousing"
)

// newRedis starts an in-process Redis and returns a notifier keeping keep
// entries per user.
func newRedis(t *testing.T, keep int64) (*notify.Redis, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	r := notify.NewRedisWithClient(client, keep)
	t.Cleanup(func() { r.Close() })
	return r, client, srv
}

func TestRedis_NotifyThenInbox(t *testing.T) {
	// GIVEN: An enabled notifier
	r, _, _ := newRedis(t, 10)
	ctx := context.Background()
	first := sample()
	second := sample()
	second.Message = "Your loan LN-1 has been approved"
	second.Metadata = map[string]string{"loan_id": "LN-1"}

	// WHEN: Two notifications are sent to the same user
	require.NoError(t, r.Notify(ctx, first))
	require.NoError(t, r.Notify(ctx, second))

	// THEN: The inbox returns them newest first, decoded
	got, err := r.Inbox(ctx, "farmer-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.Message, got[0].Message)
	assert.Equal(t, "LN-1", got[0].Metadata["loan_id"])
	assert.Equal(t, first, got[1])

	other, err := r.Inbox(ctx, "farmer-2", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRedis_InboxIsCapped(t *testing.T) {
	// GIVEN: A notifier keeping three entries per user
	r, _, srv := newRedis(t, 3)
	ctx := context.Background()

	// WHEN: Five notifications arrive
	for i := 1; i <= 5; i++ {
		n := sample()
		n.Message = fmt.Sprintf("message %d", i)
		require.NoError(t, r.Notify(ctx, n))
	}

	// THEN: Only the three newest survive
	stored, err := srv.List(notify.InboxKey("farmer-1"))
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	got, err := r.Inbox(ctx, "farmer-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "message 5", got[0].Message)
	assert.Equal(t, "message 4", got[1].Message)
}

func TestRedis_PublishesOnChannel(t *testing.T) {
	r, client, _ := newRedis(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, notify.Channel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Notify(ctx, sample()))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &body))
	assert.Equal(t, "farmer-1", body["user_id"])
	assert.Equal(t, string(warehousing.NotifySuccess), body["type"])
}

func TestRedis_CorruptEntryIsAnError(t *testing.T) {
	r, _, srv := newRedis(t, 10)
	_, err := srv.Lpush(notify.InboxKey("farmer-1"), "{not json")
	require.NoError(t, err)

	_, err = r.Inbox(context.Background(), "farmer-1", 10)

	assert.ErrorContains(t, err, "unmarshal")
}

func TestNewRedis_ConnectsWhenEnabled(t *testing.T) {
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)

	r, err := notify.NewRedis(config.RedisConfig{Enabled: true, Host: srv.Host(), Port: port})

	require.NoError(t, err)
	assert.True(t, r.Enabled())
	require.NoError(t, r.Notify(context.Background(), sample()))
	assert.True(t, srv.Exists(notify.InboxKey("farmer-1")))
	assert.NoError(t, r.Close())
}

func TestNewRedis_UnreachableServer(t *testing.T) {
	// A port that was just freed has nothing listening on it
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	_, err = notify.NewRedis(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: port})

	assert.ErrorContains(t, err, "failed to connect to Redis")
}
