package notify_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/config"
	"github.com/warp/warehouse-engine/notify"
	"github.com/warp/warehouse-engine/warehousing"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n warehousing.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func sample() warehousing.Notification {
	return warehousing.Notification{
		UserID:    "farmer-1",
		Message:   "Your booking BK-0001 was accepted",
		Type:      warehousing.NotifySuccess,
		Metadata:  map[string]string{"booking_no": "BK-0001"},
		CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestLog_WritesNotification(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewLog(zerolog.New(&buf))

	err := n.Notify(context.Background(), sample())

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, `"user_id":"farmer-1"`)
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, "BK-0001 was accepted")
}

func TestLog_WarningsLogAtWarn(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewLog(zerolog.New(&buf))
	msg := sample()
	msg.Type = warehousing.NotifyWarning

	require.NoError(t, n.Notify(context.Background(), msg))
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestMulti_DeliversToAllEvenAfterFailure(t *testing.T) {
	// GIVEN: the first notifier fails
	ctx := context.Background()
	msg := sample()
	failing := &mockNotifier{}
	failing.On("Notify", ctx, msg).Return(errors.New("smtp down"))
	working := &mockNotifier{}
	working.On("Notify", ctx, msg).Return(nil)

	// WHEN: fanning out
	err := notify.Multi{failing, working}.Notify(ctx, msg)

	// THEN: the second still receives it and the failure is reported
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Contains(t, err.Error(), "1 of 2")
	failing.AssertExpectations(t)
	working.AssertExpectations(t)
}

func TestMulti_AllSucceed(t *testing.T) {
	ctx := context.Background()
	msg := sample()
	a := &mockNotifier{}
	a.On("Notify", ctx, msg).Return(nil)

	assert.NoError(t, notify.Multi{a, nil}.Notify(ctx, msg))
	a.AssertNumberOfCalls(t, "Notify", 1)
}

func TestRedis_DisabledDropsNotifications(t *testing.T) {
	r, err := notify.NewRedis(config.RedisConfig{Enabled: false})
	require.NoError(t, err)

	assert.False(t, r.Enabled())
	assert.NoError(t, r.Notify(context.Background(), sample()))
	_, err = r.Inbox(context.Background(), "farmer-1", 10)
	assert.Error(t, err)
	assert.NoError(t, r.Close())
}

func TestInboxKey(t *testing.T) {
	assert.Equal(t, "notifications:farmer-1", notify.InboxKey("farmer-1"))
}
