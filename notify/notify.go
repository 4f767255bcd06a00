/*
Package notify delivers warehousing notifications.

IMPLEMENTATIONS:
  Log:    writes every notification to a zerolog.Logger
  Redis:  pushes JSON onto notifications:{user} (capped list) and publishes
          it on the notifications channel for live consumers
  Multi:  fans out to several notifiers and joins their errors

The service treats delivery as fire-and-forget, so a failing notifier only
costs a warning in the log.
*/
package notify

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/warp/warehouse-engine/warehousing"
)

// Log writes notifications to a logger.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "notify").Logger()}
}

func (l *Log) Notify(_ context.Context, n warehousing.Notification) error {
	ev := l.log.Info()
	if n.Type == warehousing.NotifyWarning || n.Type == warehousing.NotifyError {
		ev = l.log.Warn()
	}
	ev.Str("user_id", n.UserID).
		Str("type", string(n.Type)).
		Interface("metadata", n.Metadata).
		Msg(n.Message)
	return nil
}

// Multi delivers to every notifier, even after one fails.
type Multi []warehousing.Notifier

func (m Multi) Notify(ctx context.Context, n warehousing.Notification) error {
	var first error
	failed := 0
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if first != nil {
		return errors.Wrapf(first, "%d of %d notifiers failed", failed, len(m))
	}
	return nil
}

var (
	_ warehousing.Notifier = (*Log)(nil)
	_ warehousing.Notifier = Multi(nil)
)
