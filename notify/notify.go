/*
Package notify delivers access.Notifications to the people in a case's
hierarchy.

NOTIFIERS:
  - LogNotifier:   writes each notification to a zap logger
  - RedisNotifier: publishes JSON on a per-user channel and keeps a capped
                   per-user inbox list
  - Fanout:        sends to several notifiers, continuing past failures

All notifiers satisfy access.Notifier. The controller treats delivery as
best-effort, so nothing here retries.
*/
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/customs-les/case-engine/access"
)

// =============================================================================
// LOG NOTIFIER
// =============================================================================

type LogNotifier struct {
	Logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n access.Notification) error {
	l.Logger.Info("notification sent",
		zap.String("user_id", n.UserID),
		zap.String("case_id", n.CaseID),
		zap.String("kind", string(n.Kind)),
		zap.String("priority", string(n.Priority)),
		zap.String("message", n.Message))
	return nil
}

// =============================================================================
// FANOUT
// =============================================================================

// Fanout delivers to every notifier in order. A failing notifier does not
// stop the others; all errors are joined.
type Fanout []access.Notifier

func (f Fanout) Notify(ctx context.Context, n access.Notification) error {
	var errs []error
	for _, notifier := range f {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
