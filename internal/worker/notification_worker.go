package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/notification"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// DefaultRetrySchedule is the wait before the 2nd, 3rd and 4th attempts.
var DefaultRetrySchedule = []time.Duration{30 * time.Second, time.Minute, 5 * time.Minute}

// NotificationWorker delivers PENDING notification events. A failed attempt
// is rescheduled per the retry schedule; once the schedule is exhausted the
// event becomes FAILED and is logged for operators.
type NotificationWorker struct {
	notifications repository.NotificationRepository
	sender        notification.Sender
	schedule      []time.Duration
	batchSize     int
	lease         time.Duration
	clock         func() time.Time
	logger        *zap.Logger
	metrics       *observability.Metrics
	wake          chan struct{}
}

// Config tunes the worker.
type Config struct {
	RetrySchedule []time.Duration
	BatchSize     int
	// Lease is how long a claimed event stays invisible to other workers.
	Lease time.Duration
	Clock func() time.Time
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(notifications repository.NotificationRepository, sender notification.Sender, cfg Config, logger *zap.Logger, metrics *observability.Metrics) *NotificationWorker {
	w := &NotificationWorker{
		notifications: notifications,
		sender:        sender,
		schedule:      cfg.RetrySchedule,
		batchSize:     cfg.BatchSize,
		lease:         cfg.Lease,
		clock:         cfg.Clock,
		logger:        logger,
		metrics:       metrics,
		wake:          make(chan struct{}, 1),
	}
	if len(w.schedule) == 0 {
		w.schedule = DefaultRetrySchedule
	}
	if w.batchSize <= 0 {
		w.batchSize = 50
	}
	if w.lease <= 0 {
		w.lease = time.Minute
	}
	if w.clock == nil {
		w.clock = time.Now
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// MaxAttempts is the number of sends tried before an event is FAILED.
func (w *NotificationWorker) MaxAttempts() int {
	return len(w.schedule) + 1
}

// Wake requests an immediate delivery pass. It never blocks.
func (w *NotificationWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// RunOnce claims due events and attempts each once. It returns the number of
// events claimed.
func (w *NotificationWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.clock()
	due, err := w.notifications.ClaimDue(ctx, now, w.batchSize, w.lease)
	if err != nil {
		return 0, err
	}
	for _, event := range due {
		if ctx.Err() != nil {
			return len(due), ctx.Err()
		}
		w.deliver(ctx, event)
	}
	return len(due), nil
}

func (w *NotificationWorker) deliver(ctx context.Context, event domain.NotificationEvent) {
	ctx, span := observability.StartSpan(ctx, "NotificationWorker.deliver")
	sendErr := w.sender.Send(ctx, event)
	observability.EndSpan(span, sendErr)

	attempt := event.Attempt + 1
	now := w.clock()
	if sendErr == nil {
		if err := w.notifications.MarkSent(ctx, event.ID, attempt, now); err != nil {
			w.logger.Error("mark notification sent", zap.String("id", event.ID), zap.Error(err))
			return
		}
		w.metrics.RecordNotification("sent")
		return
	}

	if attempt >= w.MaxAttempts() {
		if err := w.notifications.MarkFailed(ctx, event.ID, attempt, sendErr.Error()); err != nil {
			w.logger.Error("mark notification failed", zap.String("id", event.ID), zap.Error(err))
			return
		}
		w.metrics.RecordNotification("failed")
		w.logger.Error("notification delivery failed permanently",
			zap.String("id", event.ID),
			zap.String("ticket_id", event.TicketID),
			zap.String("type", string(event.Type)),
			zap.String("channel", event.Channel),
			zap.Int("attempts", attempt),
			zap.String("last_error", sendErr.Error()))
		return
	}

	next := now.Add(w.schedule[attempt-1])
	if err := w.notifications.MarkRetry(ctx, event.ID, attempt, sendErr.Error(), next); err != nil {
		w.logger.Error("reschedule notification", zap.String("id", event.ID), zap.Error(err))
		return
	}
	w.metrics.RecordNotification("retry")
	w.logger.Warn("notification delivery failed, retrying",
		zap.String("id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.Int("attempt", attempt),
		zap.Time("next_attempt_at", next),
		zap.Error(sendErr))
}

// Start runs delivery passes on every tick or wake-up until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("notification worker pass failed", zap.Error(err))
		}
	}
}
