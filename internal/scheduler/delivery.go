package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/notifier"
)

// Priority selects the delivery policy of a message.
type Priority int

const (
	PriorityHigh Priority = iota // confirmed signals
	PriorityLow                  // pre-signals
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

// DeliveryPolicy bounds outbound throughput for one priority.
type DeliveryPolicy struct {
	BatchSize    int
	MessageDelay time.Duration
}

// DeliveryConfig holds both policies and the pause between batches.
type DeliveryConfig struct {
	High       DeliveryPolicy
	Low        DeliveryPolicy
	BatchPause time.Duration
	// SendTimeout bounds a single message including its retries; the send
	// is not torn down by Stop.
	SendTimeout time.Duration
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries int
}

var DefaultDeliveryConfig = DeliveryConfig{
	High:        DeliveryPolicy{BatchSize: 30, MessageDelay: 50 * time.Millisecond},
	Low:         DeliveryPolicy{BatchSize: 20, MessageDelay: 100 * time.Millisecond},
	BatchPause:  time.Second,
	SendTimeout: 30 * time.Second,
	MaxRetries:  2,
}

func (c DeliveryConfig) policy(p Priority) DeliveryPolicy {
	if p == PriorityHigh {
		return c.High
	}
	return c.Low
}

// Deliverer sends one message to one chat, retrying transient failures up
// to maxRetries times. Errors wrapping notifier.ErrUnreachable are final.
type Deliverer interface {
	SendWithRetry(ctx context.Context, chatID int64, text string, maxRetries int) error
}

// splitBatches cuts ids into consecutive batches of at most size.
func splitBatches(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = 1
	}
	batches := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// broadcast sends text to a snapshot of the subscribers taken up front.
// Unreachable recipients are pruned from the live set; other failures are
// logged. Cancellation stops between messages, never mid-send.
func (s *Scheduler) broadcast(ctx context.Context, text string, prio Priority) (sent int) {
	pol := s.cfg.Delivery.policy(prio)
	batches := splitBatches(s.subscribers.Snapshot(), pol.BatchSize)

	for bi, batch := range batches {
		if bi > 0 && !sleepCtx(ctx, s.cfg.Delivery.BatchPause) {
			return sent
		}
		for mi, chatID := range batch {
			if mi > 0 && !sleepCtx(ctx, pol.MessageDelay) {
				return sent
			}
			if s.deliverOne(ctx, chatID, text) {
				sent++
			}
		}
	}
	s.metrics.SetSubscribers(s.subscribers.Len())
	log.Debug().Str("priority", prio.String()).Int("batches", len(batches)).Int("sent", sent).Msg("broadcast done")
	return sent
}

func (s *Scheduler) deliverOne(ctx context.Context, chatID int64, text string) bool {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Delivery.SendTimeout)
	defer cancel()

	err := s.deliverer.SendWithRetry(sendCtx, chatID, text, s.cfg.Delivery.MaxRetries)
	switch {
	case err == nil:
		s.metrics.Delivery(metrics.OutcomeSent)
		return true
	case errors.Is(err, notifier.ErrUnreachable):
		s.metrics.Delivery(metrics.OutcomeUnreachable)
		s.subscribers.Remove(sendCtx, chatID)
		log.Info().Int64("chat_id", chatID).Err(err).Msg("recipient unreachable, unsubscribed")
	default:
		s.metrics.Delivery(metrics.OutcomeFailed)
		log.Error().Int64("chat_id", chatID).Err(err).Msg("deliver message")
	}
	return false
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
