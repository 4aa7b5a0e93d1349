package job

import (
	"context"
	"log/slog"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/infrastructure/lock"
	"fanloyalty/internal/infrastructure/mq"
	"fanloyalty/internal/model"
	"fanloyalty/internal/repository"

	"gorm.io/gorm"
)

// Publisher delivers one outbox record to the broker.
type Publisher interface {
	Publish(ctx context.Context, msg mq.Message) error
}

// OutboxSender publishes PENDING outbox rows in id order. A row is SENT once
// the broker acknowledged it and FAILED after MaxRetryCount attempts.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	leader     *leadership
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetry   int
	logger     *slog.Logger
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config, publisher Publisher, leaderLock *lock.DistributedLock) *OutboxSender {
	logger := slog.Default().With(slog.String("component", "outbox_sender"))
	interval, batchSize, maxRetry := cfg.Jobs.OutboxInterval, cfg.Jobs.OutboxBatchSize, cfg.Business.MaxRetryCount
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize < 1 {
		batchSize = 100
	}
	if maxRetry < 1 {
		maxRetry = 5
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		leader:     &leadership{lock: leaderLock, logger: logger},
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  batchSize,
		maxRetry:   maxRetry,
		logger:     logger,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("outbox sender started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.leader.release(context.Background())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("outbox sender exiting")
			return
		case <-s.stopCh:
			s.logger.Info("outbox sender stopped")
			return
		case <-ticker.C:
			if !s.leader.acquire(ctx) {
				continue
			}
			s.RunOnce(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// RunOnce sends one batch and returns how many rows were delivered.
// Delivery stops at the first failure so a membership's events are never reordered.
func (s *OutboxSender) RunOnce(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("load pending messages failed", slog.Any("err", err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if !s.sendMessage(ctx, msg) {
			break
		}
		sent++
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, mq.Message{
		Topic: msg.Topic,
		Key:   msg.MessageKey,
		Value: msg.Payload,
		Headers: map[string]string{
			"event_id":   msg.EventID,
			"event_type": msg.EventType,
		},
	})
	if err == nil {
		if err := s.outboxRepo.MarkSent(ctx, msg.ID); err != nil {
			// delivered but not marked; it goes out again and consumers dedupe on event_id
			s.logger.Error("mark message sent failed", slog.Int64("id", msg.ID), slog.Any("err", err))
		}
		return true
	}

	failed, recordErr := s.outboxRepo.RecordFailure(ctx, msg, s.maxRetry)
	if recordErr != nil {
		s.logger.Error("record send failure failed", slog.Int64("id", msg.ID), slog.Any("err", recordErr))
		return false
	}
	if failed {
		s.logger.Error("message parked after max retries",
			slog.Int64("id", msg.ID),
			slog.String("event_id", msg.EventID),
			slog.Int("retries", msg.RetryCount+1),
			slog.Any("err", err),
		)
		// parked rows no longer block the ones behind them
		return true
	}
	s.logger.Warn("send message failed", slog.Int64("id", msg.ID), slog.Int("retry", msg.RetryCount+1), slog.Any("err", err))
	return false
}
