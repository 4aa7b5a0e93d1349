package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/infrastructure/lock"
	"fanloyalty/internal/repository"
	"fanloyalty/internal/service"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// LedgerReconcileJob walks every membership and checks that its balance,
// lifetime-earned and journal agree with the completions and redemptions
// behind them. It only reports; it never corrects a balance.
type LedgerReconcileJob struct {
	membershipRepo *repository.MembershipRepository
	memberships    *service.MembershipService
	leader         *leadership
	stopCh         chan struct{}
	interval       time.Duration
	batchSize      int
	concurrency    int
	logger         *slog.Logger
}

func NewLedgerReconcileJob(db *gorm.DB, cfg *config.Config, memberships *service.MembershipService, leaderLock *lock.DistributedLock) *LedgerReconcileJob {
	logger := slog.Default().With(slog.String("component", "ledger_reconcile"))
	concurrency := cfg.Jobs.ReconcileConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	interval := cfg.Jobs.ReconcileInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	batchSize := cfg.Jobs.ReconcileBatchSize
	if batchSize < 1 {
		batchSize = 500
	}
	return &LedgerReconcileJob{
		membershipRepo: repository.NewMembershipRepository(db),
		memberships:    memberships,
		leader:         &leadership{lock: leaderLock, logger: logger},
		stopCh:         make(chan struct{}),
		interval:       interval,
		batchSize:      batchSize,
		concurrency:    concurrency,
		logger:         logger,
	}
}

func (j *LedgerReconcileJob) Start(ctx context.Context) {
	j.logger.Info("ledger reconcile started", slog.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	defer j.leader.release(context.Background())

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("ledger reconcile exiting")
			return
		case <-j.stopCh:
			j.logger.Info("ledger reconcile stopped")
			return
		case <-ticker.C:
			if !j.leader.acquire(ctx) {
				continue
			}
			summary, err := j.RunOnce(ctx)
			if err != nil {
				j.logger.Error("ledger reconcile pass failed", slog.Any("err", err))
				continue
			}
			j.logger.Info("ledger reconcile pass done", slog.Int64("checked", summary.Checked), slog.Int64("drifted", summary.Drifted))
		}
	}
}

func (j *LedgerReconcileJob) Stop() {
	close(j.stopCh)
}

type ReconcileSummary struct {
	Checked int64
	Drifted int64
	Drifts  []*service.LedgerReport
}

// RunOnce checks every membership once.
func (j *LedgerReconcileJob) RunOnce(ctx context.Context) (*ReconcileSummary, error) {
	var (
		mu      sync.Mutex
		checked atomic.Int64
		summary = &ReconcileSummary{}
		afterID int64
	)

	for {
		batch, err := j.membershipRepo.ListAfter(ctx, afterID, j.batchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(j.concurrency)
		for _, m := range batch {
			id := m.ID
			g.Go(func() error {
				report, err := j.check(gctx, id)
				if err != nil {
					return err
				}
				checked.Add(1)
				if report != nil {
					mu.Lock()
					summary.Drifts = append(summary.Drifts, report)
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		afterID = batch[len(batch)-1].ID
	}

	summary.Checked = checked.Load()
	summary.Drifted = int64(len(summary.Drifts))
	return summary, nil
}

// check returns the report of a membership that is still inconsistent on a
// second look; a first mismatch can be a write committed between the sums.
func (j *LedgerReconcileJob) check(ctx context.Context, membershipID int64) (*service.LedgerReport, error) {
	report, err := j.memberships.Reconcile(ctx, membershipID)
	if err != nil || report.Consistent() {
		return nil, err
	}
	report, err = j.memberships.Reconcile(ctx, membershipID)
	if err != nil || report.Consistent() {
		return nil, err
	}
	j.logger.Error("ledger drift",
		slog.Int64("membership_id", report.MembershipID),
		slog.Int64("balance", report.Balance),
		slog.Int64("lifetime_earned", report.LifetimeEarned),
		slog.Int64("earned", report.Earned),
		slog.Int64("spent", report.Spent),
		slog.Int64("journal", report.Journal),
	)
	return report, nil
}
