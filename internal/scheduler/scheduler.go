package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"feedkeeper/internal/logger"
	"feedkeeper/internal/model"
	"feedkeeper/internal/service"
)

// tickInterval is how often due feeds are re-evaluated, not how often they
// are fetched.
const tickInterval = time.Minute

// Scheduler drives automatic updates. Every tick it resolves each feed's
// effective interval (feed-specific over account default over the global
// default), collects the due ones per account, and hands them to the sync
// engine. Accounts busy with another critical operation are skipped and
// picked up on a later tick.
type Scheduler struct {
	sync            service.SyncService
	tree            service.TreeService
	defaultInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
	cancelFunc      context.CancelFunc // cancels the in-flight batch
	mu              sync.Mutex         // protects cancelFunc
	now             func() time.Time
}

func New(syncService service.SyncService, tree service.TreeService, defaultInterval time.Duration) *Scheduler {
	if defaultInterval <= 0 {
		defaultInterval = time.Hour
	}
	return &Scheduler{
		sync:            syncService,
		tree:            tree,
		defaultInterval: defaultInterval,
		stopCh:          make(chan struct{}),
		now:             time.Now,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	logger.Info("scheduler started", "module", "scheduler", "action", "update", "resource", "feed", "result", "ok", "default_interval_min", int(s.defaultInterval.Minutes()))
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	logger.Info("scheduler stopped", "module", "scheduler", "action", "update", "resource", "feed", "result", "ok")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	s.tick()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) tick() {
	due := s.dueFeeds()
	if len(due) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), tickInterval*10)
	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.cancelFunc = nil
		s.mu.Unlock()
	}()

	// Account batches are independent: one account's slow backend must not
	// delay the others.
	var wg sync.WaitGroup
	for accountID, feedIDs := range due {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(accountID int64, feedIDs []int64) {
			defer wg.Done()
			_, err := s.sync.UpdateFeeds(ctx, accountID, feedIDs)
			if err != nil {
				if errors.Is(err, service.ErrOperationBusy) {
					logger.Debug("account busy, skipping scheduled update",
						"module", "scheduler", "action", "update", "resource", "account", "result", "skipped",
						"account_id", accountID)
					return
				}
				logger.Error("scheduled update failed",
					"module", "scheduler", "action", "update", "resource", "account", "result", "failed",
					"account_id", accountID, "error", err)
			}
		}(accountID, feedIDs)
	}
	wg.Wait()
}

// dueFeeds groups the ids of all currently due feeds by account.
func (s *Scheduler) dueFeeds() map[int64][]int64 {
	now := s.now()
	due := make(map[int64][]int64)
	for _, account := range s.tree.ListAccounts() {
		for _, feed := range s.tree.FeedsForAccount(account.ID) {
			interval, ok := s.effectiveInterval(account, feed)
			if !ok {
				continue
			}
			if feed.LastFetchedAt == nil || now.Sub(*feed.LastFetchedAt) >= interval {
				due[account.ID] = append(due[account.ID], feed.ID)
			}
		}
	}
	return due
}

// effectiveInterval resolves the update cadence for one feed. The second
// return value is false when the feed never auto-updates.
func (s *Scheduler) effectiveInterval(account, feed model.Item) (time.Duration, bool) {
	switch feed.AutoUpdateType {
	case model.AutoUpdateDisabled:
		return 0, false
	case model.AutoUpdateSpecific:
		if feed.AutoUpdateInterval != nil && *feed.AutoUpdateInterval > 0 {
			return time.Duration(*feed.AutoUpdateInterval) * time.Minute, true
		}
	}
	if account.Config != nil && account.Config.UpdateIntervalMinutes > 0 {
		return time.Duration(account.Config.UpdateIntervalMinutes) * time.Minute, true
	}
	return s.defaultInterval, true
}
