package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedkeeper/internal/model"
	"feedkeeper/internal/service"
)

type fakeTree struct {
	service.TreeService
	accounts []model.Item
	feeds    map[int64][]model.Item
}

func (f *fakeTree) ListAccounts() []model.Item { return f.accounts }

func (f *fakeTree) FeedsForAccount(accountID int64) []model.Item { return f.feeds[accountID] }

type fakeSync struct {
	service.SyncService
	mu    sync.Mutex
	calls map[int64][]int64
	busy  map[int64]bool
}

func (f *fakeSync) UpdateFeeds(_ context.Context, accountID int64, feedIDs []int64) (service.AccountReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy[accountID] {
		return service.AccountReport{}, &service.OperationBusyError{AccountID: accountID, Operation: "cleanup"}
	}
	if f.calls == nil {
		f.calls = make(map[int64][]int64)
	}
	f.calls[accountID] = append(f.calls[accountID], feedIDs...)
	return service.AccountReport{AccountID: accountID}, nil
}

func intPtr(v int) *int { return &v }

func feedItem(id, accountID int64, mode model.AutoUpdateType, interval *int, fetched *time.Time) model.Item {
	return model.Item{
		ID:                 id,
		AccountID:          accountID,
		Kind:               model.KindFeed,
		AutoUpdateType:     mode,
		AutoUpdateInterval: interval,
		LastFetchedAt:      fetched,
	}
}

func TestScheduler_EffectiveInterval(t *testing.T) {
	s := New(nil, nil, time.Hour)

	account := model.Item{ID: 1, Kind: model.KindServiceRoot, Config: &model.AccountConfig{Backend: model.BackendStandard}}

	// Feed-specific interval wins.
	interval, ok := s.effectiveInterval(account, feedItem(2, 1, model.AutoUpdateSpecific, intPtr(7), nil))
	require.True(t, ok)
	require.Equal(t, 7*time.Minute, interval)

	// Account default beats the global default.
	account.Config.UpdateIntervalMinutes = 30
	interval, ok = s.effectiveInterval(account, feedItem(2, 1, model.AutoUpdateDefault, nil, nil))
	require.True(t, ok)
	require.Equal(t, 30*time.Minute, interval)

	// Global default is the last resort.
	account.Config.UpdateIntervalMinutes = 0
	interval, ok = s.effectiveInterval(account, feedItem(2, 1, model.AutoUpdateDefault, nil, nil))
	require.True(t, ok)
	require.Equal(t, time.Hour, interval)

	// Disabled feeds are never due.
	_, ok = s.effectiveInterval(account, feedItem(2, 1, model.AutoUpdateDisabled, nil, nil))
	require.False(t, ok)

	// A specific mode without a usable interval falls through to defaults.
	interval, ok = s.effectiveInterval(account, feedItem(2, 1, model.AutoUpdateSpecific, nil, nil))
	require.True(t, ok)
	require.Equal(t, time.Hour, interval)
}

func TestScheduler_DueFeeds(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-5 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	tree := &fakeTree{
		accounts: []model.Item{
			{ID: 1, Kind: model.KindServiceRoot, Config: &model.AccountConfig{Backend: model.BackendStandard, UpdateIntervalMinutes: 60}},
		},
		feeds: map[int64][]model.Item{
			1: {
				feedItem(10, 1, model.AutoUpdateDefault, nil, nil),                 // never fetched
				feedItem(11, 1, model.AutoUpdateDefault, nil, &recent),            // fresh
				feedItem(12, 1, model.AutoUpdateDefault, nil, &stale),             // overdue
				feedItem(13, 1, model.AutoUpdateDisabled, nil, &stale),            // disabled
				feedItem(14, 1, model.AutoUpdateSpecific, intPtr(1), &recent),     // short specific interval
				feedItem(15, 1, model.AutoUpdateSpecific, intPtr(600), &stale),    // long specific interval
			},
		},
	}

	s := New(nil, tree, time.Hour)
	s.now = func() time.Time { return now }

	due := s.dueFeeds()
	require.Equal(t, map[int64][]int64{1: {10, 12, 14}}, due)
}

func TestScheduler_TickSkipsBusyAccounts(t *testing.T) {
	stale := time.Now().Add(-24 * time.Hour)
	tree := &fakeTree{
		accounts: []model.Item{
			{ID: 1, Kind: model.KindServiceRoot, Config: &model.AccountConfig{Backend: model.BackendStandard}},
			{ID: 2, Kind: model.KindServiceRoot, Config: &model.AccountConfig{Backend: model.BackendStandard}},
		},
		feeds: map[int64][]model.Item{
			1: {feedItem(10, 1, model.AutoUpdateDefault, nil, &stale)},
			2: {feedItem(20, 2, model.AutoUpdateDefault, nil, &stale)},
		},
	}
	syncSvc := &fakeSync{busy: map[int64]bool{1: true}}

	s := New(syncSvc, tree, time.Hour)
	s.tick()

	syncSvc.mu.Lock()
	defer syncSvc.mu.Unlock()
	require.NotContains(t, syncSvc.calls, int64(1), "busy account is skipped, not retried in the tick")
	require.Equal(t, []int64{20}, syncSvc.calls[2])
}
