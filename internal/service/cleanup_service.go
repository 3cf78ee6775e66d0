package service

import (
	"context"
	"database/sql"
	"time"

	"feedkeeper/internal/logger"
	"feedkeeper/internal/model"
	"feedkeeper/internal/repository"
)

// CleanupOptions selects which maintenance steps to run. Zero value does
// nothing.
type CleanupOptions struct {
	PurgeRead     bool   `json:"purgeRead"`
	EmptyBin      bool   `json:"emptyBin"`
	OlderThanDays int    `json:"olderThanDays"`
	Compact       bool   `json:"compact"`
	AccountID     *int64 `json:"accountId,omitempty"`

	// Progress, when set, is called after each completed step with the
	// step name and how many rows it touched.
	Progress CleanupProgress `json:"-"`
}

// CleanupProgress receives per-step completion notices during a run.
type CleanupProgress func(step string, touched int64)

// CleanupReport counts what each step touched.
type CleanupReport struct {
	ReadPurged int64 `json:"readPurged"`
	BinEmptied int64 `json:"binEmptied"`
	AgedPurged int64 `json:"agedPurged"`
	Removed    int64 `json:"removed"`
}

type CleanupService interface {
	Run(ctx context.Context, opts CleanupOptions) (CleanupReport, error)
}

type cleanupService struct {
	db       *sql.DB
	messages repository.MessageRepository
	tree     TreeService
	syncCtx  *SyncContext
}

func NewCleanupService(db *sql.DB, messages repository.MessageRepository, tree TreeService, syncCtx *SyncContext) CleanupService {
	return &cleanupService{db: db, messages: messages, tree: tree, syncCtx: syncCtx}
}

// compactBatchSize bounds each physical delete so compaction never holds
// the write lock for long.
const compactBatchSize = 500

// Run executes the selected steps in order: purge read, empty bin, purge
// aged, compact. Cleanup is a critical operation, so it excludes updates
// on the accounts it touches.
func (s *cleanupService) Run(ctx context.Context, opts CleanupOptions) (CleanupReport, error) {
	report := CleanupReport{}
	progress := opts.Progress
	if progress == nil {
		progress = func(string, int64) {}
	}

	accounts := s.tree.ListAccounts()
	if opts.AccountID != nil {
		account, ok := s.tree.GetItem(*opts.AccountID)
		if !ok {
			return report, ErrNotFound
		}
		accounts = accounts[:0]
		accounts = append(accounts, account)
	}
	locked := make([]int64, 0, len(accounts))
	defer func() {
		for _, id := range locked {
			s.syncCtx.Release(id)
		}
	}()
	for _, account := range accounts {
		if err := s.syncCtx.Acquire(account.ID, "cleanup"); err != nil {
			return report, err
		}
		locked = append(locked, account.ID)
	}

	if opts.PurgeRead {
		n, err := s.messages.PurgeRead(ctx, opts.AccountID)
		if err != nil {
			return report, &StorageError{Op: "purge read", Err: err}
		}
		report.ReadPurged = n
		progress("purge-read", n)
	}

	if opts.EmptyBin {
		n, err := s.messages.EmptyBin(ctx, opts.AccountID)
		if err != nil {
			return report, &StorageError{Op: "empty bin", Err: err}
		}
		report.BinEmptied = n
		progress("empty-bin", n)
	}

	if opts.OlderThanDays > 0 {
		before := time.Now().UTC().AddDate(0, 0, -opts.OlderThanDays)
		n, err := s.messages.PurgeOlderThan(ctx, opts.AccountID, before)
		if err != nil {
			return report, &StorageError{Op: "purge aged", Err: err}
		}
		report.AgedPurged = n
		progress("purge-aged", n)
	}

	if opts.Compact {
		for {
			n, err := s.messages.DeletePermanentlyDeleted(ctx, compactBatchSize)
			if err != nil {
				return report, &StorageError{Op: "compact", Err: err}
			}
			report.Removed += n
			if n < compactBatchSize {
				break
			}
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
		}
		if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
			return report, &StorageError{Op: "vacuum", Err: err}
		}
		progress("compact", report.Removed)
	}

	if err := s.refreshCounters(ctx, accounts); err != nil {
		return report, err
	}

	logger.Info("cleanup finished",
		"module", "cleanup", "action", "run", "resource", "storage", "result", "ok",
		"read_purged", report.ReadPurged, "bin_emptied", report.BinEmptied,
		"aged_purged", report.AgedPurged, "removed", report.Removed)
	return report, nil
}

// refreshCounters recomputes feed counters from storage after bulk
// mutations, where incremental deltas are not worth tracking.
func (s *cleanupService) refreshCounters(ctx context.Context, accounts []model.Item) error {
	counts, err := s.messages.AllFeedCounts(ctx)
	if err != nil {
		return &StorageError{Op: "refresh counters", Err: err}
	}
	byFeed := make(map[int64]repository.FeedCounts, len(counts))
	for _, c := range counts {
		byFeed[c.FeedID] = c
	}
	for _, account := range accounts {
		for _, feed := range s.tree.FeedsForAccount(account.ID) {
			c := byFeed[feed.ID]
			s.tree.ApplyFeedCounts(feed.ID, c.Unread, c.Total)
		}
		s.tree.RefreshBinCounts(ctx, account.ID)
	}
	return nil
}
