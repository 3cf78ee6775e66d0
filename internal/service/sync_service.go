package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"feedkeeper/internal/backend"
	"feedkeeper/internal/logger"
	"feedkeeper/internal/model"
	"feedkeeper/internal/repository"
)

// SyncState is the engine's per-account phase. Failures are absorbed: the
// account always returns to idle.
type SyncState string

const (
	StateIdle     SyncState = "idle"
	StateFetching SyncState = "fetching"
	StateMerging  SyncState = "merging"
)

// FeedReport is the outcome of one feed's fetch-merge cycle.
type FeedReport struct {
	FeedID   int64            `json:"feedId"`
	Status   model.FeedStatus `json:"status"`
	New      int              `json:"new"`
	Updated  int              `json:"updated"`
	Deleted  int              `json:"deleted"`
	ErrorMsg string           `json:"error,omitempty"`
}

// AccountReport aggregates one account's batch. ErrorMsg is set only for
// account-level failures (structure sync, lock contention); per-feed
// failures stay isolated in Feeds.
type AccountReport struct {
	AccountID int64        `json:"accountId"`
	Feeds     []FeedReport `json:"feeds,omitempty"`
	ErrorMsg  string       `json:"error,omitempty"`
}

type BatchReport struct {
	Accounts []AccountReport `json:"accounts"`
}

type SyncService interface {
	UpdateAll(ctx context.Context) (BatchReport, error)
	UpdateAccount(ctx context.Context, accountID int64) (AccountReport, error)
	UpdateFeeds(ctx context.Context, accountID int64, feedIDs []int64) (AccountReport, error)
	State(accountID int64) SyncState
}

type syncService struct {
	db          *sql.DB
	tree        TreeService
	registry    *backend.Registry
	syncCtx     *SyncContext
	limiter     *rate.Limiter
	concurrency int
	sanitizer   *bluemonday.Policy

	mu     sync.Mutex
	states map[int64]SyncState
}

func NewSyncService(db *sql.DB, tree TreeService, registry *backend.Registry, syncCtx *SyncContext, fetchRate, concurrency int) SyncService {
	if fetchRate <= 0 {
		fetchRate = 10
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &syncService{
		db:          db,
		tree:        tree,
		registry:    registry,
		syncCtx:     syncCtx,
		limiter:     rate.NewLimiter(rate.Limit(fetchRate), fetchRate),
		concurrency: concurrency,
		sanitizer:   bluemonday.UGCPolicy(),
		states:      make(map[int64]SyncState),
	}
}

func (s *syncService) State(accountID int64) SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[accountID]; ok {
		return state
	}
	return StateIdle
}

func (s *syncService) setState(accountID int64, state SyncState) {
	s.mu.Lock()
	if state == StateIdle {
		delete(s.states, accountID)
	} else {
		s.states[accountID] = state
	}
	s.mu.Unlock()
}

// UpdateAll runs one batch per account; accounts run independently and an
// account that is busy or failing never aborts its siblings.
func (s *syncService) UpdateAll(ctx context.Context) (BatchReport, error) {
	accounts := s.tree.ListAccounts()
	report := BatchReport{}
	var mu sync.Mutex

	grp, ctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		account := account
		grp.Go(func() error {
			accountReport, err := s.UpdateAccount(ctx, account.ID)
			if err != nil {
				accountReport.AccountID = account.ID
				accountReport.ErrorMsg = err.Error()
			}
			mu.Lock()
			report.Accounts = append(report.Accounts, accountReport)
			mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()
	return report, ctx.Err()
}

func (s *syncService) UpdateAccount(ctx context.Context, accountID int64) (AccountReport, error) {
	return s.updateAccount(ctx, accountID, nil)
}

func (s *syncService) UpdateFeeds(ctx context.Context, accountID int64, feedIDs []int64) (AccountReport, error) {
	if len(feedIDs) == 0 {
		return AccountReport{AccountID: accountID}, nil
	}
	selected := make(map[int64]bool, len(feedIDs))
	for _, id := range feedIDs {
		selected[id] = true
	}
	return s.updateAccount(ctx, accountID, selected)
}

func (s *syncService) updateAccount(ctx context.Context, accountID int64, selected map[int64]bool) (AccountReport, error) {
	report := AccountReport{AccountID: accountID}

	account, ok := s.tree.GetItem(accountID)
	if !ok || account.Kind != model.KindServiceRoot || account.Config == nil {
		return report, ErrNotFound
	}
	adapter, err := s.registry.For(account.Config.Backend)
	if err != nil {
		return report, err
	}

	if err := s.syncCtx.Acquire(accountID, "update"); err != nil {
		return report, err
	}
	defer s.syncCtx.Release(accountID)

	s.setState(accountID, StateFetching)
	defer s.setState(accountID, StateIdle)

	// Structural sync happens only for full-account batches: manual
	// per-feed updates skip it.
	if selected == nil {
		folders, feeds, err := adapter.ListStructure(ctx, account)
		if err != nil {
			logger.Warn("structure sync failed",
				"module", "sync", "action", "structure", "resource", "account", "result", "failed",
				"account_id", accountID, "kind", errorKind(err))
			return report, err
		}
		if len(folders) > 0 || len(feeds) > 0 {
			if err := s.tree.ApplyRemoteStructure(ctx, accountID, folders, feeds); err != nil {
				return report, err
			}
		}
	}

	feeds := s.tree.FeedsForAccount(accountID)
	var mu sync.Mutex
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(s.concurrency)
	for _, feed := range feeds {
		if selected != nil && !selected[feed.ID] {
			continue
		}
		feed := feed
		grp.Go(func() error {
			// Cancellation takes effect at the feed boundary.
			if grpCtx.Err() != nil {
				return nil
			}
			feedReport := s.syncFeed(grpCtx, account, adapter, feed)
			mu.Lock()
			report.Feeds = append(report.Feeds, feedReport)
			mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()

	s.tree.RefreshBinCounts(ctx, accountID)
	return report, nil
}

// syncFeed is the per-feed cycle of §fetch → dedup → merge → persist. A
// fetch failure records status and stops: no partial merge ever happens.
func (s *syncService) syncFeed(ctx context.Context, account model.Item, adapter backend.Adapter, feed model.Item) FeedReport {
	report := FeedReport{FeedID: feed.ID, Status: model.StatusOK}

	if err := s.limiter.Wait(ctx); err != nil {
		report.Status = model.StatusNetworkError
		report.ErrorMsg = "cancelled"
		return report
	}

	// Adapters read credentials from the item they are handed.
	feed.Config = account.Config

	cursor := ""
	if feed.SyncCursor != nil {
		cursor = *feed.SyncCursor
	}

	result, err := adapter.FetchMessages(ctx, feed, cursor)
	if err != nil {
		status := statusForError(err)
		report.Status = status
		report.ErrorMsg = errorKind(err)
		s.recordFeedMeta(feed, status, nil)
		logger.Warn("feed fetch failed",
			"module", "sync", "action", "fetch", "resource", "feed", "result", "failed",
			"feed_id", feed.ID, "account_id", account.ID, "kind", errorKind(err))
		return report
	}

	s.setState(account.ID, StateMerging)
	newCount, updatedCount, deletedCount, err := s.mergeFeed(ctx, adapter, account, feed, result)
	s.setState(account.ID, StateFetching)
	if err != nil {
		report.Status = model.StatusStorageError
		report.ErrorMsg = "storage failure"
		s.recordFeedMeta(feed, model.StatusStorageError, nil)
		logger.Error("feed merge failed",
			"module", "sync", "action", "merge", "resource", "feed", "result", "failed",
			"feed_id", feed.ID, "account_id", account.ID, "error", err)
		return report
	}
	report.New, report.Updated, report.Deleted = newCount, updatedCount, deletedCount

	var cursorPtr *string
	if result.NextCursor != "" {
		cursorPtr = &result.NextCursor
	}
	s.recordFeedMeta(feed, model.StatusOK, cursorPtr)

	counts, err := repository.NewMessageRepository(s.db).FeedCounts(ctx, feed.ID)
	if err == nil {
		s.tree.ApplyFeedCounts(feed.ID, counts.Unread, counts.Total)
	}

	if newCount > 0 || updatedCount > 0 || deletedCount > 0 {
		logger.Info("feed updated",
			"module", "sync", "action", "merge", "resource", "feed", "result", "ok",
			"feed_id", feed.ID, "new", newCount, "updated", updatedCount, "deleted", deletedCount)
	}
	return report
}

// mergeFeed applies one fetch result inside a single transaction, in the
// order the backend returned the messages.
func (s *syncService) mergeFeed(ctx context.Context, adapter backend.Adapter, account model.Item, feed model.Item, result backend.FetchResult) (newCount, updatedCount, deletedCount int, err error) {
	caps := adapter.Capabilities()
	flagAuthority := caps.FlagAuthority
	if account.Config != nil && account.Config.FlagAuthority != nil {
		flagAuthority = flagAuthority && *account.Config.FlagAuthority
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, 0, &StorageError{Op: "begin merge", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	messages := repository.NewMessageRepository(tx)
	presentKeys := make([]string, 0, len(result.Messages))

	for _, raw := range result.Messages {
		contents := s.sanitizer.Sanitize(raw.Contents)
		hash := model.ComputeMessageHash(raw.Title, raw.URL, raw.Author, contents)

		var customID *string
		key := hash
		if raw.CustomID != "" {
			id := raw.CustomID
			customID = &id
			key = id
		}
		presentKeys = append(presentKeys, key)

		existing, err := messages.FindByDedupKey(ctx, feed.ID, customID, hash)
		if err != nil {
			return 0, 0, 0, &StorageError{Op: "dedup lookup", Err: err}
		}

		if existing == nil {
			msg := model.Message{
				FeedID:     feed.ID,
				AccountID:  account.ID,
				CustomID:   customID,
				CustomHash: hash,
				Title:      raw.Title,
				CreatedOn:  raw.CreatedOn,
			}
			if raw.URL != "" {
				url := raw.URL
				msg.URL = &url
			}
			if raw.Author != "" {
				author := raw.Author
				msg.Author = &author
			}
			if contents != "" {
				msg.Contents = &contents
			}
			msg.Attachments = raw.Attachments
			if flagAuthority {
				if raw.ReadFlag != nil {
					msg.Read = *raw.ReadFlag
				}
				if raw.ImportantFlag != nil {
					msg.Important = *raw.ImportantFlag
				}
			}
			if _, err := messages.Insert(ctx, msg); err != nil {
				return 0, 0, 0, &StorageError{Op: "insert message", Err: err}
			}
			newCount++
			continue
		}

		changed := false
		// Content is immutable once stored unless the backend is
		// authoritative and the remote content actually differs.
		if caps.ContentAuthority && existing.CustomHash != hash {
			updated := *existing
			updated.Title = raw.Title
			updated.CustomHash = hash
			updated.URL, updated.Author, updated.Contents = nil, nil, nil
			if raw.URL != "" {
				url := raw.URL
				updated.URL = &url
			}
			if raw.Author != "" {
				author := raw.Author
				updated.Author = &author
			}
			if contents != "" {
				updated.Contents = &contents
			}
			updated.Attachments = raw.Attachments
			if err := messages.UpdateContent(ctx, updated); err != nil {
				return 0, 0, 0, &StorageError{Op: "update message", Err: err}
			}
			changed = true
		}
		// User flags are never toggled from incoming data unless the
		// backend explicitly signals them and has authority.
		if flagAuthority {
			if raw.ReadFlag != nil && *raw.ReadFlag != existing.Read {
				if err := messages.UpdateReadStatus(ctx, existing.ID, *raw.ReadFlag); err != nil {
					return 0, 0, 0, &StorageError{Op: "update read flag", Err: err}
				}
				changed = true
			}
			if raw.ImportantFlag != nil && *raw.ImportantFlag != existing.Important {
				if err := messages.UpdateImportantStatus(ctx, existing.ID, *raw.ImportantFlag); err != nil {
					return 0, 0, 0, &StorageError{Op: "update important flag", Err: err}
				}
				changed = true
			}
		}
		if changed {
			updatedCount++
		}
	}

	// Absent messages are soft-deleted only under full-list authority,
	// never purged directly.
	if result.FullList && caps.FullListAuthority {
		n, err := messages.MarkAbsentDeleted(ctx, feed.ID, presentKeys)
		if err != nil {
			return 0, 0, 0, &StorageError{Op: "mark absent deleted", Err: err}
		}
		deletedCount = int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, &StorageError{Op: "commit merge", Err: err}
	}
	return newCount, updatedCount, deletedCount, nil
}

func (s *syncService) recordFeedMeta(feed model.Item, status model.FeedStatus, cursor *string) {
	now := time.Now().UTC()
	items := repository.NewItemRepository(s.db)
	if err := items.UpdateFeedMeta(context.Background(), feed.ID, status, now, cursor); err != nil {
		logger.Error("record feed meta failed",
			"module", "sync", "action", "record", "resource", "feed", "result", "failed",
			"feed_id", feed.ID, "error", err)
	}
	feed.LastStatus = status
	feed.LastFetchedAt = &now
	if cursor != nil {
		feed.SyncCursor = cursor
	}
	s.tree.SetFeedMeta(feed)
}

func statusForError(err error) model.FeedStatus {
	var authErr *backend.AuthError
	var netErr *backend.NetworkError
	var protoErr *backend.ProtocolError
	switch {
	case errors.As(err, &authErr):
		return model.StatusAuthError
	case errors.As(err, &netErr):
		if netErr.Kind == backend.NetworkTimeout {
			return model.StatusTimeout
		}
		return model.StatusNetworkError
	case errors.As(err, &protoErr):
		return model.StatusParseError
	default:
		return model.StatusNetworkError
	}
}

// errorKind renders the taxonomy kind for logs and reports without leaking
// transport-level details.
func errorKind(err error) string {
	var authErr *backend.AuthError
	var netErr *backend.NetworkError
	var protoErr *backend.ProtocolError
	switch {
	case errors.As(err, &authErr):
		return "auth-error"
	case errors.As(err, &netErr):
		return "network-error/" + string(netErr.Kind)
	case errors.As(err, &protoErr):
		return "protocol-error"
	default:
		return "error"
	}
}
