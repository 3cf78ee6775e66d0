package service

import (
	"context"

	"feedkeeper/internal/logger"
	"feedkeeper/internal/model"
	"feedkeeper/internal/repository"
)

// BinService manages the recycle bin lifecycle. Deleting moves a message
// into the bin; restoring brings it back untouched. Nothing here removes
// rows physically, that is cleanup's job.
type BinService interface {
	Delete(ctx context.Context, messageID int64) error
	Restore(ctx context.Context, messageID int64) error
	List(ctx context.Context, accountID int64, limit, offset int) ([]model.Message, error)
	Empty(ctx context.Context, accountID *int64) (int64, error)
}

type binService struct {
	messages repository.MessageRepository
	tree     TreeService
}

func NewBinService(messages repository.MessageRepository, tree TreeService) BinService {
	return &binService{messages: messages, tree: tree}
}

func (s *binService) Delete(ctx context.Context, messageID int64) error {
	msg, err := getLiveMessage(ctx, s.messages, messageID)
	if err != nil {
		return err
	}
	if msg.Deleted {
		return nil
	}
	if err := s.messages.SoftDelete(ctx, messageID); err != nil {
		return &StorageError{Op: "delete message", Err: err}
	}
	unreadDelta := 0
	if !msg.Read {
		unreadDelta = -1
	}
	s.tree.AdjustCounts(msg.FeedID, unreadDelta, -1)
	s.tree.RefreshBinCounts(ctx, msg.AccountID)
	return nil
}

func (s *binService) Restore(ctx context.Context, messageID int64) error {
	msg, err := getLiveMessage(ctx, s.messages, messageID)
	if err != nil {
		return err
	}
	if !msg.Deleted {
		return nil
	}
	if err := s.messages.Restore(ctx, messageID); err != nil {
		return &StorageError{Op: "restore message", Err: err}
	}
	unreadDelta := 0
	if !msg.Read {
		unreadDelta = 1
	}
	s.tree.AdjustCounts(msg.FeedID, unreadDelta, 1)
	s.tree.RefreshBinCounts(ctx, msg.AccountID)
	return nil
}

func (s *binService) List(ctx context.Context, accountID int64, limit, offset int) ([]model.Message, error) {
	msgs, err := s.messages.List(ctx, repository.MessageListFilter{
		AccountID: &accountID,
		BinOnly:   true,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, &StorageError{Op: "list bin", Err: err}
	}
	return msgs, nil
}

// Empty tombstones every binned message, account-scoped when accountID is
// set. Physical removal is deferred to storage compaction.
func (s *binService) Empty(ctx context.Context, accountID *int64) (int64, error) {
	n, err := s.messages.EmptyBin(ctx, accountID)
	if err != nil {
		return 0, &StorageError{Op: "empty bin", Err: err}
	}
	if accountID != nil {
		s.tree.RefreshBinCounts(ctx, *accountID)
	} else {
		for _, account := range s.tree.ListAccounts() {
			s.tree.RefreshBinCounts(ctx, account.ID)
		}
	}
	if n > 0 {
		logger.Info("bin emptied",
			"module", "bin", "action", "empty", "resource", "bin", "result", "ok", "count", n)
	}
	return n, nil
}
