package service

import (
	"context"
	"database/sql"
	"errors"

	"feedkeeper/internal/logger"
	"feedkeeper/internal/model"
	"feedkeeper/internal/repository"
)

// MessageService is the read/flag surface of the message store. Flag
// changes keep the tree counters in step incrementally.
type MessageService interface {
	Get(ctx context.Context, id int64) (model.Message, error)
	List(ctx context.Context, filter repository.MessageListFilter) ([]model.Message, error)
	SetRead(ctx context.Context, id int64, read bool) error
	SetImportant(ctx context.Context, id int64, important bool) error
	MarkFeedRead(ctx context.Context, feedID int64) error
}

type messageService struct {
	messages repository.MessageRepository
	tree     TreeService
}

func NewMessageService(messages repository.MessageRepository, tree TreeService) MessageService {
	return &messageService{messages: messages, tree: tree}
}

func (s *messageService) Get(ctx context.Context, id int64) (model.Message, error) {
	return getLiveMessage(ctx, s.messages, id)
}

// getLiveMessage resolves a message that has not been tombstoned yet.
// Permanently deleted rows behave as if they no longer exist.
func getLiveMessage(ctx context.Context, messages repository.MessageRepository, id int64) (model.Message, error) {
	msg, err := messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Message{}, ErrNotFound
		}
		return model.Message{}, &StorageError{Op: "get message", Err: err}
	}
	if msg.PermanentlyDeleted {
		return model.Message{}, ErrNotFound
	}
	return msg, nil
}

func (s *messageService) List(ctx context.Context, filter repository.MessageListFilter) ([]model.Message, error) {
	msgs, err := s.messages.List(ctx, filter)
	if err != nil {
		return nil, &StorageError{Op: "list messages", Err: err}
	}
	return msgs, nil
}

func (s *messageService) SetRead(ctx context.Context, id int64, read bool) error {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.Read == read {
		return nil
	}
	if err := s.messages.UpdateReadStatus(ctx, id, read); err != nil {
		return &StorageError{Op: "set read", Err: err}
	}
	// Bin rows do not participate in feed counters.
	if !msg.Deleted {
		delta := -1
		if !read {
			delta = 1
		}
		s.tree.AdjustCounts(msg.FeedID, delta, 0)
	}
	return nil
}

func (s *messageService) SetImportant(ctx context.Context, id int64, important bool) error {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.Important == important {
		return nil
	}
	if err := s.messages.UpdateImportantStatus(ctx, id, important); err != nil {
		return &StorageError{Op: "set important", Err: err}
	}
	return nil
}

func (s *messageService) MarkFeedRead(ctx context.Context, feedID int64) error {
	unread, err := s.messages.List(ctx, repository.MessageListFilter{FeedID: &feedID, UnreadOnly: true})
	if err != nil {
		return &StorageError{Op: "mark feed read", Err: err}
	}
	for _, msg := range unread {
		if err := s.messages.UpdateReadStatus(ctx, msg.ID, true); err != nil {
			return &StorageError{Op: "mark feed read", Err: err}
		}
	}
	if len(unread) > 0 {
		s.tree.AdjustCounts(feedID, -len(unread), 0)
		logger.Info("feed marked read",
			"module", "message", "action", "mark_read", "resource", "feed", "result", "ok",
			"feed_id", feedID, "count", len(unread))
	}
	return nil
}
