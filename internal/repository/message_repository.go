package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedkeeper/internal/model"
	"feedkeeper/internal/snowflake"
)

// MessageListFilter narrows List. BinOnly selects soft-deleted rows; all
// other views exclude them. Permanently deleted rows are excluded from
// every view.
type MessageListFilter struct {
	FeedID        *int64
	AccountID     *int64
	UnreadOnly    bool
	ImportantOnly bool
	BinOnly       bool
	Limit         int
	Offset        int
}

// FeedCounts is the unread/total pair for one feed's live messages.
type FeedCounts struct {
	FeedID int64
	Unread int
	Total  int
}

type MessageRepository interface {
	GetByID(ctx context.Context, id int64) (model.Message, error)
	List(ctx context.Context, filter MessageListFilter) ([]model.Message, error)
	FindByDedupKey(ctx context.Context, feedID int64, customID *string, hash string) (*model.Message, error)
	Insert(ctx context.Context, msg model.Message) (model.Message, error)
	UpdateContent(ctx context.Context, msg model.Message) error
	UpdateReadStatus(ctx context.Context, id int64, read bool) error
	UpdateImportantStatus(ctx context.Context, id int64, important bool) error
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	MarkAbsentDeleted(ctx context.Context, feedID int64, presentKeys []string) (int64, error)
	SetPermanentlyDeletedForFeeds(ctx context.Context, feedIDs []int64) (int64, error)
	FeedCounts(ctx context.Context, feedID int64) (FeedCounts, error)
	AllFeedCounts(ctx context.Context) ([]FeedCounts, error)
	BinCounts(ctx context.Context, accountID int64) (FeedCounts, error)
	PurgeRead(ctx context.Context, accountID *int64) (int64, error)
	EmptyBin(ctx context.Context, accountID *int64) (int64, error)
	PurgeOlderThan(ctx context.Context, accountID *int64, before time.Time) (int64, error)
	DeletePermanentlyDeleted(ctx context.Context, limit int) (int64, error)
}

type messageRepository struct {
	db dbtx
}

func NewMessageRepository(db dbtx) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, feed_id, account_id, custom_id, custom_hash, title, url, author, created_on,
	contents, attachments, read, important, deleted, permanently_deleted`

func (r *messageRepository) GetByID(ctx context.Context, id int64) (model.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

func (r *messageRepository) List(ctx context.Context, filter MessageListFilter) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages`
	conditions := []string{"permanently_deleted = 0"}
	var args []interface{}

	if filter.BinOnly {
		conditions = append(conditions, "deleted = 1")
	} else {
		conditions = append(conditions, "deleted = 0")
	}
	if filter.FeedID != nil {
		conditions = append(conditions, "feed_id = ?")
		args = append(args, *filter.FeedID)
	}
	if filter.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.UnreadOnly {
		conditions = append(conditions, "read = 0")
	}
	if filter.ImportantOnly {
		conditions = append(conditions, "important = 1")
	}

	query += " WHERE " + strings.Join(conditions, " AND ")
	query += " ORDER BY created_on DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// FindByDedupKey matches on the custom id when present, else on the content
// hash, always ignoring permanently deleted rows so their keys are reusable.
func (r *messageRepository) FindByDedupKey(ctx context.Context, feedID int64, customID *string, hash string) (*model.Message, error) {
	var row *sql.Row
	if customID != nil && *customID != "" {
		row = r.db.QueryRowContext(
			ctx,
			`SELECT `+messageColumns+` FROM messages WHERE feed_id = ? AND custom_id = ? AND permanently_deleted = 0`,
			feedID, *customID,
		)
	} else {
		row = r.db.QueryRowContext(
			ctx,
			`SELECT `+messageColumns+` FROM messages WHERE feed_id = ? AND custom_id IS NULL AND custom_hash = ? AND permanently_deleted = 0`,
			feedID, hash,
		)
	}
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return &msg, nil
}

func (r *messageRepository) Insert(ctx context.Context, msg model.Message) (model.Message, error) {
	if msg.ID == 0 {
		msg.ID = snowflake.NextID()
	}
	attachments, err := marshalAttachments(msg.Attachments)
	if err != nil {
		return model.Message{}, err
	}
	if msg.CreatedOn.IsZero() {
		msg.CreatedOn = time.Now().UTC()
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO messages (id, feed_id, account_id, custom_id, custom_hash, title, url, author, created_on,
		   contents, attachments, read, important, deleted, permanently_deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		msg.ID,
		msg.FeedID,
		msg.AccountID,
		nullableString(msg.CustomID),
		msg.CustomHash,
		msg.Title,
		nullableString(msg.URL),
		nullableString(msg.Author),
		formatTime(msg.CreatedOn),
		nullableString(msg.Contents),
		attachments,
		boolToInt(msg.Read),
		boolToInt(msg.Important),
		boolToInt(msg.Deleted),
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// UpdateContent overwrites the content fields of an existing row. Flags are
// untouched; only backend-authoritative merges call this.
func (r *messageRepository) UpdateContent(ctx context.Context, msg model.Message) error {
	attachments, err := marshalAttachments(msg.Attachments)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(
		ctx,
		`UPDATE messages SET title = ?, url = ?, author = ?, contents = ?, attachments = ?, custom_hash = ? WHERE id = ?`,
		msg.Title,
		nullableString(msg.URL),
		nullableString(msg.Author),
		nullableString(msg.Contents),
		attachments,
		msg.CustomHash,
		msg.ID,
	)
	if err != nil {
		return fmt.Errorf("update message content: %w", err)
	}
	return nil
}

func (r *messageRepository) UpdateReadStatus(ctx context.Context, id int64, read bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET read = ? WHERE id = ?`, boolToInt(read), id)
	return err
}

func (r *messageRepository) UpdateImportantStatus(ctx context.Context, id int64, important bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET important = ? WHERE id = ?`, boolToInt(important), id)
	return err
}

func (r *messageRepository) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted = 1 WHERE id = ? AND permanently_deleted = 0`, id)
	return err
}

// Restore flips only the deleted flag so the row comes back exactly as it
// went into the bin.
func (r *messageRepository) Restore(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted = 0 WHERE id = ? AND permanently_deleted = 0`, id)
	return err
}

// MarkAbsentDeleted soft-deletes live messages of the feed whose dedup key
// is not in presentKeys. Used only for backends asserting full-list
// authority.
func (r *messageRepository) MarkAbsentDeleted(ctx context.Context, feedID int64, presentKeys []string) (int64, error) {
	query := `UPDATE messages SET deleted = 1 WHERE feed_id = ? AND deleted = 0 AND permanently_deleted = 0`
	args := []interface{}{feedID}
	if len(presentKeys) > 0 {
		placeholders := strings.Repeat("?,", len(presentKeys)-1) + "?"
		query += ` AND COALESCE(custom_id, custom_hash) NOT IN (` + placeholders + `)`
		for _, key := range presentKeys {
			args = append(args, key)
		}
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark absent deleted: %w", err)
	}
	return result.RowsAffected()
}

// SetPermanentlyDeletedForFeeds is the lazy side of feed removal: rows stay
// until the next cleanup pass physically removes them.
func (r *messageRepository) SetPermanentlyDeletedForFeeds(ctx context.Context, feedIDs []int64) (int64, error) {
	if len(feedIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(feedIDs)-1) + "?"
	args := make([]interface{}, len(feedIDs))
	for i, id := range feedIDs {
		args[i] = id
	}
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE messages SET permanently_deleted = 1 WHERE feed_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("mark feed messages permanently deleted: %w", err)
	}
	return result.RowsAffected()
}

func (r *messageRepository) FeedCounts(ctx context.Context, feedID int64) (FeedCounts, error) {
	counts := FeedCounts{FeedID: feedID}
	err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN read = 0 THEN 1 ELSE 0 END), 0)
		 FROM messages WHERE feed_id = ? AND deleted = 0 AND permanently_deleted = 0`,
		feedID,
	).Scan(&counts.Total, &counts.Unread)
	if err != nil {
		return FeedCounts{}, fmt.Errorf("feed counts: %w", err)
	}
	return counts, nil
}

func (r *messageRepository) AllFeedCounts(ctx context.Context) ([]FeedCounts, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT feed_id, COUNT(*), COALESCE(SUM(CASE WHEN read = 0 THEN 1 ELSE 0 END), 0)
		 FROM messages WHERE deleted = 0 AND permanently_deleted = 0 GROUP BY feed_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("all feed counts: %w", err)
	}
	defer rows.Close()

	var counts []FeedCounts
	for rows.Next() {
		var c FeedCounts
		if err := rows.Scan(&c.FeedID, &c.Total, &c.Unread); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *messageRepository) BinCounts(ctx context.Context, accountID int64) (FeedCounts, error) {
	var counts FeedCounts
	err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN read = 0 THEN 1 ELSE 0 END), 0)
		 FROM messages WHERE account_id = ? AND deleted = 1 AND permanently_deleted = 0`,
		accountID,
	).Scan(&counts.Total, &counts.Unread)
	if err != nil {
		return FeedCounts{}, fmt.Errorf("bin counts: %w", err)
	}
	return counts, nil
}

// PurgeRead marks read, non-bin messages permanently deleted.
func (r *messageRepository) PurgeRead(ctx context.Context, accountID *int64) (int64, error) {
	query := `UPDATE messages SET permanently_deleted = 1 WHERE read = 1 AND deleted = 0 AND permanently_deleted = 0`
	var args []interface{}
	if accountID != nil {
		query += ` AND account_id = ?`
		args = append(args, *accountID)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge read: %w", err)
	}
	return result.RowsAffected()
}

func (r *messageRepository) EmptyBin(ctx context.Context, accountID *int64) (int64, error) {
	query := `UPDATE messages SET permanently_deleted = 1 WHERE deleted = 1 AND permanently_deleted = 0`
	var args []interface{}
	if accountID != nil {
		query += ` AND account_id = ?`
		args = append(args, *accountID)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("empty bin: %w", err)
	}
	return result.RowsAffected()
}

// PurgeOlderThan applies to active and bin messages alike.
func (r *messageRepository) PurgeOlderThan(ctx context.Context, accountID *int64, before time.Time) (int64, error) {
	query := `UPDATE messages SET permanently_deleted = 1 WHERE permanently_deleted = 0 AND created_on < ?`
	args := []interface{}{formatTime(before)}
	if accountID != nil {
		query += ` AND account_id = ?`
		args = append(args, *accountID)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge older than: %w", err)
	}
	return result.RowsAffected()
}

// DeletePermanentlyDeleted physically removes tombstoned rows in bounded
// batches so progress can be reported between calls.
func (r *messageRepository) DeletePermanentlyDeleted(ctx context.Context, limit int) (int64, error) {
	query := `DELETE FROM messages WHERE permanently_deleted = 1`
	var args []interface{}
	if limit > 0 {
		query = `DELETE FROM messages WHERE id IN (SELECT id FROM messages WHERE permanently_deleted = 1 LIMIT ?)`
		args = append(args, limit)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete permanently deleted: %w", err)
	}
	return result.RowsAffected()
}

func marshalAttachments(attachments []model.Attachment) (interface{}, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}
	return string(raw), nil
}

func scanMessage(scanner interface {
	Scan(dest ...interface{}) error
}) (model.Message, error) {
	var m model.Message
	var customID, url, author, contents, attachments sql.NullString
	var createdOn string
	var readInt, importantInt, deletedInt, pdeletedInt int

	if err := scanner.Scan(
		&m.ID,
		&m.FeedID,
		&m.AccountID,
		&customID,
		&m.CustomHash,
		&m.Title,
		&url,
		&author,
		&createdOn,
		&contents,
		&attachments,
		&readInt,
		&importantInt,
		&deletedInt,
		&pdeletedInt,
	); err != nil {
		return model.Message{}, err
	}

	if customID.Valid {
		m.CustomID = &customID.String
	}
	if url.Valid {
		m.URL = &url.String
	}
	if author.Valid {
		m.Author = &author.String
	}
	if contents.Valid {
		m.Contents = &contents.String
	}
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &m.Attachments); err != nil {
			return model.Message{}, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	m.Read = readInt == 1
	m.Important = importantInt == 1
	m.Deleted = deletedInt == 1
	m.PermanentlyDeleted = pdeletedInt == 1

	var err error
	m.CreatedOn, err = parseTime(createdOn)
	if err != nil {
		return model.Message{}, fmt.Errorf("parse message created_on: %w", err)
	}
	return m, nil
}
