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

type ItemRepository interface {
	Create(ctx context.Context, item model.Item) (model.Item, error)
	GetByID(ctx context.Context, id int64) (model.Item, error)
	ListAll(ctx context.Context) ([]model.Item, error)
	ListByAccount(ctx context.Context, accountID int64) ([]model.Item, error)
	ListFeeds(ctx context.Context) ([]model.Item, error)
	FindFeedByURL(ctx context.Context, accountID int64, url string) (*model.Item, error)
	UpdateTitle(ctx context.Context, id int64, title string) error
	UpdateParent(ctx context.Context, id int64, parentID int64, ordering int) error
	UpdateAutoUpdate(ctx context.Context, id int64, mode model.AutoUpdateType, interval *int) error
	UpdateFeedMeta(ctx context.Context, id int64, status model.FeedStatus, fetchedAt time.Time, cursor *string) error
	UpdateConfig(ctx context.Context, id int64, cfg model.AccountConfig) error
	Delete(ctx context.Context, ids []int64) error
}

type itemRepository struct {
	db dbtx
}

func NewItemRepository(db dbtx) ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `id, account_id, parent_id, kind, title, icon_path, ordering, url, encoding, custom_id,
	auto_update_type, auto_update_interval_min, last_fetched_at, last_status, sync_cursor, config, created_at, updated_at`

func (r *itemRepository) Create(ctx context.Context, item model.Item) (model.Item, error) {
	if item.ID == 0 {
		item.ID = snowflake.NextID()
	}
	// A service root is its own account scope.
	if item.Kind == model.KindServiceRoot {
		item.AccountID = item.ID
	}
	now := time.Now().UTC()
	if item.AutoUpdateType == "" {
		item.AutoUpdateType = model.AutoUpdateDefault
	}
	if item.LastStatus == "" {
		item.LastStatus = model.StatusNeverFetched
	}

	var config interface{}
	if item.Config != nil {
		raw, err := json.Marshal(item.Config)
		if err != nil {
			return model.Item{}, fmt.Errorf("marshal account config: %w", err)
		}
		config = string(raw)
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO items (id, account_id, parent_id, kind, title, icon_path, ordering, url, encoding, custom_id,
		   auto_update_type, auto_update_interval_min, last_fetched_at, last_status, sync_cursor, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.AccountID,
		nullableInt64(item.ParentID),
		string(item.Kind),
		item.Title,
		nullableString(item.IconPath),
		item.Ordering,
		nullableString(item.URL),
		nullableString(item.Encoding),
		nullableString(item.CustomID),
		string(item.AutoUpdateType),
		nullableInt(item.AutoUpdateInterval),
		nil,
		string(item.LastStatus),
		nullableString(item.SyncCursor),
		config,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return model.Item{}, fmt.Errorf("create item: %w", err)
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

func (r *itemRepository) GetByID(ctx context.Context, id int64) (model.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

func (r *itemRepository) ListAll(ctx context.Context) ([]model.Item, error) {
	return r.list(ctx, `SELECT `+itemColumns+` FROM items ORDER BY ordering, id`)
}

func (r *itemRepository) ListByAccount(ctx context.Context, accountID int64) ([]model.Item, error) {
	return r.list(ctx, `SELECT `+itemColumns+` FROM items WHERE account_id = ? ORDER BY ordering, id`, accountID)
}

func (r *itemRepository) ListFeeds(ctx context.Context) ([]model.Item, error) {
	return r.list(ctx, `SELECT `+itemColumns+` FROM items WHERE kind = ? ORDER BY ordering, id`, string(model.KindFeed))
}

func (r *itemRepository) list(ctx context.Context, query string, args ...interface{}) ([]model.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) FindFeedByURL(ctx context.Context, accountID int64, url string) (*model.Item, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM items WHERE account_id = ? AND kind = ? AND url = ?`,
		accountID, string(model.KindFeed), url,
	)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find feed: %w", err)
	}
	return &item, nil
}

func (r *itemRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE items SET title = ?, updated_at = ? WHERE id = ?`,
		title, formatTime(time.Now()), id,
	)
	return err
}

func (r *itemRepository) UpdateParent(ctx context.Context, id int64, parentID int64, ordering int) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE items SET parent_id = ?, ordering = ?, updated_at = ? WHERE id = ?`,
		parentID, ordering, formatTime(time.Now()), id,
	)
	return err
}

func (r *itemRepository) UpdateAutoUpdate(ctx context.Context, id int64, mode model.AutoUpdateType, interval *int) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE items SET auto_update_type = ?, auto_update_interval_min = ?, updated_at = ? WHERE id = ?`,
		string(mode), nullableInt(interval), formatTime(time.Now()), id,
	)
	return err
}

func (r *itemRepository) UpdateFeedMeta(ctx context.Context, id int64, status model.FeedStatus, fetchedAt time.Time, cursor *string) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE items SET last_status = ?, last_fetched_at = ?, sync_cursor = COALESCE(?, sync_cursor), updated_at = ? WHERE id = ?`,
		string(status), formatTime(fetchedAt), nullableString(cursor), formatTime(time.Now()), id,
	)
	return err
}

func (r *itemRepository) UpdateConfig(ctx context.Context, id int64, cfg model.AccountConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal account config: %w", err)
	}
	_, err = r.db.ExecContext(
		ctx,
		`UPDATE items SET config = ?, updated_at = ? WHERE id = ?`,
		string(raw), formatTime(time.Now()), id,
	)
	return err
}

func (r *itemRepository) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	return nil
}

func scanItem(scanner interface {
	Scan(dest ...interface{}) error
}) (model.Item, error) {
	var item model.Item
	var parentID sql.NullInt64
	var kind, autoUpdateType string
	var iconPath, url, encoding, customID, lastStatus, syncCursor, config sql.NullString
	var interval sql.NullInt64
	var lastFetchedAt sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&item.ID,
		&item.AccountID,
		&parentID,
		&kind,
		&item.Title,
		&iconPath,
		&item.Ordering,
		&url,
		&encoding,
		&customID,
		&autoUpdateType,
		&interval,
		&lastFetchedAt,
		&lastStatus,
		&syncCursor,
		&config,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.Item{}, err
	}

	item.Kind = model.ItemKind(kind)
	item.AutoUpdateType = model.AutoUpdateType(autoUpdateType)
	if parentID.Valid {
		item.ParentID = &parentID.Int64
	}
	if iconPath.Valid {
		item.IconPath = &iconPath.String
	}
	if url.Valid {
		item.URL = &url.String
	}
	if encoding.Valid {
		item.Encoding = &encoding.String
	}
	if customID.Valid {
		item.CustomID = &customID.String
	}
	if interval.Valid {
		v := int(interval.Int64)
		item.AutoUpdateInterval = &v
	}
	item.LastFetchedAt = parseTimePtr(lastFetchedAt)
	if lastStatus.Valid {
		item.LastStatus = model.FeedStatus(lastStatus.String)
	} else {
		item.LastStatus = model.StatusNeverFetched
	}
	if syncCursor.Valid {
		item.SyncCursor = &syncCursor.String
	}
	if config.Valid && config.String != "" {
		var cfg model.AccountConfig
		if err := json.Unmarshal([]byte(config.String), &cfg); err != nil {
			return model.Item{}, fmt.Errorf("unmarshal account config: %w", err)
		}
		item.Config = &cfg
	}

	var err error
	item.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Item{}, fmt.Errorf("parse item created_at: %w", err)
	}
	item.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.Item{}, fmt.Errorf("parse item updated_at: %w", err)
	}
	return item, nil
}
