// Package testutil provides a throwaway sqlite database and row seeders
// for repository and service tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"feedkeeper/internal/db"
	"feedkeeper/internal/model"
	"feedkeeper/internal/repository"
	"feedkeeper/internal/snowflake"
)

func init() {
	// Tests share one snowflake node; collisions across parallel tests are
	// impossible because the node is process-wide.
	if err := snowflake.Init(1); err != nil {
		panic(err)
	}
}

// NewTestDB opens a migrated database under t.TempDir, closed on cleanup.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// SeedAccount inserts a ServiceRoot and returns its id (= account id).
func SeedAccount(t *testing.T, database *sql.DB, title string, cfg model.AccountConfig) int64 {
	t.Helper()
	repo := repository.NewItemRepository(database)
	item, err := repo.Create(context.Background(), model.Item{
		Kind:   model.KindServiceRoot,
		Title:  title,
		Config: &cfg,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return item.ID
}

// SeedCategory inserts a category under the given parent.
func SeedCategory(t *testing.T, database *sql.DB, accountID, parentID int64, title string) int64 {
	t.Helper()
	repo := repository.NewItemRepository(database)
	item, err := repo.Create(context.Background(), model.Item{
		Kind:      model.KindCategory,
		AccountID: accountID,
		ParentID:  &parentID,
		Title:     title,
	})
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return item.ID
}

// SeedFeed inserts a feed item; zero-value fields get sane defaults.
func SeedFeed(t *testing.T, database *sql.DB, accountID, parentID int64, feed model.Item) int64 {
	t.Helper()
	feed.Kind = model.KindFeed
	feed.AccountID = accountID
	feed.ParentID = &parentID
	if feed.Title == "" {
		feed.Title = "feed"
	}
	repo := repository.NewItemRepository(database)
	item, err := repo.Create(context.Background(), feed)
	if err != nil {
		t.Fatalf("seed feed: %v", err)
	}
	return item.ID
}

// SeedMessage inserts a message, computing the hash when absent.
func SeedMessage(t *testing.T, database *sql.DB, msg model.Message) int64 {
	t.Helper()
	if msg.CustomHash == "" {
		var url, author, contents string
		if msg.URL != nil {
			url = *msg.URL
		}
		if msg.Author != nil {
			author = *msg.Author
		}
		if msg.Contents != nil {
			contents = *msg.Contents
		}
		msg.CustomHash = model.ComputeMessageHash(msg.Title, url, author, contents)
	}
	repo := repository.NewMessageRepository(database)
	created, err := repo.Insert(context.Background(), msg)
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return created.ID
}
