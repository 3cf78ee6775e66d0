package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedkeeper/internal/model"
	"feedkeeper/internal/repository"
	"feedkeeper/internal/repository/testutil"
)

func TestItemRepository_CreateServiceRoot(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewItemRepository(database)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.Item{
		Kind:  model.KindServiceRoot,
		Title: "My Account",
		Config: &model.AccountConfig{
			Backend:  model.BackendCloudNews,
			BaseURL:  "https://news.example.com",
			Username: "reader",
			Password: "secret",
		},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, created.ID, created.AccountID, "a service root is its own account scope")

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, model.KindServiceRoot, got.Kind)
	require.Equal(t, model.StatusNeverFetched, got.LastStatus)
	require.NotNil(t, got.Config)
	require.Equal(t, model.BackendCloudNews, got.Config.Backend)
	require.Equal(t, "reader", got.Config.Username)
}

func TestItemRepository_FeedDefaults(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewItemRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendStandard})
	url := "https://example.com/feed.xml"
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{Title: "Example", URL: &url})

	got, err := repo.GetByID(ctx, feedID)
	require.NoError(t, err)
	require.Equal(t, model.AutoUpdateDefault, got.AutoUpdateType)
	require.Equal(t, model.StatusNeverFetched, got.LastStatus)
	require.Nil(t, got.LastFetchedAt)
	require.Nil(t, got.SyncCursor)
}

func TestItemRepository_FindFeedByURL(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewItemRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendStandard})
	otherID := testutil.SeedAccount(t, database, "other", model.AccountConfig{Backend: model.BackendStandard})
	url := "https://example.com/feed.xml"
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{URL: &url})

	found, err := repo.FindFeedByURL(ctx, accountID, url)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, feedID, found.ID)

	// Same URL under another account is not a duplicate.
	found, err = repo.FindFeedByURL(ctx, otherID, url)
	require.NoError(t, err)
	require.Nil(t, found)

	found, err = repo.FindFeedByURL(ctx, accountID, "https://example.com/nope.xml")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestItemRepository_UpdateFeedMeta(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewItemRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendTinyRSS})
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{})

	cursor := "1042"
	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateFeedMeta(ctx, feedID, model.StatusOK, fetchedAt, &cursor))

	got, err := repo.GetByID(ctx, feedID)
	require.NoError(t, err)
	require.Equal(t, model.StatusOK, got.LastStatus)
	require.NotNil(t, got.SyncCursor)
	require.Equal(t, "1042", *got.SyncCursor)
	require.NotNil(t, got.LastFetchedAt)
	require.True(t, got.LastFetchedAt.Equal(fetchedAt))

	// A nil cursor records the status but keeps the stored cursor.
	require.NoError(t, repo.UpdateFeedMeta(ctx, feedID, model.StatusNetworkError, fetchedAt.Add(time.Hour), nil))
	got, err = repo.GetByID(ctx, feedID)
	require.NoError(t, err)
	require.Equal(t, model.StatusNetworkError, got.LastStatus)
	require.NotNil(t, got.SyncCursor)
	require.Equal(t, "1042", *got.SyncCursor)
}

func TestItemRepository_UpdateAutoUpdate(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewItemRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendStandard})
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{})

	interval := 30
	require.NoError(t, repo.UpdateAutoUpdate(ctx, feedID, model.AutoUpdateSpecific, &interval))
	got, err := repo.GetByID(ctx, feedID)
	require.NoError(t, err)
	require.Equal(t, model.AutoUpdateSpecific, got.AutoUpdateType)
	require.NotNil(t, got.AutoUpdateInterval)
	require.Equal(t, 30, *got.AutoUpdateInterval)

	require.NoError(t, repo.UpdateAutoUpdate(ctx, feedID, model.AutoUpdateDisabled, nil))
	got, err = repo.GetByID(ctx, feedID)
	require.NoError(t, err)
	require.Equal(t, model.AutoUpdateDisabled, got.AutoUpdateType)
	require.Nil(t, got.AutoUpdateInterval)
}

func TestItemRepository_ListByAccountAndDelete(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewItemRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendStandard})
	catID := testutil.SeedCategory(t, database, accountID, accountID, "Tech")
	feedID := testutil.SeedFeed(t, database, accountID, catID, model.Item{Title: "Feed"})

	items, err := repo.ListByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.NoError(t, repo.Delete(ctx, []int64{catID, feedID}))
	items, err = repo.ListByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, model.KindServiceRoot, items[0].Kind)
}
