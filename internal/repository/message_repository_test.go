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

func TestMessageRepository_FindByDedupKey(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewMessageRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendStandard})
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{})

	customID := "guid-1"
	withID := testutil.SeedMessage(t, database, model.Message{
		FeedID:    feedID,
		AccountID: accountID,
		CustomID:  &customID,
		Title:     "With custom id",
		CreatedOn: time.Now().UTC(),
	})
	hash := model.ComputeMessageHash("Hash only", "", "", "body")
	withHash := testutil.SeedMessage(t, database, model.Message{
		FeedID:     feedID,
		AccountID:  accountID,
		CustomHash: hash,
		Title:      "Hash only",
		CreatedOn:  time.Now().UTC(),
	})

	found, err := repo.FindByDedupKey(ctx, feedID, &customID, "ignored")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, withID, found.ID)

	found, err = repo.FindByDedupKey(ctx, feedID, nil, hash)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, withHash, found.ID)

	// The hash path never matches rows that carry a custom id.
	found, err = repo.FindByDedupKey(ctx, feedID, nil, "no-such-hash")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestMessageRepository_SoftDeleteAndRestoreKeepsRow(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewMessageRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendStandard})
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{})

	url := "https://example.com/post/1"
	author := "jane"
	contents := "<p>body</p>"
	id := testutil.SeedMessage(t, database, model.Message{
		FeedID:    feedID,
		AccountID: accountID,
		Title:     "Post",
		URL:       &url,
		Author:    &author,
		Contents:  &contents,
		CreatedOn: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Read:      true,
		Important: true,
		Attachments: []model.Attachment{
			{URL: "https://example.com/a.mp3", MimeType: "audio/mpeg", Length: 1234},
		},
	})

	before, err := repo.GetByID(ctx, id)
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, id))
	binned, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.True(t, binned.Deleted)

	require.NoError(t, repo.Restore(ctx, id))
	after, err := repo.GetByID(ctx, id)
	require.NoError(t, err)

	// Restore flips only the deleted flag; everything else is untouched.
	require.Equal(t, before, after)
}

func TestMessageRepository_ListViews(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewMessageRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendStandard})
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{})

	unreadID := testutil.SeedMessage(t, database, model.Message{
		FeedID: feedID, AccountID: accountID, Title: "unread", CreatedOn: time.Now().UTC(),
	})
	readID := testutil.SeedMessage(t, database, model.Message{
		FeedID: feedID, AccountID: accountID, Title: "read", Read: true, CreatedOn: time.Now().UTC(),
	})
	binnedID := testutil.SeedMessage(t, database, model.Message{
		FeedID: feedID, AccountID: accountID, Title: "binned", Deleted: true, CreatedOn: time.Now().UTC(),
	})

	live, err := repo.List(ctx, repository.MessageListFilter{FeedID: &feedID})
	require.NoError(t, err)
	require.Len(t, live, 2)
	for _, msg := range live {
		require.NotEqual(t, binnedID, msg.ID)
	}

	unread, err := repo.List(ctx, repository.MessageListFilter{FeedID: &feedID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, unreadID, unread[0].ID)

	bin, err := repo.List(ctx, repository.MessageListFilter{AccountID: &accountID, BinOnly: true})
	require.NoError(t, err)
	require.Len(t, bin, 1)
	require.Equal(t, binnedID, bin[0].ID)

	counts, err := repo.FeedCounts(ctx, feedID)
	require.NoError(t, err)
	require.Equal(t, 1, counts.Unread)
	require.Equal(t, 2, counts.Total)

	_ = readID
}

func TestMessageRepository_MarkAbsentDeleted(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewMessageRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendTinyRSS})
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{})

	ids := make(map[string]int64)
	for _, name := range []string{"a", "b", "c"} {
		customID := name
		ids[name] = testutil.SeedMessage(t, database, model.Message{
			FeedID: feedID, AccountID: accountID, CustomID: &customID,
			Title: name, CreatedOn: time.Now().UTC(),
		})
	}

	// Remote now reports only b and c.
	n, err := repo.MarkAbsentDeleted(ctx, feedID, []string{"b", "c"})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	gone, err := repo.GetByID(ctx, ids["a"])
	require.NoError(t, err)
	require.True(t, gone.Deleted)
	require.False(t, gone.PermanentlyDeleted, "absent messages are binned, not purged")

	kept, err := repo.GetByID(ctx, ids["b"])
	require.NoError(t, err)
	require.False(t, kept.Deleted)
}

func TestMessageRepository_PurgeAndCompact(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewMessageRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendStandard})
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{})

	old := time.Now().UTC().AddDate(0, 0, -40)
	recent := time.Now().UTC()

	oldID := testutil.SeedMessage(t, database, model.Message{
		FeedID: feedID, AccountID: accountID, Title: "old", Read: true, CreatedOn: old,
	})
	recentID := testutil.SeedMessage(t, database, model.Message{
		FeedID: feedID, AccountID: accountID, Title: "recent", CreatedOn: recent,
	})
	binnedID := testutil.SeedMessage(t, database, model.Message{
		FeedID: feedID, AccountID: accountID, Title: "binned", Deleted: true, CreatedOn: recent,
	})

	n, err := repo.PurgeRead(ctx, &accountID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = repo.EmptyBin(ctx, &accountID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// Tombstoned rows are invisible to every view but still present.
	var total int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&total))
	require.Equal(t, 3, total)

	removed, err := repo.DeletePermanentlyDeleted(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&total))
	require.Equal(t, 1, total)

	live, err := repo.List(ctx, repository.MessageListFilter{FeedID: &feedID})
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, recentID, live[0].ID)

	_, _ = oldID, binnedID
}

func TestMessageRepository_DedupKeyReusableAfterTombstone(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := repository.NewMessageRepository(database)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, database, "acc", model.AccountConfig{Backend: model.BackendCloudNews})
	feedID := testutil.SeedFeed(t, database, accountID, accountID, model.Item{})

	customID := "guid-7"
	first := testutil.SeedMessage(t, database, model.Message{
		FeedID: feedID, AccountID: accountID, CustomID: &customID,
		Title: "first", CreatedOn: time.Now().UTC(),
	})

	n, err := repo.SetPermanentlyDeletedForFeeds(ctx, []int64{feedID})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// The same key inserts again once the old row is tombstoned.
	second := testutil.SeedMessage(t, database, model.Message{
		FeedID: feedID, AccountID: accountID, CustomID: &customID,
		Title: "second", CreatedOn: time.Now().UTC(),
	})
	require.NotEqual(t, first, second)

	found, err := repo.FindByDedupKey(ctx, feedID, &customID, "")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, second, found.ID)
}
