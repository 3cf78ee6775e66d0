package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedkeeper/internal/backend"
	"feedkeeper/internal/model"
	"feedkeeper/internal/network"
	"feedkeeper/internal/repository"
	"feedkeeper/internal/repository/testutil"
	"feedkeeper/internal/service"
)

func newTreeFixture(t *testing.T) (service.TreeService, *service.SyncContext, *backend.Registry) {
	t.Helper()
	database := testutil.NewTestDB(t)
	items := repository.NewItemRepository(database)
	messages := repository.NewMessageRepository(database)
	registry := backend.NewRegistry(network.NewClientFactory(""), time.Second)
	syncCtx := service.NewSyncContext()
	tree := service.NewTreeService(items, messages, registry, syncCtx)
	require.NoError(t, tree.Load(context.Background()))
	return tree, syncCtx, registry
}

func TestTreeService_CreateAccountAddsSyntheticNodes(t *testing.T) {
	tree, _, _ := newTreeFixture(t)
	ctx := context.Background()

	standard, err := tree.CreateAccount(ctx, "Local", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)
	tiny, err := tree.CreateAccount(ctx, "TinyRSS", model.AccountConfig{Backend: model.BackendTinyRSS})
	require.NoError(t, err)

	snapshot := tree.Snapshot()
	require.Len(t, snapshot.Accounts, 2)

	kinds := func(accountID int64) map[model.ItemKind]int {
		out := map[model.ItemKind]int{}
		for _, root := range snapshot.Accounts {
			if root.Item.ID != accountID {
				continue
			}
			for _, child := range root.Children {
				out[child.Item.Kind]++
			}
		}
		return out
	}

	require.Equal(t, map[model.ItemKind]int{model.KindRecycleBin: 1}, kinds(standard.ID))
	require.Equal(t, map[model.ItemKind]int{model.KindRecycleBin: 1, model.KindLabelsRoot: 1}, kinds(tiny.ID))
}

func TestTreeService_CreateAccountRejectsUnknownBackend(t *testing.T) {
	tree, _, _ := newTreeFixture(t)

	_, err := tree.CreateAccount(context.Background(), "Bad", model.AccountConfig{Backend: "gopherfeed"})
	require.ErrorIs(t, err, service.ErrInvalid)
}

func TestTreeService_AddItemHonorsCapabilities(t *testing.T) {
	tree, _, _ := newTreeFixture(t)
	ctx := context.Background()

	tiny, err := tree.CreateAccount(ctx, "TinyRSS", model.AccountConfig{Backend: model.BackendTinyRSS})
	require.NoError(t, err)

	url := "https://example.com/feed.xml"
	_, err = tree.AddItem(ctx, tiny.ID, model.Item{Kind: model.KindFeed, Title: "Feed", URL: &url})
	require.ErrorIs(t, err, service.ErrUnsupportedOperation)

	local, err := tree.CreateAccount(ctx, "Local", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)
	created, err := tree.AddItem(ctx, local.ID, model.Item{Kind: model.KindFeed, Title: "Feed", URL: &url})
	require.NoError(t, err)
	require.Equal(t, local.ID, created.AccountID)
}

func TestTreeService_MoveItemRejectsCrossAccount(t *testing.T) {
	tree, _, _ := newTreeFixture(t)
	ctx := context.Background()

	first, err := tree.CreateAccount(ctx, "First", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)
	second, err := tree.CreateAccount(ctx, "Second", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)

	cat, err := tree.AddItem(ctx, first.ID, model.Item{Kind: model.KindCategory, Title: "News"})
	require.NoError(t, err)

	err = tree.MoveItem(ctx, cat.ID, second.ID)
	require.ErrorIs(t, err, service.ErrInvalidTransfer)

	// Moving a category under its own descendant is a cycle.
	sub, err := tree.AddItem(ctx, cat.ID, model.Item{Kind: model.KindCategory, Title: "Sub"})
	require.NoError(t, err)
	err = tree.MoveItem(ctx, cat.ID, sub.ID)
	require.ErrorIs(t, err, service.ErrInvalid)
}

func TestTreeService_RemoveItemWhileBusy(t *testing.T) {
	tree, syncCtx, _ := newTreeFixture(t)
	ctx := context.Background()

	account, err := tree.CreateAccount(ctx, "Local", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)
	url := "https://example.com/feed.xml"
	feed, err := tree.AddItem(ctx, account.ID, model.Item{Kind: model.KindFeed, Title: "Feed", URL: &url})
	require.NoError(t, err)

	require.NoError(t, syncCtx.Acquire(account.ID, "update"))
	defer syncCtx.Release(account.ID)

	err = tree.RemoveItem(ctx, feed.ID)
	require.ErrorIs(t, err, service.ErrItemBusy)
}

func TestTreeService_RemoveSubtreeTombstonesMessages(t *testing.T) {
	database := testutil.NewTestDB(t)
	items := repository.NewItemRepository(database)
	messages := repository.NewMessageRepository(database)
	registry := backend.NewRegistry(network.NewClientFactory(""), time.Second)
	tree := service.NewTreeService(items, messages, registry, service.NewSyncContext())
	ctx := context.Background()
	require.NoError(t, tree.Load(ctx))

	account, err := tree.CreateAccount(ctx, "Local", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)
	cat, err := tree.AddItem(ctx, account.ID, model.Item{Kind: model.KindCategory, Title: "Tech"})
	require.NoError(t, err)
	url := "https://example.com/feed.xml"
	feed, err := tree.AddItem(ctx, cat.ID, model.Item{Kind: model.KindFeed, Title: "Feed", URL: &url})
	require.NoError(t, err)

	msgID := testutil.SeedMessage(t, database, model.Message{
		FeedID: feed.ID, AccountID: account.ID, Title: "post", CreatedOn: time.Now().UTC(),
	})

	require.NoError(t, tree.RemoveItem(ctx, cat.ID))

	_, ok := tree.GetItem(cat.ID)
	require.False(t, ok)
	_, ok = tree.GetItem(feed.ID)
	require.False(t, ok)

	// Messages of removed feeds are tombstoned, not physically removed.
	var pdeleted int
	require.NoError(t, database.QueryRow(`SELECT permanently_deleted FROM messages WHERE id = ?`, msgID).Scan(&pdeleted))
	require.Equal(t, 1, pdeleted)
}

func TestTreeService_CounterPropagation(t *testing.T) {
	tree, _, _ := newTreeFixture(t)
	ctx := context.Background()

	account, err := tree.CreateAccount(ctx, "Local", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)
	cat, err := tree.AddItem(ctx, account.ID, model.Item{Kind: model.KindCategory, Title: "Tech"})
	require.NoError(t, err)
	url := "https://example.com/feed.xml"
	feed, err := tree.AddItem(ctx, cat.ID, model.Item{Kind: model.KindFeed, Title: "Feed", URL: &url})
	require.NoError(t, err)

	tree.ApplyFeedCounts(feed.ID, 3, 10)

	find := func(id int64) *service.TreeNode {
		var found *service.TreeNode
		var walk func(n *service.TreeNode)
		walk = func(n *service.TreeNode) {
			if n.Item.ID == id {
				found = n
				return
			}
			for _, child := range n.Children {
				walk(child)
			}
		}
		for _, root := range tree.Snapshot().Accounts {
			walk(root)
		}
		return found
	}

	require.Equal(t, 3, find(feed.ID).Unread)
	require.Equal(t, 10, find(feed.ID).Total)
	require.Equal(t, 3, find(cat.ID).Unread, "category aggregates its feeds")
	require.Equal(t, 3, find(account.ID).Unread, "root aggregates the account")

	// A read-flag delta walks the same ancestor chain.
	tree.AdjustCounts(feed.ID, -1, 0)
	require.Equal(t, 2, find(feed.ID).Unread)
	require.Equal(t, 2, find(cat.ID).Unread)
	require.Equal(t, 2, find(account.ID).Unread)
}

func findTreeNode(tree service.TreeService, id int64) *service.TreeNode {
	var found *service.TreeNode
	var walk func(n *service.TreeNode)
	walk = func(n *service.TreeNode) {
		if n.Item.ID == id {
			found = n
			return
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, root := range tree.Snapshot().Accounts {
		walk(root)
	}
	return found
}

func TestTreeService_LoadSeedsAncestorCounters(t *testing.T) {
	database := testutil.NewTestDB(t)
	items := repository.NewItemRepository(database)
	messages := repository.NewMessageRepository(database)
	registry := backend.NewRegistry(network.NewClientFactory(""), time.Second)
	ctx := context.Background()

	first := service.NewTreeService(items, messages, registry, service.NewSyncContext())
	require.NoError(t, first.Load(ctx))
	account, err := first.CreateAccount(ctx, "Local", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)
	cat, err := first.AddItem(ctx, account.ID, model.Item{Kind: model.KindCategory, Title: "Tech"})
	require.NoError(t, err)
	url := "https://example.com/feed.xml"
	feed, err := first.AddItem(ctx, cat.ID, model.Item{Kind: model.KindFeed, Title: "Feed", URL: &url})
	require.NoError(t, err)

	testutil.SeedMessage(t, database, model.Message{FeedID: feed.ID, AccountID: account.ID, Title: "one", CreatedOn: time.Now().UTC()})
	testutil.SeedMessage(t, database, model.Message{FeedID: feed.ID, AccountID: account.ID, Title: "two", CreatedOn: time.Now().UTC()})
	testutil.SeedMessage(t, database, model.Message{FeedID: feed.ID, AccountID: account.ID, Title: "three", CreatedOn: time.Now().UTC(), Read: true})

	// A fresh process loads the same store; aggregates must match the
	// feed counts all the way up.
	second := service.NewTreeService(items, messages, registry, service.NewSyncContext())
	require.NoError(t, second.Load(ctx))

	require.Equal(t, 2, findTreeNode(second, feed.ID).Unread)
	require.Equal(t, 3, findTreeNode(second, feed.ID).Total)
	require.Equal(t, 2, findTreeNode(second, cat.ID).Unread, "category aggregates after load")
	require.Equal(t, 3, findTreeNode(second, cat.ID).Total)
	require.Equal(t, 2, findTreeNode(second, account.ID).Unread, "root aggregates after load")
	require.Equal(t, 3, findTreeNode(second, account.ID).Total)
}

func TestTreeService_MoveItemCarriesCounters(t *testing.T) {
	tree, _, _ := newTreeFixture(t)
	ctx := context.Background()

	account, err := tree.CreateAccount(ctx, "Local", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)
	catA, err := tree.AddItem(ctx, account.ID, model.Item{Kind: model.KindCategory, Title: "A"})
	require.NoError(t, err)
	catB, err := tree.AddItem(ctx, account.ID, model.Item{Kind: model.KindCategory, Title: "B"})
	require.NoError(t, err)
	url := "https://example.com/feed.xml"
	feed, err := tree.AddItem(ctx, catA.ID, model.Item{Kind: model.KindFeed, Title: "Feed", URL: &url})
	require.NoError(t, err)

	tree.ApplyFeedCounts(feed.ID, 5, 8)
	require.NoError(t, tree.MoveItem(ctx, feed.ID, catB.ID))

	require.Equal(t, 0, findTreeNode(tree, catA.ID).Unread, "old parent loses the moved subtree's counts")
	require.Equal(t, 0, findTreeNode(tree, catA.ID).Total)
	require.Equal(t, 5, findTreeNode(tree, catB.ID).Unread, "new parent gains them")
	require.Equal(t, 8, findTreeNode(tree, catB.ID).Total)
	require.Equal(t, 5, findTreeNode(tree, account.ID).Unread, "the account total is unchanged by a move")
	require.Equal(t, 8, findTreeNode(tree, account.ID).Total)
}

func TestTreeService_RemoveCategoryUpdatesAncestors(t *testing.T) {
	tree, _, _ := newTreeFixture(t)
	ctx := context.Background()

	account, err := tree.CreateAccount(ctx, "Local", model.AccountConfig{Backend: model.BackendStandard})
	require.NoError(t, err)
	cat, err := tree.AddItem(ctx, account.ID, model.Item{Kind: model.KindCategory, Title: "Tech"})
	require.NoError(t, err)
	url := "https://example.com/feed.xml"
	feed, err := tree.AddItem(ctx, cat.ID, model.Item{Kind: model.KindFeed, Title: "Feed", URL: &url})
	require.NoError(t, err)

	tree.ApplyFeedCounts(feed.ID, 4, 9)
	require.NoError(t, tree.RemoveItem(ctx, cat.ID))

	require.Equal(t, 0, findTreeNode(tree, account.ID).Unread, "removed subtree's counts leave the root")
	require.Equal(t, 0, findTreeNode(tree, account.ID).Total)
}

func TestTreeService_ApplyRemoteStructureReconciles(t *testing.T) {
	database := testutil.NewTestDB(t)
	items := repository.NewItemRepository(database)
	messages := repository.NewMessageRepository(database)
	registry := backend.NewRegistry(network.NewClientFactory(""), time.Second)
	tree := service.NewTreeService(items, messages, registry, service.NewSyncContext())
	ctx := context.Background()
	require.NoError(t, tree.Load(ctx))

	account, err := tree.CreateAccount(ctx, "Remote", model.AccountConfig{Backend: model.BackendTinyRSS})
	require.NoError(t, err)

	require.NoError(t, tree.ApplyRemoteStructure(ctx, account.ID,
		[]backend.RemoteFolder{{RemoteID: "1", Title: "News"}},
		[]backend.RemoteFeed{
			{RemoteID: "10", FolderRemoteID: "1", Title: "Gone", URL: "https://example.com/a"},
			{RemoteID: "11", Title: "Kept", URL: "https://example.com/b"},
		}))

	feedByRemoteID := func(remoteID string) model.Item {
		for _, feed := range tree.FeedsForAccount(account.ID) {
			if feed.CustomID != nil && *feed.CustomID == remoteID {
				return feed
			}
		}
		t.Fatalf("no feed with remote id %s", remoteID)
		return model.Item{}
	}
	gone := feedByRemoteID("10")
	kept := feedByRemoteID("11")
	folder := *gone.ParentID

	msgID := testutil.SeedMessage(t, database, model.Message{
		FeedID: gone.ID, AccountID: account.ID, Title: "post", CreatedOn: time.Now().UTC(),
	})
	tree.ApplyFeedCounts(gone.ID, 1, 1)

	// The server dropped feed 10, retitled the folder, and moved feed 11
	// into it.
	require.NoError(t, tree.ApplyRemoteStructure(ctx, account.ID,
		[]backend.RemoteFolder{{RemoteID: "1", Title: "World News"}},
		[]backend.RemoteFeed{
			{RemoteID: "11", FolderRemoteID: "1", Title: "Kept Renamed", URL: "https://example.com/b"},
		}))

	_, ok := tree.GetItem(gone.ID)
	require.False(t, ok, "feeds the server stopped reporting are pruned")
	var pdeleted int
	require.NoError(t, database.QueryRow(`SELECT permanently_deleted FROM messages WHERE id = ?`, msgID).Scan(&pdeleted))
	require.Equal(t, 1, pdeleted, "pruned feeds' messages are tombstoned")

	folderItem, ok := tree.GetItem(folder)
	require.True(t, ok)
	require.Equal(t, "World News", folderItem.Title)

	keptItem, ok := tree.GetItem(kept.ID)
	require.True(t, ok)
	require.Equal(t, "Kept Renamed", keptItem.Title)
	require.Equal(t, folder, *keptItem.ParentID, "server-side moves are followed")

	require.Equal(t, 0, findTreeNode(tree, account.ID).Unread, "pruned counts leave the root")
	require.Equal(t, 0, findTreeNode(tree, account.ID).Total)
}
