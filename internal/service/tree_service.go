package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"feedkeeper/internal/backend"
	"feedkeeper/internal/logger"
	"feedkeeper/internal/model"
	"feedkeeper/internal/repository"
)

// TreeNode is one node of a published snapshot. Snapshots are immutable;
// readers never contend with writers.
type TreeNode struct {
	Item     model.Item
	Unread   int
	Total    int
	Children []*TreeNode
}

// TreeSnapshot is the whole forest, one root node per account.
type TreeSnapshot struct {
	Accounts []*TreeNode
}

type TreeService interface {
	Load(ctx context.Context) error
	Snapshot() *TreeSnapshot

	CreateAccount(ctx context.Context, title string, cfg model.AccountConfig) (model.Item, error)
	ListAccounts() []model.Item
	GetItem(id int64) (model.Item, bool)
	FeedsForAccount(accountID int64) []model.Item

	AddItem(ctx context.Context, parentID int64, item model.Item) (model.Item, error)
	MoveItem(ctx context.Context, itemID, newParentID int64) error
	RemoveItem(ctx context.Context, itemID int64) error
	Rename(ctx context.Context, itemID int64, title string) error
	SetAutoUpdate(ctx context.Context, itemID int64, mode model.AutoUpdateType, interval *int) error

	// ApplyRemoteStructure reconciles server-held folders/feeds into the
	// account subtree. The caller must hold the account's critical lock.
	ApplyRemoteStructure(ctx context.Context, accountID int64, folders []backend.RemoteFolder, feeds []backend.RemoteFeed) error

	// Counter maintenance. ApplyFeedCounts replaces a feed's counts after
	// a merge; AdjustCounts applies a flag-change delta. Both propagate
	// up the ancestor chain without a tree walk.
	ApplyFeedCounts(feedID int64, unread, total int)
	AdjustCounts(feedID int64, unreadDelta, totalDelta int)
	RefreshBinCounts(ctx context.Context, accountID int64)

	// SetFeedMeta mirrors the engine's per-feed status writes into the
	// in-memory arena so snapshots stay current.
	SetFeedMeta(feed model.Item)
}

type treeNode struct {
	item     model.Item
	children []int64
	unread   int
	total    int
}

type treeService struct {
	items    repository.ItemRepository
	messages repository.MessageRepository
	registry *backend.Registry
	syncCtx  *SyncContext

	mu       sync.Mutex
	nodes    map[int64]*treeNode
	accounts []int64

	snapshot atomic.Pointer[TreeSnapshot]
}

func NewTreeService(items repository.ItemRepository, messages repository.MessageRepository, registry *backend.Registry, syncCtx *SyncContext) TreeService {
	s := &treeService{
		items:    items,
		messages: messages,
		registry: registry,
		syncCtx:  syncCtx,
		nodes:    make(map[int64]*treeNode),
	}
	s.snapshot.Store(&TreeSnapshot{})
	return s
}

// Load attaches the whole forest: the only place counters are computed by
// querying the store instead of by incremental deltas.
func (s *treeService) Load(ctx context.Context) error {
	items, err := s.items.ListAll(ctx)
	if err != nil {
		return &StorageError{Op: "tree load", Err: err}
	}
	counts, err := s.messages.AllFeedCounts(ctx)
	if err != nil {
		return &StorageError{Op: "tree load counts", Err: err}
	}
	countByFeed := make(map[int64]repository.FeedCounts, len(counts))
	for _, c := range counts {
		countByFeed[c.FeedID] = c
	}

	s.mu.Lock()
	s.nodes = make(map[int64]*treeNode, len(items))
	s.accounts = nil
	for _, item := range items {
		node := &treeNode{item: item}
		if c, ok := countByFeed[item.ID]; ok && item.IsFeed() {
			node.unread, node.total = c.Unread, c.Total
		}
		s.nodes[item.ID] = node
	}
	for _, item := range items {
		if item.Kind == model.KindServiceRoot {
			s.accounts = append(s.accounts, item.ID)
			continue
		}
		if item.ParentID != nil {
			if parent, ok := s.nodes[*item.ParentID]; ok {
				parent.children = append(parent.children, item.ID)
			}
		}
	}
	// Seed the category and root aggregates from the freshly loaded feed
	// counts; every later change is an incremental delta on top of these.
	for _, node := range s.nodes {
		if node.item.IsFeed() && (node.unread != 0 || node.total != 0) {
			s.adjustAncestorsLocked(node.item, node.unread, node.total)
		}
	}
	s.mu.Unlock()

	for _, accountID := range s.accountIDs() {
		s.RefreshBinCounts(ctx, accountID)
	}
	s.publish()
	return nil
}

func (s *treeService) accountIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.accounts))
	copy(out, s.accounts)
	return out
}

func (s *treeService) Snapshot() *TreeSnapshot {
	return s.snapshot.Load()
}

func (s *treeService) CreateAccount(ctx context.Context, title string, cfg model.AccountConfig) (model.Item, error) {
	if title == "" || cfg.Backend == "" {
		return model.Item{}, ErrInvalid
	}
	if _, err := s.registry.For(cfg.Backend); err != nil {
		return model.Item{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	root, err := s.items.Create(ctx, model.Item{
		Kind:   model.KindServiceRoot,
		Title:  title,
		Config: &cfg,
	})
	if err != nil {
		return model.Item{}, &StorageError{Op: "create account", Err: err}
	}

	bin, err := s.items.Create(ctx, model.Item{
		Kind:      model.KindRecycleBin,
		AccountID: root.ID,
		ParentID:  &root.ID,
		Title:     "Recycle bin",
	})
	if err != nil {
		return model.Item{}, &StorageError{Op: "create recycle bin", Err: err}
	}

	var labels *model.Item
	if cfg.Backend == model.BackendTinyRSS {
		created, err := s.items.Create(ctx, model.Item{
			Kind:      model.KindLabelsRoot,
			AccountID: root.ID,
			ParentID:  &root.ID,
			Title:     "Labels",
		})
		if err != nil {
			return model.Item{}, &StorageError{Op: "create labels root", Err: err}
		}
		labels = &created
	}

	s.mu.Lock()
	s.nodes[root.ID] = &treeNode{item: root, children: []int64{bin.ID}}
	s.nodes[bin.ID] = &treeNode{item: bin}
	if labels != nil {
		s.nodes[labels.ID] = &treeNode{item: *labels}
		rootNode := s.nodes[root.ID]
		rootNode.children = append(rootNode.children, labels.ID)
	}
	s.accounts = append(s.accounts, root.ID)
	s.mu.Unlock()
	s.publish()

	logger.Info("account created", "module", "tree", "action", "create", "resource", "account", "result", "ok", "account_id", root.ID, "backend", string(cfg.Backend))
	return root, nil
}

func (s *treeService) ListAccounts() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Item, 0, len(s.accounts))
	for _, id := range s.accounts {
		if node, ok := s.nodes[id]; ok {
			out = append(out, node.item)
		}
	}
	return out
}

func (s *treeService) GetItem(id int64) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return model.Item{}, false
	}
	return node.item, true
}

func (s *treeService) FeedsForAccount(accountID int64) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var feeds []model.Item
	for _, node := range s.nodes {
		if node.item.AccountID == accountID && node.item.IsFeed() {
			feeds = append(feeds, node.item)
		}
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].ID < feeds[j].ID })
	return feeds
}

func (s *treeService) AddItem(ctx context.Context, parentID int64, item model.Item) (model.Item, error) {
	parent, ok := s.GetItem(parentID)
	if !ok {
		return model.Item{}, ErrNotFound
	}
	if parent.Kind != model.KindServiceRoot && parent.Kind != model.KindCategory {
		return model.Item{}, ErrInvalid
	}
	if item.Kind != model.KindFeed && item.Kind != model.KindCategory {
		return model.Item{}, ErrInvalid
	}

	account, ok := s.GetItem(parent.AccountID)
	if !ok || account.Config == nil {
		return model.Item{}, ErrNotFound
	}
	adapter, err := s.registry.For(account.Config.Backend)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	caps := adapter.Capabilities()
	if item.Kind == model.KindFeed && !caps.FeedAdd {
		return model.Item{}, ErrUnsupportedOperation
	}
	if item.Kind == model.KindCategory && !caps.CategoryAdd {
		return model.Item{}, ErrUnsupportedOperation
	}

	if err := s.syncCtx.Acquire(parent.AccountID, "add item"); err != nil {
		return model.Item{}, err
	}
	defer s.syncCtx.Release(parent.AccountID)

	item.AccountID = parent.AccountID
	item.ParentID = &parentID
	created, err := s.items.Create(ctx, item)
	if err != nil {
		return model.Item{}, &StorageError{Op: "add item", Err: err}
	}

	s.attach(created)
	s.publish()
	return created, nil
}

// attach inserts one item into the arena under its parent.
func (s *treeService) attach(item model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[item.ID] = &treeNode{item: item}
	if item.ParentID != nil {
		if parent, ok := s.nodes[*item.ParentID]; ok {
			parent.children = append(parent.children, item.ID)
		}
	}
}

func (s *treeService) MoveItem(ctx context.Context, itemID, newParentID int64) error {
	item, ok := s.GetItem(itemID)
	if !ok {
		return ErrNotFound
	}
	newParent, ok := s.GetItem(newParentID)
	if !ok {
		return ErrNotFound
	}
	if item.Kind == model.KindServiceRoot || item.IsSynthetic() {
		return ErrInvalid
	}
	if newParent.AccountID != item.AccountID {
		return ErrInvalidTransfer
	}
	if newParent.Kind != model.KindServiceRoot && newParent.Kind != model.KindCategory {
		return ErrInvalid
	}
	if s.isDescendant(newParentID, itemID) {
		return ErrInvalid
	}

	if err := s.syncCtx.Acquire(item.AccountID, "move item"); err != nil {
		return err
	}
	defer s.syncCtx.Release(item.AccountID)

	if err := s.items.UpdateParent(ctx, itemID, newParentID, 0); err != nil {
		return &StorageError{Op: "move item", Err: err}
	}

	s.mu.Lock()
	node := s.nodes[itemID]
	// The subtree's aggregate travels with it: off the old ancestor chain,
	// onto the new one.
	s.adjustAncestorsLocked(node.item, -node.unread, -node.total)
	if node.item.ParentID != nil {
		if oldParent, ok := s.nodes[*node.item.ParentID]; ok {
			oldParent.children = removeID(oldParent.children, itemID)
		}
	}
	node.item.ParentID = &newParentID
	s.nodes[newParentID].children = append(s.nodes[newParentID].children, itemID)
	s.adjustAncestorsLocked(node.item, node.unread, node.total)
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *treeService) Rename(ctx context.Context, itemID int64, title string) error {
	item, ok := s.GetItem(itemID)
	if !ok {
		return ErrNotFound
	}
	if item.Kind == model.KindServiceRoot || item.IsSynthetic() {
		return ErrInvalid
	}
	if title == "" {
		return ErrInvalid
	}
	if err := s.items.UpdateTitle(ctx, itemID, title); err != nil {
		return &StorageError{Op: "rename item", Err: err}
	}
	s.mu.Lock()
	if node, ok := s.nodes[itemID]; ok {
		node.item.Title = title
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *treeService) SetAutoUpdate(ctx context.Context, itemID int64, mode model.AutoUpdateType, interval *int) error {
	item, ok := s.GetItem(itemID)
	if !ok {
		return ErrNotFound
	}
	if !item.IsFeed() {
		return ErrInvalid
	}
	switch mode {
	case model.AutoUpdateDefault, model.AutoUpdateDisabled:
		interval = nil
	case model.AutoUpdateSpecific:
		if interval == nil || *interval <= 0 {
			return ErrInvalid
		}
	default:
		return ErrInvalid
	}
	if err := s.items.UpdateAutoUpdate(ctx, itemID, mode, interval); err != nil {
		return &StorageError{Op: "set auto update", Err: err}
	}
	s.mu.Lock()
	if node, ok := s.nodes[itemID]; ok {
		node.item.AutoUpdateType = mode
		node.item.AutoUpdateInterval = interval
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

// isDescendant reports whether candidate lives in the subtree rooted at
// ancestor.
func (s *treeService) isDescendant(candidate, ancestor int64) bool {
	if candidate == ancestor {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := candidate
	for {
		node, ok := s.nodes[id]
		if !ok || node.item.ParentID == nil {
			return false
		}
		id = *node.item.ParentID
		if id == ancestor {
			return true
		}
	}
}

func (s *treeService) RemoveItem(ctx context.Context, itemID int64) error {
	item, ok := s.GetItem(itemID)
	if !ok {
		return ErrNotFound
	}
	if item.IsSynthetic() {
		return ErrInvalid
	}

	if err := s.syncCtx.Acquire(item.AccountID, "remove item"); err != nil {
		var busy *OperationBusyError
		if errors.As(err, &busy) {
			return fmt.Errorf("%w: %s in progress", ErrItemBusy, busy.Operation)
		}
		return err
	}
	defer s.syncCtx.Release(item.AccountID)

	ids := s.collectSubtree(itemID)
	var feedIDs []int64
	s.mu.Lock()
	for _, id := range ids {
		if node, ok := s.nodes[id]; ok && node.item.IsFeed() {
			feedIDs = append(feedIDs, id)
		}
	}
	s.mu.Unlock()

	// Messages are only tombstoned here; physical removal is cleanup's job.
	if len(feedIDs) > 0 {
		if _, err := s.messages.SetPermanentlyDeletedForFeeds(ctx, feedIDs); err != nil {
			return &StorageError{Op: "remove item messages", Err: err}
		}
	}
	if err := s.items.Delete(ctx, ids); err != nil {
		return &StorageError{Op: "remove item", Err: err}
	}

	s.mu.Lock()
	s.detachSubtreeLocked(itemID)
	if item.Kind == model.KindServiceRoot {
		s.accounts = removeID(s.accounts, itemID)
	}
	s.mu.Unlock()
	s.publish()

	logger.Info("item removed", "module", "tree", "action", "remove", "resource", "item", "result", "ok", "item_id", itemID, "cascade", len(ids))
	return nil
}

// detachSubtreeLocked unlinks a subtree from the arena. The root's
// aggregate is subtracted from its ancestors while they are still
// reachable, before any node is dropped.
func (s *treeService) detachSubtreeLocked(itemID int64) {
	node, ok := s.nodes[itemID]
	if !ok {
		return
	}
	s.adjustAncestorsLocked(node.item, -node.unread, -node.total)
	if node.item.ParentID != nil {
		if parent, ok := s.nodes[*node.item.ParentID]; ok {
			parent.children = removeID(parent.children, itemID)
		}
	}
	stack := []int64{itemID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n, ok := s.nodes[id]; ok {
			stack = append(stack, n.children...)
			delete(s.nodes, id)
		}
	}
}

// collectSubtree returns the item and all descendants, children first not
// guaranteed; callers treat it as an unordered set.
func (s *treeService) collectSubtree(itemID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	stack := []int64{itemID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, ok := s.nodes[id]
		if !ok {
			continue
		}
		out = append(out, id)
		stack = append(stack, node.children...)
	}
	return out
}

func (s *treeService) ApplyRemoteStructure(ctx context.Context, accountID int64, folders []backend.RemoteFolder, feeds []backend.RemoteFeed) error {
	account, ok := s.GetItem(accountID)
	if !ok {
		return ErrNotFound
	}

	// Index the existing subtree by remote id.
	s.mu.Lock()
	existingFolders := make(map[string]int64)
	existingFeeds := make(map[string]int64)
	for _, node := range s.nodes {
		if node.item.AccountID != accountID || node.item.CustomID == nil {
			continue
		}
		switch node.item.Kind {
		case model.KindCategory:
			existingFolders[*node.item.CustomID] = node.item.ID
		case model.KindFeed:
			existingFeeds[*node.item.CustomID] = node.item.ID
		}
	}
	s.mu.Unlock()

	remoteFolders := make(map[string]struct{}, len(folders))
	for _, folder := range folders {
		remoteFolders[folder.RemoteID] = struct{}{}
		if id, ok := existingFolders[folder.RemoteID]; ok {
			if err := s.retitleFromRemote(ctx, id, folder.Title); err != nil {
				return err
			}
			continue
		}
		remoteID := folder.RemoteID
		created, err := s.items.Create(ctx, model.Item{
			Kind:      model.KindCategory,
			AccountID: accountID,
			ParentID:  &account.ID,
			Title:     folder.Title,
			CustomID:  &remoteID,
		})
		if err != nil {
			return &StorageError{Op: "sync remote folder", Err: err}
		}
		existingFolders[remoteID] = created.ID
		s.attach(created)
	}

	remoteFeeds := make(map[string]struct{}, len(feeds))
	for _, feed := range feeds {
		remoteFeeds[feed.RemoteID] = struct{}{}
		parentID := account.ID
		if feed.FolderRemoteID != "" {
			// Only folders the server still reports can hold feeds.
			if _, live := remoteFolders[feed.FolderRemoteID]; live {
				if id, ok := existingFolders[feed.FolderRemoteID]; ok {
					parentID = id
				}
			}
		}
		if id, ok := existingFeeds[feed.RemoteID]; ok {
			if err := s.retitleFromRemote(ctx, id, feed.Title); err != nil {
				return err
			}
			if err := s.reparentFromRemote(ctx, id, parentID); err != nil {
				return err
			}
			continue
		}
		remoteID := feed.RemoteID
		feedURL := feed.URL
		created, err := s.items.Create(ctx, model.Item{
			Kind:      model.KindFeed,
			AccountID: accountID,
			ParentID:  &parentID,
			Title:     feed.Title,
			URL:       &feedURL,
			CustomID:  &remoteID,
		})
		if err != nil {
			return &StorageError{Op: "sync remote feed", Err: err}
		}
		existingFeeds[remoteID] = created.ID
		s.attach(created)
	}

	// The server owns this structure: anything it stopped reporting is
	// pruned locally, with pruned feeds' messages tombstoned for cleanup.
	var staleFeeds, stale []int64
	for remoteID, id := range existingFeeds {
		if _, ok := remoteFeeds[remoteID]; !ok {
			staleFeeds = append(staleFeeds, id)
			stale = append(stale, id)
		}
	}
	for remoteID, id := range existingFolders {
		if _, ok := remoteFolders[remoteID]; !ok {
			stale = append(stale, id)
		}
	}
	if len(staleFeeds) > 0 {
		if _, err := s.messages.SetPermanentlyDeletedForFeeds(ctx, staleFeeds); err != nil {
			return &StorageError{Op: "prune remote feeds", Err: err}
		}
	}
	for _, id := range stale {
		ids := s.collectSubtree(id)
		if len(ids) == 0 {
			continue
		}
		if err := s.items.Delete(ctx, ids); err != nil {
			return &StorageError{Op: "prune remote structure", Err: err}
		}
		s.mu.Lock()
		s.detachSubtreeLocked(id)
		s.mu.Unlock()
	}

	s.publish()
	return nil
}

// retitleFromRemote applies a server-side rename to an existing item.
func (s *treeService) retitleFromRemote(ctx context.Context, itemID int64, title string) error {
	s.mu.Lock()
	node, ok := s.nodes[itemID]
	same := !ok || title == "" || node.item.Title == title
	s.mu.Unlock()
	if same {
		return nil
	}
	if err := s.items.UpdateTitle(ctx, itemID, title); err != nil {
		return &StorageError{Op: "sync remote title", Err: err}
	}
	s.mu.Lock()
	if node, ok := s.nodes[itemID]; ok {
		node.item.Title = title
	}
	s.mu.Unlock()
	return nil
}

// reparentFromRemote follows a server-side move, carrying the feed's
// counters between ancestor chains.
func (s *treeService) reparentFromRemote(ctx context.Context, itemID, parentID int64) error {
	s.mu.Lock()
	node, ok := s.nodes[itemID]
	same := !ok || (node.item.ParentID != nil && *node.item.ParentID == parentID)
	s.mu.Unlock()
	if same {
		return nil
	}
	if err := s.items.UpdateParent(ctx, itemID, parentID, 0); err != nil {
		return &StorageError{Op: "sync remote parent", Err: err}
	}
	s.mu.Lock()
	if node, ok := s.nodes[itemID]; ok {
		s.adjustAncestorsLocked(node.item, -node.unread, -node.total)
		if node.item.ParentID != nil {
			if old, ok := s.nodes[*node.item.ParentID]; ok {
				old.children = removeID(old.children, itemID)
			}
		}
		pid := parentID
		node.item.ParentID = &pid
		if parent, ok := s.nodes[parentID]; ok {
			parent.children = append(parent.children, itemID)
		}
		s.adjustAncestorsLocked(node.item, node.unread, node.total)
	}
	s.mu.Unlock()
	return nil
}

func (s *treeService) ApplyFeedCounts(feedID int64, unread, total int) {
	s.mu.Lock()
	node, ok := s.nodes[feedID]
	if !ok || !node.item.IsFeed() {
		s.mu.Unlock()
		return
	}
	unreadDelta := unread - node.unread
	totalDelta := total - node.total
	node.unread, node.total = unread, total
	s.adjustAncestorsLocked(node.item, unreadDelta, totalDelta)
	s.mu.Unlock()
	s.publish()
}

func (s *treeService) AdjustCounts(feedID int64, unreadDelta, totalDelta int) {
	s.mu.Lock()
	node, ok := s.nodes[feedID]
	if !ok {
		s.mu.Unlock()
		return
	}
	node.unread += unreadDelta
	node.total += totalDelta
	s.adjustAncestorsLocked(node.item, unreadDelta, totalDelta)
	s.mu.Unlock()
	s.publish()
}

// adjustAncestorsLocked walks the parent chain only; aggregates live on
// category and root nodes so no descendant walk ever happens here.
func (s *treeService) adjustAncestorsLocked(item model.Item, unreadDelta, totalDelta int) {
	parentID := item.ParentID
	for parentID != nil {
		parent, ok := s.nodes[*parentID]
		if !ok {
			return
		}
		parent.unread += unreadDelta
		parent.total += totalDelta
		parentID = parent.item.ParentID
	}
}

func (s *treeService) RefreshBinCounts(ctx context.Context, accountID int64) {
	counts, err := s.messages.BinCounts(ctx, accountID)
	if err != nil {
		logger.Warn("bin counts failed", "module", "tree", "action", "count", "resource", "bin", "result", "failed", "account_id", accountID, "error", err)
		return
	}

	s.mu.Lock()
	for _, node := range s.nodes {
		if node.item.AccountID == accountID && node.item.Kind == model.KindRecycleBin {
			node.unread, node.total = counts.Unread, counts.Total
			break
		}
	}
	s.mu.Unlock()
	s.publish()
}

func (s *treeService) SetFeedMeta(feed model.Item) {
	s.mu.Lock()
	if node, ok := s.nodes[feed.ID]; ok {
		node.item.LastStatus = feed.LastStatus
		node.item.LastFetchedAt = feed.LastFetchedAt
		node.item.SyncCursor = feed.SyncCursor
	}
	s.mu.Unlock()
	s.publish()
}

// publish rebuilds the immutable snapshot from the arena and swaps it in
// atomically. Readers holding the previous snapshot keep a consistent view.
func (s *treeService) publish() {
	s.mu.Lock()
	snapshot := &TreeSnapshot{}
	for _, accountID := range s.accounts {
		if node, ok := s.nodes[accountID]; ok {
			snapshot.Accounts = append(snapshot.Accounts, s.buildNodeLocked(node))
		}
	}
	s.mu.Unlock()
	s.snapshot.Store(snapshot)
}

func (s *treeService) buildNodeLocked(node *treeNode) *TreeNode {
	out := &TreeNode{
		Item:   node.item,
		Unread: node.unread,
		Total:  node.total,
	}
	for _, childID := range node.children {
		if child, ok := s.nodes[childID]; ok {
			out.Children = append(out.Children, s.buildNodeLocked(child))
		}
	}
	return out
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
