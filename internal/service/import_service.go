package service

import (
	"context"
	"io"
	"strings"

	"feedkeeper/internal/backend"
	"feedkeeper/internal/logger"
	"feedkeeper/internal/model"
	"feedkeeper/internal/opml"
	"feedkeeper/internal/repository"
)

// FeedSpec is one entry of a bulk add request. ParentID zero means the
// account root; CategoryPath, when set, wins over ParentID and names a
// category chain created on demand.
type FeedSpec struct {
	URL          string   `json:"url"`
	Title        string   `json:"title,omitempty"`
	ParentID     int64    `json:"parentId,omitempty"`
	CategoryPath []string `json:"categoryPath,omitempty"`
}

// Entry outcomes. An entry never aborts the batch; failures are recorded
// and the batch moves on.
const (
	EntryAdded     = "added"
	EntryDuplicate = "duplicate"
	EntrySkipped   = "skipped"
	EntryFailed    = "failed"
)

type EntryResult struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status"`
	FeedID int64  `json:"feedId,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ImportResult struct {
	Added      int           `json:"added"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Entries    []EntryResult `json:"entries"`
}

type ImportProgress struct {
	Total   int    `json:"total"`
	Current int    `json:"current"`
	Feed    string `json:"feed,omitempty"`
	Status  string `json:"status"` // "started", "importing", "done"
}

type ImportService interface {
	BulkAdd(ctx context.Context, accountID int64, specs []FeedSpec, onProgress func(ImportProgress)) (ImportResult, error)
	ImportOPML(ctx context.Context, accountID int64, r io.Reader, onProgress func(ImportProgress)) (ImportResult, error)
	ExportOPML(ctx context.Context, accountID int64) ([]byte, error)
}

type importService struct {
	items    repository.ItemRepository
	tree     TreeService
	registry *backend.Registry
}

func NewImportService(items repository.ItemRepository, tree TreeService, registry *backend.Registry) ImportService {
	return &importService{items: items, tree: tree, registry: registry}
}

func (s *importService) BulkAdd(ctx context.Context, accountID int64, specs []FeedSpec, onProgress func(ImportProgress)) (ImportResult, error) {
	result := ImportResult{}

	account, ok := s.tree.GetItem(accountID)
	if !ok || account.Kind != model.KindServiceRoot || account.Config == nil {
		return result, ErrNotFound
	}
	adapter, err := s.registry.For(account.Config.Backend)
	if err != nil {
		return result, err
	}
	caps := adapter.Capabilities()
	if !caps.FeedAdd {
		return result, ErrUnsupportedOperation
	}

	if onProgress != nil {
		onProgress(ImportProgress{Total: len(specs), Status: "started"})
	}

	for i, spec := range specs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if onProgress != nil {
			onProgress(ImportProgress{Total: len(specs), Current: i + 1, Feed: spec.Title, Status: "importing"})
		}
		entry := s.addOne(ctx, account, caps, spec)
		result.Entries = append(result.Entries, entry)
		switch entry.Status {
		case EntryAdded:
			result.Added++
		case EntryDuplicate:
			result.Duplicates++
		case EntryFailed:
			result.Failed++
		}
	}

	if onProgress != nil {
		onProgress(ImportProgress{Total: len(specs), Current: len(specs), Status: "done"})
	}
	logger.Info("bulk add completed",
		"module", "import", "action", "bulk_add", "resource", "feed", "result", "ok",
		"account_id", accountID, "added", result.Added, "duplicates", result.Duplicates, "failed", result.Failed)
	return result, nil
}

func (s *importService) addOne(ctx context.Context, account model.Item, caps backend.Capabilities, spec FeedSpec) EntryResult {
	entry := EntryResult{URL: strings.TrimSpace(spec.URL), Title: strings.TrimSpace(spec.Title)}
	if entry.URL == "" {
		entry.Status = EntrySkipped
		return entry
	}

	existing, err := s.items.FindFeedByURL(ctx, account.ID, entry.URL)
	if err != nil {
		entry.Status = EntryFailed
		entry.Error = "lookup failed"
		return entry
	}
	if existing != nil {
		entry.Status = EntryDuplicate
		entry.FeedID = existing.ID
		return entry
	}

	parentID := account.ID
	switch {
	case len(spec.CategoryPath) > 0 && caps.CategoryAdd:
		parentID, err = s.ensureCategoryPath(ctx, account.ID, spec.CategoryPath)
		if err != nil {
			entry.Status = EntryFailed
			entry.Error = err.Error()
			return entry
		}
	case spec.ParentID != 0:
		parent, ok := s.tree.GetItem(spec.ParentID)
		if !ok || parent.AccountID != account.ID {
			entry.Status = EntryFailed
			entry.Error = "parent not found"
			return entry
		}
		parentID = spec.ParentID
	}

	title := entry.Title
	if title == "" {
		title = entry.URL
	}
	url := entry.URL
	created, err := s.tree.AddItem(ctx, parentID, model.Item{
		Kind:  model.KindFeed,
		Title: title,
		URL:   &url,
	})
	if err != nil {
		entry.Status = EntryFailed
		entry.Error = err.Error()
		return entry
	}
	entry.Status = EntryAdded
	entry.FeedID = created.ID
	return entry
}

// ensureCategoryPath walks path under the account root, creating missing
// categories as it goes, and returns the innermost category's id.
func (s *importService) ensureCategoryPath(ctx context.Context, accountID int64, path []string) (int64, error) {
	parentID := accountID
	for _, name := range path {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "Untitled"
		}
		if existing := s.findChildCategory(parentID, name); existing != 0 {
			parentID = existing
			continue
		}
		created, err := s.tree.AddItem(ctx, parentID, model.Item{Kind: model.KindCategory, Title: name})
		if err != nil {
			return 0, err
		}
		parentID = created.ID
	}
	return parentID, nil
}

func (s *importService) findChildCategory(parentID int64, title string) int64 {
	snapshot := s.tree.Snapshot()
	if snapshot == nil {
		return 0
	}
	var find func(n *TreeNode) *TreeNode
	find = func(n *TreeNode) *TreeNode {
		if n.Item.ID == parentID {
			return n
		}
		for _, child := range n.Children {
			if found := find(child); found != nil {
				return found
			}
		}
		return nil
	}
	for _, root := range snapshot.Accounts {
		if parent := find(root); parent != nil {
			for _, child := range parent.Children {
				if child.Item.Kind == model.KindCategory && strings.EqualFold(child.Item.Title, title) {
					return child.Item.ID
				}
			}
			return 0
		}
	}
	return 0
}

func (s *importService) ImportOPML(ctx context.Context, accountID int64, r io.Reader, onProgress func(ImportProgress)) (ImportResult, error) {
	entries, err := opml.Parse(r)
	if err != nil {
		return ImportResult{}, ErrInvalid
	}
	specs := make([]FeedSpec, 0, len(entries))
	for _, e := range entries {
		specs = append(specs, FeedSpec{URL: e.URL, Title: e.Title, CategoryPath: e.CategoryPath})
	}
	return s.BulkAdd(ctx, accountID, specs, onProgress)
}

func (s *importService) ExportOPML(ctx context.Context, accountID int64) ([]byte, error) {
	account, ok := s.tree.GetItem(accountID)
	if !ok || account.Kind != model.KindServiceRoot {
		return nil, ErrNotFound
	}

	snapshot := s.tree.Snapshot()
	var entries []opml.Entry
	var walk func(n *TreeNode, path []string)
	walk = func(n *TreeNode, path []string) {
		for _, child := range n.Children {
			switch child.Item.Kind {
			case model.KindFeed:
				url := ""
				if child.Item.URL != nil {
					url = *child.Item.URL
				}
				entries = append(entries, opml.Entry{
					CategoryPath: append([]string{}, path...),
					Title:        child.Item.Title,
					URL:          url,
				})
			case model.KindCategory:
				walk(child, append(path, child.Item.Title))
			}
		}
	}
	for _, root := range snapshot.Accounts {
		if root.Item.ID == accountID {
			walk(root, nil)
			break
		}
	}
	return opml.Encode(account.Title+" subscriptions", entries)
}
