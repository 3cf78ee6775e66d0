// Package backend defines the capability interface every account kind
// implements, and the three concrete adapters: standard web feeds, the
// CloudNews basic-auth API and the TinyRSS session-token API.
package backend

import (
	"context"
	"time"

	"feedkeeper/internal/model"
)

// Capabilities are consulted by the tree and the merge policy before
// structural edits or flag overwrites are permitted.
type Capabilities struct {
	FeedAdd       bool
	CategoryAdd   bool
	MessageDelete bool

	// ContentAuthority: remote content overwrites stored content when it
	// differs. StandardFeed never has it.
	ContentAuthority bool

	// FlagAuthority: remote read/important state overwrites local flags.
	// Deployments may veto it per account via the account config.
	FlagAuthority bool

	// FullListAuthority: messages absent from a fetch are soft-deleted.
	FullListAuthority bool
}

// RemoteFolder and RemoteFeed form the tree fragment a structural sync
// returns. RemoteID values are backend scoped.
type RemoteFolder struct {
	RemoteID string
	Title    string
}

type RemoteFeed struct {
	RemoteID       string
	FolderRemoteID string
	Title          string
	URL            string
}

// RawMessage is one fetched item before dedup. ReadFlag/ImportantFlag are
// nil unless the backend explicitly reports flag state.
type RawMessage struct {
	CustomID    string
	Title       string
	URL         string
	Author      string
	CreatedOn   time.Time
	Contents    string
	Attachments []model.Attachment

	ReadFlag      *bool
	ImportantFlag *bool
}

// FetchResult is the outcome of one FetchMessages call. FullList reports
// whether Messages is the backend's complete live set for the feed, which
// licenses soft-deleting absentees.
type FetchResult struct {
	Messages   []RawMessage
	NextCursor string
	FullList   bool
}

// Adapter is the per-service implementation of structure and message
// retrieval. The cursor is opaque: adapters that support incremental
// fetching hand back a NextCursor the engine persists and replays.
type Adapter interface {
	// ListStructure returns the backend's authoritative folder/feed tree.
	// Adapters without server-held structure return empty slices.
	ListStructure(ctx context.Context, account model.Item) ([]RemoteFolder, []RemoteFeed, error)

	// FetchMessages returns messages for one feed, newest state first
	// honored as returned order. Failures are typed per the taxonomy in
	// errors.go.
	FetchMessages(ctx context.Context, feed model.Item, cursor string) (FetchResult, error)

	Capabilities() Capabilities
}
