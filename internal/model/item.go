package model

import "time"

// ItemKind discriminates the node variants of the account/category/feed tree.
type ItemKind string

const (
	KindServiceRoot ItemKind = "root"
	KindCategory    ItemKind = "category"
	KindFeed        ItemKind = "feed"
	KindRecycleBin  ItemKind = "bin"
	KindLabelsRoot  ItemKind = "labels"
)

// BackendKind identifies which adapter serves an account.
type BackendKind string

const (
	BackendStandard  BackendKind = "standard"
	BackendCloudNews BackendKind = "cloudnews"
	BackendTinyRSS   BackendKind = "tinyrss"
)

// AutoUpdateType selects how a feed's effective refresh interval resolves.
type AutoUpdateType string

const (
	AutoUpdateDefault  AutoUpdateType = "default"
	AutoUpdateSpecific AutoUpdateType = "specific"
	AutoUpdateDisabled AutoUpdateType = "disabled"
)

// FeedStatus is the outcome of the most recent fetch attempt.
type FeedStatus string

const (
	StatusNeverFetched FeedStatus = "never-fetched"
	StatusOK           FeedStatus = "ok"
	StatusAuthError    FeedStatus = "auth-error"
	StatusNetworkError FeedStatus = "network-error"
	StatusTimeout      FeedStatus = "timeout"
	StatusParseError   FeedStatus = "parse-error"
	StatusStorageError FeedStatus = "storage-error"
)

// Item is one node of the tree. Feed-specific and root-specific fields are
// populated only for their kind; the rest stay zero.
type Item struct {
	ID        int64
	AccountID int64
	ParentID  *int64
	Kind      ItemKind
	Title     string
	IconPath  *string
	Ordering  int

	// Feed fields.
	URL                *string
	Encoding           *string
	CustomID           *string
	AutoUpdateType     AutoUpdateType
	AutoUpdateInterval *int // minutes, for AutoUpdateSpecific
	LastFetchedAt      *time.Time
	LastStatus         FeedStatus
	SyncCursor         *string

	// ServiceRoot fields.
	Config *AccountConfig

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountConfig is the backend configuration blob carried by a ServiceRoot.
type AccountConfig struct {
	Backend  BackendKind `json:"backend"`
	BaseURL  string      `json:"baseUrl,omitempty"`
	Username string      `json:"username,omitempty"`
	Password string      `json:"password,omitempty"`

	// UpdateIntervalMinutes is the account default for feeds in
	// AutoUpdateDefault mode. Zero means use the global default.
	UpdateIntervalMinutes int `json:"updateIntervalMinutes,omitempty"`

	// FlagAuthority lets a deployment decide whether this account's backend
	// may overwrite locally-set read/important flags.
	FlagAuthority *bool `json:"flagAuthority,omitempty"`
}

// IsFeed reports whether the item produces messages.
func (i Item) IsFeed() bool { return i.Kind == KindFeed }

// IsSynthetic reports whether the node is maintained by the system rather
// than the user (recycle bin, labels root).
func (i Item) IsSynthetic() bool {
	return i.Kind == KindRecycleBin || i.Kind == KindLabelsRoot
}
