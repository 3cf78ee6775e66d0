package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"feedkeeper/internal/config"
	"feedkeeper/internal/model"
	"feedkeeper/internal/network"
)

// standardCursor carries the conditional-GET validators between fetches.
// It is the standard backend's opaque incremental marker.
type standardCursor struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// StandardAdapter serves plain pull-style web feeds (RSS/Atom/JSON Feed).
// Structure is locally owned, and the backend never has authority over
// user flags or the full message list.
type StandardAdapter struct {
	clients *network.ClientFactory
	timeout time.Duration
}

func NewStandardAdapter(clients *network.ClientFactory, timeout time.Duration) *StandardAdapter {
	return &StandardAdapter{clients: clients, timeout: timeout}
}

func (a *StandardAdapter) Capabilities() Capabilities {
	return Capabilities{
		FeedAdd:           true,
		CategoryAdd:       true,
		MessageDelete:     true,
		ContentAuthority:  false,
		FlagAuthority:     false,
		FullListAuthority: false,
	}
}

// ListStructure is a no-op: standard accounts own their structure locally.
func (a *StandardAdapter) ListStructure(ctx context.Context, account model.Item) ([]RemoteFolder, []RemoteFeed, error) {
	return nil, nil, nil
}

func (a *StandardAdapter) FetchMessages(ctx context.Context, feed model.Item, cursor string) (FetchResult, error) {
	if feed.URL == nil || *feed.URL == "" {
		return FetchResult{}, &ProtocolError{Backend: "standard", Err: fmt.Errorf("feed %d has no url", feed.ID)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *feed.URL, nil)
	if err != nil {
		return FetchResult{}, &ProtocolError{Backend: "standard", Err: err}
	}
	req.Header.Set("User-Agent", config.UserAgent)

	var cur standardCursor
	if cursor != "" {
		_ = json.Unmarshal([]byte(cursor), &cur)
	}
	if cur.ETag != "" {
		req.Header.Set("If-None-Match", cur.ETag)
	}
	if cur.LastModified != "" {
		req.Header.Set("If-Modified-Since", cur.LastModified)
	}

	client := a.clients.NewHTTPClient(a.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, ClassifyNetworkError(err)
	}
	defer resp.Body.Close()

	// Not modified: nothing new, keep the cursor.
	if resp.StatusCode == http.StatusNotModified {
		return FetchResult{NextCursor: cursor}, nil
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return FetchResult{}, &AuthError{Backend: "standard", Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode >= http.StatusBadRequest:
		return FetchResult{}, &NetworkError{Kind: NetworkTransient, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	parser := gofeed.NewParser()
	parsed, err := parser.Parse(resp.Body)
	if err != nil {
		return FetchResult{}, &ProtocolError{Backend: "standard", Err: err}
	}

	next := standardCursor{
		ETag:         strings.TrimSpace(resp.Header.Get("ETag")),
		LastModified: strings.TrimSpace(resp.Header.Get("Last-Modified")),
	}
	nextCursor := cursor
	if next.ETag != "" || next.LastModified != "" {
		raw, _ := json.Marshal(next)
		nextCursor = string(raw)
	}

	result := FetchResult{NextCursor: nextCursor}
	for _, item := range parsed.Items {
		result.Messages = append(result.Messages, itemToRawMessage(item))
	}
	return result, nil
}

func itemToRawMessage(item *gofeed.Item) RawMessage {
	raw := RawMessage{
		CustomID: strings.TrimSpace(item.GUID),
		Title:    model.NormalizeTitle(item.Title),
		URL:      strings.TrimSpace(item.Link),
		Contents: item.Content,
	}
	if raw.Contents == "" {
		raw.Contents = item.Description
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		raw.Author = item.Authors[0].Name
	}
	if item.PublishedParsed != nil {
		raw.CreatedOn = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		raw.CreatedOn = item.UpdatedParsed.UTC()
	}
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		att := model.Attachment{URL: enc.URL, MimeType: enc.Type}
		if n, err := parseLength(enc.Length); err == nil {
			att.Length = n
		}
		raw.Attachments = append(raw.Attachments, att)
	}
	return raw
}

func parseLength(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	return n, err
}
