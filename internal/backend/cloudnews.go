package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"feedkeeper/internal/config"
	"feedkeeper/internal/model"
	"feedkeeper/internal/network"
)

// CloudNewsAdapter speaks a basic-auth JSON API with server-held folders
// and feeds (ownCloud-News style). The server is authoritative for content
// and, by default, for read/star flags; it never asserts ownership of the
// full message list, so absent items are left alone.
type CloudNewsAdapter struct {
	clients *network.ClientFactory
	timeout time.Duration
}

func NewCloudNewsAdapter(clients *network.ClientFactory, timeout time.Duration) *CloudNewsAdapter {
	return &CloudNewsAdapter{clients: clients, timeout: timeout}
}

func (a *CloudNewsAdapter) Capabilities() Capabilities {
	return Capabilities{
		FeedAdd:           true,
		CategoryAdd:       true,
		MessageDelete:     true,
		ContentAuthority:  true,
		FlagAuthority:     true,
		FullListAuthority: false,
	}
}

type cloudNewsFolder struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type cloudNewsFeed struct {
	ID       int64  `json:"id"`
	FolderID int64  `json:"folderId"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

type cloudNewsItem struct {
	ID            int64  `json:"id"`
	GUID          string `json:"guid"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Author        string `json:"author"`
	PubDate       int64  `json:"pubDate"`
	Body          string `json:"body"`
	Unread        bool   `json:"unread"`
	Starred       bool   `json:"starred"`
	LastModified  int64  `json:"lastModified"`
	EnclosureLink string `json:"enclosureLink"`
	EnclosureMime string `json:"enclosureMime"`
}

func (a *CloudNewsAdapter) ListStructure(ctx context.Context, account model.Item) ([]RemoteFolder, []RemoteFeed, error) {
	var foldersResp struct {
		Folders []cloudNewsFolder `json:"folders"`
	}
	if err := a.get(ctx, account, "/folders", nil, &foldersResp); err != nil {
		return nil, nil, err
	}

	var feedsResp struct {
		Feeds []cloudNewsFeed `json:"feeds"`
	}
	if err := a.get(ctx, account, "/feeds", nil, &feedsResp); err != nil {
		return nil, nil, err
	}

	var folders []RemoteFolder
	for _, f := range foldersResp.Folders {
		folders = append(folders, RemoteFolder{
			RemoteID: strconv.FormatInt(f.ID, 10),
			Title:    f.Name,
		})
	}
	var feeds []RemoteFeed
	for _, f := range feedsResp.Feeds {
		feed := RemoteFeed{
			RemoteID: strconv.FormatInt(f.ID, 10),
			Title:    f.Title,
			URL:      f.URL,
		}
		if f.FolderID != 0 {
			feed.FolderRemoteID = strconv.FormatInt(f.FolderID, 10)
		}
		feeds = append(feeds, feed)
	}
	return folders, feeds, nil
}

func (a *CloudNewsAdapter) FetchMessages(ctx context.Context, feed model.Item, cursor string) (FetchResult, error) {
	if feed.CustomID == nil || *feed.CustomID == "" {
		return FetchResult{}, &ProtocolError{Backend: "cloudnews", Err: fmt.Errorf("feed %d has no remote id", feed.ID)}
	}

	params := url.Values{}
	params.Set("id", *feed.CustomID)
	params.Set("getRead", "true")
	params.Set("batchSize", "-1")
	if cursor != "" {
		params.Set("lastModified", cursor)
	}

	var itemsResp struct {
		Items []cloudNewsItem `json:"items"`
	}
	// The engine copies the root's config onto the feed before dispatch.
	if err := a.get(ctx, feed, "/items", params, &itemsResp); err != nil {
		return FetchResult{}, err
	}

	result := FetchResult{NextCursor: cursor}
	var maxModified int64
	for _, item := range itemsResp.Items {
		read := !item.Unread
		starred := item.Starred
		raw := RawMessage{
			CustomID:      strconv.FormatInt(item.ID, 10),
			Title:         model.NormalizeTitle(item.Title),
			URL:           strings.TrimSpace(item.URL),
			Author:        item.Author,
			Contents:      item.Body,
			ReadFlag:      &read,
			ImportantFlag: &starred,
		}
		if item.PubDate > 0 {
			raw.CreatedOn = time.Unix(item.PubDate, 0).UTC()
		}
		if item.GUID != "" {
			raw.CustomID = item.GUID
		}
		if item.EnclosureLink != "" {
			raw.Attachments = append(raw.Attachments, model.Attachment{
				URL:      item.EnclosureLink,
				MimeType: item.EnclosureMime,
			})
		}
		if item.LastModified > maxModified {
			maxModified = item.LastModified
		}
		result.Messages = append(result.Messages, raw)
	}
	if maxModified > 0 {
		result.NextCursor = strconv.FormatInt(maxModified, 10)
	}
	return result, nil
}

func (a *CloudNewsAdapter) get(ctx context.Context, account model.Item, path string, params url.Values, out interface{}) error {
	if account.Config == nil || account.Config.BaseURL == "" {
		return &ProtocolError{Backend: "cloudnews", Err: fmt.Errorf("account %d has no base url", account.AccountID)}
	}

	endpoint := strings.TrimRight(account.Config.BaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &ProtocolError{Backend: "cloudnews", Err: err}
	}
	req.Header.Set("User-Agent", config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(account.Config.Username, account.Config.Password)

	client := a.clients.NewHTTPClient(a.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return ClassifyNetworkError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Backend: "cloudnews", Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &NetworkError{Kind: NetworkTransient, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode >= http.StatusBadRequest:
		return &ProtocolError{Backend: "cloudnews", Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassifyNetworkError(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ProtocolError{Backend: "cloudnews", Err: err}
	}
	return nil
}
