package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"feedkeeper/internal/config"
	"feedkeeper/internal/model"
	"feedkeeper/internal/network"
)

// TinyRSSAdapter speaks a single-endpoint token-session API (tt-rss style):
// every call POSTs a JSON op, and a login op yields a session id reused
// until the server expires it. Structure lives on the server, and a fetch
// without a cursor returns the feed's complete live headline set, which
// gives this backend full-list authority.
type TinyRSSAdapter struct {
	clients *network.ClientFactory
	timeout time.Duration

	mu       sync.Mutex
	sessions map[int64]string // account id -> session id
}

func NewTinyRSSAdapter(clients *network.ClientFactory, timeout time.Duration) *TinyRSSAdapter {
	return &TinyRSSAdapter{
		clients:  clients,
		timeout:  timeout,
		sessions: make(map[int64]string),
	}
}

func (a *TinyRSSAdapter) Capabilities() Capabilities {
	return Capabilities{
		FeedAdd:           false,
		CategoryAdd:       false,
		MessageDelete:     false,
		ContentAuthority:  true,
		FlagAuthority:     true,
		FullListAuthority: true,
	}
}

type tinyResponse struct {
	Status  int             `json:"status"`
	Content json.RawMessage `json:"content"`
}

type tinyError struct {
	Error string `json:"error"`
}

type tinyCategory struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type tinyFeed struct {
	ID      int64  `json:"id"`
	CatID   int64  `json:"cat_id"`
	Title   string `json:"title"`
	FeedURL string `json:"feed_url"`
}

type tinyHeadline struct {
	ID      int64  `json:"id"`
	GUID    string `json:"guid"`
	Title   string `json:"title"`
	Link    string `json:"link"`
	Author  string `json:"author"`
	Updated int64  `json:"updated"`
	Content string `json:"content"`
	Unread  bool   `json:"unread"`
	Marked  bool   `json:"marked"`
}

func (a *TinyRSSAdapter) ListStructure(ctx context.Context, account model.Item) ([]RemoteFolder, []RemoteFeed, error) {
	var cats []tinyCategory
	if err := a.call(ctx, account, "getCategories", nil, &cats); err != nil {
		return nil, nil, err
	}
	var remoteFeeds []tinyFeed
	if err := a.call(ctx, account, "getFeeds", map[string]interface{}{"cat_id": -3}, &remoteFeeds); err != nil {
		return nil, nil, err
	}

	var folders []RemoteFolder
	for _, c := range cats {
		// Negative ids are the server's virtual feeds (fresh, starred...).
		if c.ID <= 0 {
			continue
		}
		folders = append(folders, RemoteFolder{
			RemoteID: strconv.FormatInt(c.ID, 10),
			Title:    c.Title,
		})
	}
	var feeds []RemoteFeed
	for _, f := range remoteFeeds {
		if f.ID <= 0 {
			continue
		}
		feed := RemoteFeed{
			RemoteID: strconv.FormatInt(f.ID, 10),
			Title:    f.Title,
			URL:      f.FeedURL,
		}
		if f.CatID > 0 {
			feed.FolderRemoteID = strconv.FormatInt(f.CatID, 10)
		}
		feeds = append(feeds, feed)
	}
	return folders, feeds, nil
}

func (a *TinyRSSAdapter) FetchMessages(ctx context.Context, feed model.Item, cursor string) (FetchResult, error) {
	if feed.CustomID == nil || *feed.CustomID == "" {
		return FetchResult{}, &ProtocolError{Backend: "tinyrss", Err: fmt.Errorf("feed %d has no remote id", feed.ID)}
	}

	params := map[string]interface{}{
		"feed_id":      *feed.CustomID,
		"show_content": true,
		"limit":        200,
	}
	fullList := true
	if cursor != "" {
		params["since_id"] = cursor
		fullList = false
	}

	var headlines []tinyHeadline
	if err := a.call(ctx, feed, "getHeadlines", params, &headlines); err != nil {
		return FetchResult{}, err
	}

	result := FetchResult{NextCursor: cursor, FullList: fullList}
	var maxID int64
	for _, h := range headlines {
		read := !h.Unread
		marked := h.Marked
		raw := RawMessage{
			CustomID:      h.GUID,
			Title:         model.NormalizeTitle(h.Title),
			URL:           h.Link,
			Author:        h.Author,
			Contents:      h.Content,
			ReadFlag:      &read,
			ImportantFlag: &marked,
		}
		if raw.CustomID == "" {
			raw.CustomID = strconv.FormatInt(h.ID, 10)
		}
		if h.Updated > 0 {
			raw.CreatedOn = time.Unix(h.Updated, 0).UTC()
		}
		if h.ID > maxID {
			maxID = h.ID
		}
		result.Messages = append(result.Messages, raw)
	}
	if maxID > 0 {
		result.NextCursor = strconv.FormatInt(maxID, 10)
	}
	return result, nil
}

// call runs one op, logging in on demand and retrying exactly once when
// the server reports the session expired.
func (a *TinyRSSAdapter) call(ctx context.Context, account model.Item, op string, params map[string]interface{}, out interface{}) error {
	sid, err := a.session(ctx, account)
	if err != nil {
		return err
	}

	err = a.post(ctx, account, op, sid, params, out)
	if isNotLoggedIn(err) {
		a.dropSession(account.AccountID)
		sid, err = a.session(ctx, account)
		if err != nil {
			return err
		}
		err = a.post(ctx, account, op, sid, params, out)
	}
	return err
}

func (a *TinyRSSAdapter) session(ctx context.Context, account model.Item) (string, error) {
	a.mu.Lock()
	sid := a.sessions[account.AccountID]
	a.mu.Unlock()
	if sid != "" {
		return sid, nil
	}

	if account.Config == nil {
		return "", &ProtocolError{Backend: "tinyrss", Err: fmt.Errorf("account %d has no config", account.AccountID)}
	}
	var login struct {
		SessionID string `json:"session_id"`
	}
	err := a.post(ctx, account, "login", "", map[string]interface{}{
		"user":     account.Config.Username,
		"password": account.Config.Password,
	}, &login)
	if err != nil {
		return "", err
	}
	if login.SessionID == "" {
		return "", &AuthError{Backend: "tinyrss", Reason: "login returned no session id"}
	}

	a.mu.Lock()
	a.sessions[account.AccountID] = login.SessionID
	a.mu.Unlock()
	return login.SessionID, nil
}

func (a *TinyRSSAdapter) dropSession(accountID int64) {
	a.mu.Lock()
	delete(a.sessions, accountID)
	a.mu.Unlock()
}

func (a *TinyRSSAdapter) post(ctx context.Context, account model.Item, op, sid string, params map[string]interface{}, out interface{}) error {
	if account.Config == nil || account.Config.BaseURL == "" {
		return &ProtocolError{Backend: "tinyrss", Err: fmt.Errorf("account %d has no base url", account.AccountID)}
	}

	payload := map[string]interface{}{"op": op}
	if sid != "" {
		payload["sid"] = sid
	}
	for k, v := range params {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &ProtocolError{Backend: "tinyrss", Err: err}
	}

	endpoint := account.Config.BaseURL
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &ProtocolError{Backend: "tinyrss", Err: err}
	}
	req.Header.Set("User-Agent", config.UserAgent)
	req.Header.Set("Content-Type", "application/json")

	client := a.clients.NewHTTPClient(a.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return ClassifyNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &NetworkError{Kind: NetworkTransient, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &ProtocolError{Backend: "tinyrss", Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassifyNetworkError(err)
	}
	var envelope tinyResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &ProtocolError{Backend: "tinyrss", Err: err}
	}
	if envelope.Status != 0 {
		var terr tinyError
		_ = json.Unmarshal(envelope.Content, &terr)
		switch terr.Error {
		case "LOGIN_ERROR":
			return &AuthError{Backend: "tinyrss", Reason: "credentials rejected"}
		case "NOT_LOGGED_IN":
			return errNotLoggedIn
		default:
			return &ProtocolError{Backend: "tinyrss", Err: fmt.Errorf("api status %d: %s", envelope.Status, terr.Error)}
		}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Content, out); err != nil {
			return &ProtocolError{Backend: "tinyrss", Err: err}
		}
	}
	return nil
}

var errNotLoggedIn = &AuthError{Backend: "tinyrss", Reason: "session expired"}

func isNotLoggedIn(err error) bool {
	return err == errNotLoggedIn
}
