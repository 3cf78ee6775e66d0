package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedkeeper/internal/backend"
	"feedkeeper/internal/model"
	"feedkeeper/internal/network"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <item>
      <guid>post-1</guid>
      <title>First   Post
with newline</title>
      <link>https://example.com/1</link>
      <description>Hello</description>
      <pubDate>Mon, 02 Feb 2026 10:00:00 GMT</pubDate>
      <enclosure url="https://example.com/ep.mp3" type="audio/mpeg" length="2048"/>
    </item>
    <item>
      <guid>post-2</guid>
      <title>Second Post</title>
      <link>https://example.com/2</link>
      <description>World</description>
    </item>
  </channel>
</rss>`

func standardFeed(url string) model.Item {
	return model.Item{ID: 1, Kind: model.KindFeed, URL: &url}
}

func newStandardAdapter(server *httptest.Server) *backend.StandardAdapter {
	return backend.NewStandardAdapter(network.NewClientFactoryForTest(server.Client()), 5*time.Second)
}

func TestStandardAdapter_FetchMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	adapter := newStandardAdapter(server)
	result, err := adapter.FetchMessages(context.Background(), standardFeed(server.URL), "")
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	require.False(t, result.FullList, "pull feeds never own the full list")

	first := result.Messages[0]
	require.Equal(t, "post-1", first.CustomID)
	require.Equal(t, "First Post with newline", first.Title, "titles are whitespace-normalized")
	require.Equal(t, "https://example.com/1", first.URL)
	require.Equal(t, "Hello", first.Contents)
	require.Equal(t, time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC), first.CreatedOn)
	require.Len(t, first.Attachments, 1)
	require.Equal(t, "https://example.com/ep.mp3", first.Attachments[0].URL)
	require.Equal(t, int64(2048), first.Attachments[0].Length)

	require.Nil(t, first.ReadFlag, "pull feeds carry no flag state")
	require.Nil(t, first.ImportantFlag)

	var cursor struct {
		ETag string `json:"etag"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.NextCursor), &cursor))
	require.Equal(t, `"v1"`, cursor.ETag)
}

func TestStandardAdapter_ConditionalGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	adapter := newStandardAdapter(server)
	ctx := context.Background()

	result, err := adapter.FetchMessages(ctx, standardFeed(server.URL), "")
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)

	// The validator cursor turns the next fetch into a 304.
	unchanged, err := adapter.FetchMessages(ctx, standardFeed(server.URL), result.NextCursor)
	require.NoError(t, err)
	require.Empty(t, unchanged.Messages)
	require.Equal(t, result.NextCursor, unchanged.NextCursor, "cursor survives a not-modified response")
}

func TestStandardAdapter_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name: "unauthorized", status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) { require.True(t, backend.IsAuthError(err)) },
		},
		{
			name: "server error", status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) { require.True(t, backend.IsNetworkError(err)) },
		},
		{
			name: "garbage payload", status: http.StatusOK, body: "this is not a feed",
			check: func(t *testing.T, err error) { require.True(t, backend.IsProtocolError(err)) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			adapter := newStandardAdapter(server)
			_, err := adapter.FetchMessages(context.Background(), standardFeed(server.URL), "")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestStandardAdapter_ListStructureIsLocal(t *testing.T) {
	adapter := backend.NewStandardAdapter(network.NewClientFactory(""), time.Second)
	folders, feeds, err := adapter.ListStructure(context.Background(), model.Item{})
	require.NoError(t, err)
	require.Nil(t, folders)
	require.Nil(t, feeds)
}
