package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakeKeys struct {
	selected int
	recorded []string
	err      error
}

func (f *fakeKeys) SelectKey(_ context.Context) (domain.APIKey, error) {
	if f.err != nil {
		return domain.APIKey{}, f.err
	}
	f.selected++
	return domain.APIKey{Key: "test-key", UsedQuota: 1, DailyQuota: 10000}, nil
}

func (f *fakeKeys) RecordUsage(_ context.Context, key domain.APIKey) error {
	f.recorded = append(f.recorded, key.Key)
	return nil
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *fakeKeys, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	keys := &fakeKeys{}
	client := NewClient(Config{
		APIBaseURL:  srv.URL,
		FeedBaseURL: srv.URL + "/feeds/videos.xml",
		Timeout:     2 * time.Second,
	}, keys, zap.NewNop())
	return client, keys, srv
}

func TestGetChannelDetails(t *testing.T) {
	t.Parallel()

	client, keys, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channels", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.Equal(t, "UC123", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"items":[{
			"id":"UC123",
			"snippet":{
				"title":"Sailing Uma",
				"description":"Boat life",
				"publishedAt":"2014-08-01T10:00:00Z",
				"country":"US",
				"thumbnails":{"default":{"url":"https://img.example/uc123.jpg"}}
			},
			"statistics":{"viewCount":"123456","subscriberCount":"7890","hiddenSubscriberCount":false},
			"brandingSettings":{"channel":{"keywords":"sailing \"boat life\""}}
		}]}`)
	}))

	details, err := client.GetChannelDetails(context.Background(), "UC123")
	require.NoError(t, err)
	require.Equal(t, "Sailing Uma", details.Title)
	require.Equal(t, "123456", details.ViewCount)
	require.Equal(t, "7890", details.SubscriberCount)
	require.Equal(t, "US", details.Country)
	require.Equal(t, `sailing "boat life"`, details.Keywords)
	require.Equal(t, time.Date(2014, 8, 1, 10, 0, 0, 0, time.UTC), details.PublishedAt)
	require.Equal(t, []string{"test-key"}, keys.recorded, "usage recorded after success")
}

func TestGetChannelDetailsNotFound(t *testing.T) {
	t.Parallel()

	client, keys, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"items":[]}`)
	}))

	_, err := client.GetChannelDetails(context.Background(), "UCnope")
	require.ErrorIs(t, err, domain.ErrNotFound)
	// The call itself succeeded upstream, so quota was still consumed.
	require.Len(t, keys.recorded, 1)
}

func TestGetChannelDetailsQuotaExceeded(t *testing.T) {
	t.Parallel()

	client, keys, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.GetChannelDetails(context.Background(), "UC123")
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	require.Empty(t, keys.recorded, "failed calls must not be charged")
}

func TestGetChannelSubscriptionsPaginatesAndFilters(t *testing.T) {
	t.Parallel()

	client, keys, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/subscriptions", r.URL.Path)
		require.Equal(t, "50", r.URL.Query().Get("maxResults"))
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"nextPageToken":"page2","items":[
				{"snippet":{"title":"Channel A","description":"a","resourceId":{"kind":"youtube#channel","channelId":"UCa"}}},
				{"snippet":{"title":"Some Playlist","description":"p","resourceId":{"kind":"youtube#playlist","channelId":""}}}
			]}`)
		case "page2":
			fmt.Fprint(w, `{"items":[
				{"snippet":{"title":"Channel B","description":"b","resourceId":{"kind":"youtube#channel","channelId":"UCb"}}}
			]}`)
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	}))

	targets, err := client.GetChannelSubscriptions(context.Background(), "UC123")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, "UCa", targets[0].ChannelID)
	require.Equal(t, "UCb", targets[1].ChannelID)
	require.Len(t, keys.recorded, 2, "one usage per page")
}

func TestGetVideoDetails(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/videos", r.URL.Path)
		fmt.Fprint(w, `{"items":[{
			"id":"vid1",
			"snippet":{"title":"Crossing the Atlantic","description":"ep 1","publishedAt":"2025-05-01T08:00:00Z","tags":["Sailing","Ocean"],"defaultLanguage":"en"},
			"statistics":{"viewCount":"1000","likeCount":"50","commentCount":"notanumber"},
			"status":{"privacyStatus":"public"}
		}]}`)
	}))

	details, err := client.GetVideoDetails(context.Background(), "vid1")
	require.NoError(t, err)
	require.Equal(t, int64(1000), details.Views)
	require.Equal(t, int64(50), details.Likes)
	require.Equal(t, int64(0), details.Comments, "malformed counts default to zero")
	require.Equal(t, []string{"sailing", "ocean"}, details.Tags)
	require.Equal(t, "public", details.Privacy)
}

func TestGetVideoFeed(t *testing.T) {
	t.Parallel()

	client, keys, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/feeds/videos.xml", r.URL.Path)
		require.Equal(t, "UC123", r.URL.Query().Get("channel_id"))
		require.Empty(t, r.URL.Query().Get("key"), "feed is unauthenticated")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>yt:video:vid1</id>
    <yt:videoId>vid1</yt:videoId>
    <title>Episode 1</title>
    <published>2025-05-01T08:00:00+00:00</published>
    <updated>2025-05-02T09:30:00+00:00</updated>
    <media:group>
      <media:title>Episode 1</media:title>
      <media:description>We set sail.</media:description>
      <media:community>
        <media:statistics views="1234"/>
      </media:community>
    </media:group>
  </entry>
  <entry>
    <yt:videoId>vid2</yt:videoId>
    <title>Episode 2</title>
    <published>2025-05-08T08:00:00+00:00</published>
    <updated>2025-05-08T08:00:00+00:00</updated>
    <media:group>
      <media:description>Storm day.</media:description>
      <media:community>
        <media:statistics views="99"/>
      </media:community>
    </media:group>
  </entry>
</feed>`)
	}))

	entries, err := client.GetVideoFeed(context.Background(), "UC123")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "vid1", entries[0].VideoID)
	require.Equal(t, "Episode 1", entries[0].Title)
	require.Equal(t, "We set sail.", entries[0].Description)
	require.Equal(t, int64(1234), entries[0].Views)
	require.Equal(t, time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC), entries[0].Published.UTC())
	require.Empty(t, keys.recorded, "feed calls consume no quota")
}

func TestGetVideoFeedUnavailable(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetVideoFeed(context.Background(), "UC123")
	require.ErrorIs(t, err, domain.ErrFeedUnavailable)
}

func TestGetVideoFeedMalformedXML(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<feed><entry><yt:videoId>`)
	}))

	_, err := client.GetVideoFeed(context.Background(), "UC123")
	require.Error(t, err)
}
