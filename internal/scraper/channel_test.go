package scraper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/metrics"
	"github.com/sailingchannels/crawler/internal/queue/memory"
	"github.com/sailingchannels/crawler/internal/relevance"
	"github.com/sailingchannels/crawler/internal/youtube"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type fakeChannelRepo struct {
	domain.ChannelRepository

	lastCrawl    *time.Time
	hasLanguage  bool
	upserted     []domain.Channel
	deleted      []string
	scrapeErrors []string
	videoStats   []videoStats
}

type videoStats struct {
	id           string
	count        int64
	lastUploadAt time.Time
	crawledAt    time.Time
}

func (r *fakeChannelRepo) GetLastCrawl(context.Context, string) (*time.Time, error) {
	return r.lastCrawl, nil
}

func (r *fakeChannelRepo) HasDetectedLanguage(context.Context, string) (bool, error) {
	return r.hasLanguage, nil
}

func (r *fakeChannelRepo) Upsert(_ context.Context, ch domain.Channel) error {
	r.upserted = append(r.upserted, ch)
	return nil
}

func (r *fakeChannelRepo) Delete(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeChannelRepo) SetScrapeError(_ context.Context, id, message string, _ time.Time) error {
	r.scrapeErrors = append(r.scrapeErrors, id+": "+message)
	return nil
}

func (r *fakeChannelRepo) SetVideoStats(_ context.Context, id string, count int64, lastUploadAt, crawledAt time.Time) error {
	r.videoStats = append(r.videoStats, videoStats{id, count, lastUploadAt, crawledAt})
	return nil
}

type fakeVideoRepo struct {
	domain.VideoRepository

	updatedAt      map[string]time.Time
	count          int64
	upserted       []domain.Video
	deleted        []string
	deletedChannel []string
}

func (r *fakeVideoRepo) UpdatedAtByChannel(context.Context, string) (map[string]time.Time, error) {
	return r.updatedAt, nil
}

func (r *fakeVideoRepo) CountByChannel(context.Context, string) (int64, error) {
	return r.count, nil
}

func (r *fakeVideoRepo) Upsert(_ context.Context, v domain.Video) error {
	r.upserted = append(r.upserted, v)
	return nil
}

func (r *fakeVideoRepo) Delete(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeVideoRepo) DeleteByChannel(_ context.Context, id string) error {
	r.deletedChannel = append(r.deletedChannel, id)
	return nil
}

type snapshot struct {
	channelID string
	count     int64
}

type fakeSnapshotRepo struct {
	upserted       []snapshot
	deletedChannel []string
}

func (r *fakeSnapshotRepo) Upsert(_ context.Context, channelID string, _ time.Time, count int64) error {
	r.upserted = append(r.upserted, snapshot{channelID, count})
	return nil
}

func (r *fakeSnapshotRepo) DeleteByChannel(_ context.Context, channelID string) error {
	r.deletedChannel = append(r.deletedChannel, channelID)
	return nil
}

type fakeChannelAPI struct {
	details youtube.ChannelDetails
	err     error
}

func (a *fakeChannelAPI) GetChannelDetails(context.Context, string) (youtube.ChannelDetails, error) {
	return a.details, a.err
}

type fakeClassifier struct {
	result relevance.Result
}

func (c *fakeClassifier) Classify(_ context.Context, _, _, _ string, ignoreFilter bool) relevance.Result {
	if ignoreFilter && !c.result.IsBlacklisted {
		return relevance.Result{IsRelevant: true}
	}
	return c.result
}

type fakeDetector struct {
	language string
	calls    int
	texts    []string
}

func (d *fakeDetector) Detect(_ context.Context, text string) (string, error) {
	d.calls++
	d.texts = append(d.texts, text)
	return d.language, nil
}

func newChannelScraper(
	channels *fakeChannelRepo,
	videos *fakeVideoRepo,
	views, subscribers *fakeSnapshotRepo,
	api *fakeChannelAPI,
	classify *fakeClassifier,
	detector *fakeDetector,
	now time.Time,
) *ChannelScraper {
	return NewChannelScraper(nil, api, classify, detector,
		channels, videos, views, subscribers,
		24*time.Hour, fixedClock{now: now}, zap.NewNop(),
	)
}

func TestChannelScrapePersistsRelevantChannel(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	channels := &fakeChannelRepo{}
	views := &fakeSnapshotRepo{}
	subscribers := &fakeSnapshotRepo{}
	detector := &fakeDetector{language: "en"}
	api := &fakeChannelAPI{details: youtube.ChannelDetails{
		ID:              "UCabc",
		Title:           "Sailing Uma",
		Description:     "Life aboard a sailboat",
		PublishedAt:     now.AddDate(-5, 0, 0),
		Country:         "US",
		Keywords:        `sailing "sailing uma" travel`,
		ViewCount:       "7890123",
		SubscriberCount: "123456",
	}}

	s := newChannelScraper(channels, &fakeVideoRepo{}, views, subscribers,
		api, &fakeClassifier{result: relevance.Result{IsRelevant: true}}, detector, now)
	s.scrape(context.Background(), domain.CrawlChannelCommand{ChannelID: "UCabc"})

	require.Len(t, channels.upserted, 1)
	ch := channels.upserted[0]
	require.Equal(t, "UCabc", ch.ID)
	require.EqualValues(t, 7890123, ch.Views)
	require.EqualValues(t, 123456, ch.Subscribers)
	require.Equal(t, "us", ch.Country)
	require.Equal(t, []string{"sailing", "sailing uma", "travel"}, ch.Keywords)
	require.Equal(t, "en", ch.Language)
	require.True(t, ch.DetectedLanguage)
	require.Equal(t, now, ch.LastCrawl)

	// Detection runs on the description alone.
	require.Equal(t, []string{"Life aboard a sailboat"}, detector.texts)

	require.Equal(t, []snapshot{{"UCabc", 7890123}}, views.upserted)
	require.Equal(t, []snapshot{{"UCabc", 123456}}, subscribers.upserted)
}

func TestChannelScrapeSkipsFreshChannel(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	lastCrawl := now.Add(-time.Hour)
	channels := &fakeChannelRepo{lastCrawl: &lastCrawl}
	api := &fakeChannelAPI{err: errors.New("should not be called")}

	s := newChannelScraper(channels, &fakeVideoRepo{}, &fakeSnapshotRepo{}, &fakeSnapshotRepo{},
		api, &fakeClassifier{}, &fakeDetector{}, now)
	s.scrape(context.Background(), domain.CrawlChannelCommand{ChannelID: "UCabc"})

	require.Empty(t, channels.upserted)
	require.Empty(t, channels.scrapeErrors)
}

func TestChannelScrapeRecordsFetchFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	channels := &fakeChannelRepo{}
	api := &fakeChannelAPI{err: errors.New("status 500")}

	s := newChannelScraper(channels, &fakeVideoRepo{}, &fakeSnapshotRepo{}, &fakeSnapshotRepo{},
		api, &fakeClassifier{}, &fakeDetector{}, now)
	s.scrape(context.Background(), domain.CrawlChannelCommand{ChannelID: "UCabc"})

	require.Empty(t, channels.upserted)
	require.Len(t, channels.scrapeErrors, 1)
	require.Contains(t, channels.scrapeErrors[0], "status 500")
}

func TestChannelScrapePurgesBlacklistedChannel(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	channels := &fakeChannelRepo{}
	videos := &fakeVideoRepo{}
	views := &fakeSnapshotRepo{}
	subscribers := &fakeSnapshotRepo{}
	api := &fakeChannelAPI{details: youtube.ChannelDetails{ID: "UCbad", ViewCount: "10"}}

	s := newChannelScraper(channels, videos, views, subscribers,
		api, &fakeClassifier{result: relevance.Result{IsBlacklisted: true}}, &fakeDetector{}, now)
	s.scrape(context.Background(), domain.CrawlChannelCommand{ChannelID: "UCbad"})

	require.Equal(t, []string{"UCbad"}, channels.deleted)
	require.Equal(t, []string{"UCbad"}, videos.deletedChannel)
	require.Equal(t, []string{"UCbad"}, views.deletedChannel)
	require.Equal(t, []string{"UCbad"}, subscribers.deletedChannel)
	require.Empty(t, channels.upserted)
}

func TestChannelScrapeRejectsZeroViews(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	channels := &fakeChannelRepo{}
	api := &fakeChannelAPI{details: youtube.ChannelDetails{
		ID:        "UCempty",
		Title:     "Sailing Soon",
		ViewCount: "0",
	}}

	s := newChannelScraper(channels, &fakeVideoRepo{}, &fakeSnapshotRepo{}, &fakeSnapshotRepo{},
		api, &fakeClassifier{result: relevance.Result{IsRelevant: true}}, &fakeDetector{}, now)
	s.scrape(context.Background(), domain.CrawlChannelCommand{ChannelID: "UCempty"})

	require.Empty(t, channels.upserted)
}

func TestChannelScrapeHiddenSubscribersSnapshotZero(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	channels := &fakeChannelRepo{hasLanguage: true}
	subscribers := &fakeSnapshotRepo{}
	detector := &fakeDetector{}
	api := &fakeChannelAPI{details: youtube.ChannelDetails{
		ID:                    "UCabc",
		Title:                 "Sailing Uma",
		ViewCount:             "100",
		HiddenSubscriberCount: true,
	}}

	s := newChannelScraper(channels, &fakeVideoRepo{}, &fakeSnapshotRepo{}, subscribers,
		api, &fakeClassifier{result: relevance.Result{IsRelevant: true}}, detector, now)
	s.scrape(context.Background(), domain.CrawlChannelCommand{ChannelID: "UCabc"})

	require.Len(t, channels.upserted, 1)
	require.True(t, channels.upserted[0].SubscribersHidden)
	// A withheld count still produces the day's row, recorded as zero.
	require.Equal(t, []snapshot{{"UCabc", 0}}, subscribers.upserted)
	// Language was already detected once; it is never re-detected.
	require.Zero(t, detector.calls)
}

// trackingChannelAPI records call order and how many upstream calls were in
// flight at once.
type trackingChannelAPI struct {
	delay       time.Duration
	calls       []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (a *trackingChannelAPI) GetChannelDetails(_ context.Context, id string) (youtube.ChannelDetails, error) {
	cur := a.inFlight.Add(1)
	for {
		seen := a.maxInFlight.Load()
		if cur <= seen || a.maxInFlight.CompareAndSwap(seen, cur) {
			break
		}
	}
	time.Sleep(a.delay)
	a.calls = append(a.calls, id)
	a.inFlight.Add(-1)
	return youtube.ChannelDetails{ID: id, Title: "Sailing " + id, ViewCount: "10"}, nil
}

func TestChannelScraperDrainsQueueInSendOrder(t *testing.T) {
	t.Parallel()

	api := &trackingChannelAPI{delay: 10 * time.Millisecond}
	q := memory.NewQueue[domain.CrawlChannelCommand]("channels-order", 8)

	ctx := context.Background()
	for _, id := range []string{"UCa", "UCb", "UCc"} {
		require.NoError(t, q.Enqueue(ctx, domain.CrawlChannelCommand{ChannelID: id}))
	}
	q.Close()

	s := NewChannelScraper(q, api, &fakeClassifier{result: relevance.Result{IsRelevant: true}},
		&fakeDetector{}, &fakeChannelRepo{hasLanguage: true}, &fakeVideoRepo{},
		&fakeSnapshotRepo{}, &fakeSnapshotRepo{},
		24*time.Hour, fixedClock{now: time.Now()}, zap.NewNop(),
	)
	require.ErrorIs(t, s.Run(ctx), domain.ErrQueueClosed)

	require.Equal(t, []string{"UCa", "UCb", "UCc"}, api.calls)
	// One consumer per queue means one metered call chain at a time.
	require.EqualValues(t, 1, api.maxInFlight.Load())
}

func TestChannelScraperRunStopsOnClosedQueue(t *testing.T) {
	t.Parallel()

	queue := closedChannelQueue{}
	s := NewChannelScraper(queue, &fakeChannelAPI{}, &fakeClassifier{}, &fakeDetector{},
		&fakeChannelRepo{}, &fakeVideoRepo{}, &fakeSnapshotRepo{}, &fakeSnapshotRepo{},
		24*time.Hour, fixedClock{}, zap.NewNop(),
	)
	require.ErrorIs(t, s.Run(context.Background()), domain.ErrQueueClosed)
}

type closedChannelQueue struct{}

func (closedChannelQueue) Dequeue(context.Context) (domain.CrawlChannelCommand, error) {
	return domain.CrawlChannelCommand{}, domain.ErrQueueClosed
}
