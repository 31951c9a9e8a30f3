package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/sailingchannels/crawler/internal/domain"
)

func TestChannelUpsertClearsScrapeError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewChannelStore(mock)

	now := time.Unix(1700000000, 0).UTC()

	ch := domain.Channel{
		ID:               "UCabc",
		Title:            "Sailing Uma",
		Description:      "Life aboard",
		PublishedAt:      now.AddDate(-5, 0, 0),
		Thumbnail:        "https://example.com/t.jpg",
		Subscribers:      123456,
		Views:            7890123,
		Country:          "us",
		Keywords:         []string{"sailing", "sailing uma"},
		Language:         "en",
		DetectedLanguage: true,
		LastCrawl:        now,
	}

	mock.ExpectExec("INSERT INTO channels").
		WithArgs(
			ch.ID, ch.Title, ch.Description, ch.PublishedAt, ch.Thumbnail,
			ch.Subscribers, ch.Views, ch.SubscribersHidden, ch.Country, ch.Keywords,
			ch.Language, ch.DetectedLanguage, ch.LastCrawl,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Upsert(context.Background(), ch)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelExists(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewChannelStore(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("UCabc").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.Exists(context.Background(), "UCabc")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLastCrawlUnknownChannel(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewChannelStore(mock)

	mock.ExpectQuery("SELECT last_crawl FROM channels").
		WithArgs("UCnew").
		WillReturnRows(pgxmock.NewRows([]string{"last_crawl"}))

	lastCrawl, err := store.GetLastCrawl(context.Background(), "UCnew")
	require.NoError(t, err)
	require.Nil(t, lastCrawl)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIDsLastCrawledBefore(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewChannelStore(mock)

	crawledBefore := time.Unix(1700000000, 0).UTC()
	uploadedAfter := crawledBefore.AddDate(-1, 0, 0)

	mock.ExpectQuery("SELECT id FROM channels WHERE last_crawl").
		WithArgs(crawledBefore, uploadedAfter).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("UCa").AddRow("UCb"))

	ids, err := store.GetIDsLastCrawledBefore(context.Background(), crawledBefore, uploadedAfter)
	require.NoError(t, err)
	require.Equal(t, []string{"UCa", "UCb"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetVideoStats(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewChannelStore(mock)

	lastUpload := time.Unix(1699990000, 0).UTC()
	crawledAt := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("UPDATE channels SET video_count").
		WithArgs("UCabc", int64(42), lastUpload, crawledAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.SetVideoStats(context.Background(), "UCabc", 42, lastUpload, crawledAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
