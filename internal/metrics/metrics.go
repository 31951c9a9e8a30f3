// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	queueBacklog            *prometheus.GaugeVec
	commandsEnqueuedTotal   *prometheus.CounterVec
	youtubeAPICallsTotal    *prometheus.CounterVec
	scrapesTotal            *prometheus.CounterVec
	apiKeyUsedQuota         *prometheus.GaugeVec
	discoveredChannelsTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		queueBacklog = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawler_queue_backlog",
				Help: "Number of commands waiting in a queue, labeled by queue.",
			},
			[]string{"queue"},
		)

		commandsEnqueuedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_commands_enqueued_total",
				Help: "Total commands enqueued, labeled by queue.",
			},
			[]string{"queue"},
		)

		youtubeAPICallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_youtube_api_calls_total",
				Help: "Total upstream API calls, labeled by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)

		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_scrapes_total",
				Help: "Total scrape commands processed, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		apiKeyUsedQuota = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawler_api_key_used_quota",
				Help: "Used daily quota per credential, labeled by truncated key id.",
			},
			[]string{"key"},
		)

		discoveredChannelsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_discovered_channels_total",
				Help: "Total newly discovered channels sent for crawling.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetQueueBacklog records the current backlog of a queue.
func SetQueueBacklog(queue string, depth int) {
	queueBacklog.WithLabelValues(queue).Set(float64(depth))
}

// ObserveEnqueue increments the enqueued command counter for a queue.
func ObserveEnqueue(queue string) {
	commandsEnqueuedTotal.WithLabelValues(queue).Inc()
}

// ObserveAPICall increments the upstream call counter.
func ObserveAPICall(endpoint, outcome string) {
	youtubeAPICallsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveScrape increments the scrape counter for the given kind and outcome.
func ObserveScrape(kind, outcome string) {
	scrapesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveKeyUsage records the used quota of a credential. Only a short key
// prefix is used as the label to keep the credential out of the exposition.
func ObserveKeyUsage(key string, used int64) {
	if len(key) > 6 {
		key = key[:6]
	}
	apiKeyUsedQuota.WithLabelValues(key).Set(float64(used))
}

// ObserveDiscoveredChannel counts one newly discovered channel.
func ObserveDiscoveredChannel() {
	discoveredChannelsTotal.Inc()
}
