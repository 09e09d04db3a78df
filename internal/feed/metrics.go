package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_feed_events_total",
		Help: "Change events published into the hub, by kind",
	}, []string{"kind"})

	feedMalformedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_feed_malformed_payloads_total",
		Help: "Notification payloads dropped because they could not be normalized",
	})

	feedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timeline_feed_subscribers",
		Help: "Open hub subscriptions",
	})

	feedSlowDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_feed_slow_subscriber_drops_total",
		Help: "Subscriptions ended because the consumer fell behind",
	})

	feedResubscribesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_feed_resubscribes_total",
		Help: "Listener resubscription attempts after a dropped stream",
	})

	feedNotifierReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_feed_notifier_reconnects_total",
		Help: "Times the Postgres notifier re-established its LISTEN connection",
	})

	feedReadBackFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_feed_read_back_failures_total",
		Help: "Oversized entry notifications dropped because the row could not be read back",
	})
)
