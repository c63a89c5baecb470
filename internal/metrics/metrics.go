package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ModerationEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "banshare_moderation_events_total",
	Help: "Ban and unban events observed in registered groups",
}, []string{"kind", "origin"})

var AlertOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "banshare_alert_outcomes_total",
	Help: "Per-recipient fanout decisions",
}, []string{"kind", "outcome"})

var FanoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "banshare_fanout_duration_seconds",
	Help:    "Time to deliver one action to every recipient",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
}, []string{"kind"})

var Confirmations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "banshare_confirmations_total",
	Help: "Outcomes of alert confirmation clicks",
}, []string{"kind", "outcome"})

var StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "banshare_store_errors_total",
	Help: "Failed ban store operations",
}, []string{"op"})

var Panics = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "banshare_recovered_panics_total",
	Help: "Panics recovered in background work",
}, []string{"module"})

var TelegramUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "banshare_telegram_updates_total",
	Help: "Telegram updates handled, by type",
}, []string{"type"})
