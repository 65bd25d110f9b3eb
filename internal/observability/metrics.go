package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesTotal counts applied votes by outcome (created, changed, unchanged).
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_votes_total",
		Help: "Total number of votes by outcome",
	}, []string{"outcome"})

	// AuthEventsTotal counts authentication events by kind and result.
	AuthEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_auth_events_total",
		Help: "Total number of authentication events",
	}, []string{"event", "result"})

	// SessionsActive approximates live sessions created minus destroyed by this process.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forum_sessions_active",
		Help: "Sessions created minus sessions destroyed by this instance",
	})

	// MailOutboundTotal counts reset-link messages handed to a mail sender.
	MailOutboundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_mail_outbound_total",
		Help: "Total number of outbound mail messages by driver and result",
	}, []string{"driver", "result"})
)

// RecordAuthEvent increments the auth event counter.
func RecordAuthEvent(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	AuthEventsTotal.WithLabelValues(event, result).Inc()
}
