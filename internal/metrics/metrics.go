package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "realtyhub"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		},
		[]string{"route", "code"},
	)

	bookingsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_submitted_total",
			Help:      "Persisted booking submissions by kind and trust regime.",
		},
		[]string{"kind", "requester"},
	)

	dateConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "date_conflicts_total",
			Help:      "Stay submissions or blocks rejected because of overlapping holds.",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking status changes by target status.",
		},
		[]string{"status"},
	)

	sideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Post-commit side effects that failed, by effect.",
		},
		[]string{"effect"},
	)

	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Persisted notifications by kind.",
		},
		[]string{"kind"},
	)

	pushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_frames_total",
			Help:      "Frames handed to live channels, by outcome.",
		},
		[]string{"outcome"},
	)

	liveChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_channels",
			Help:      "Currently registered live channels.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingsSubmitted,
			dateConflicts,
			transitions,
			sideEffectFailures,
			notificationsCreated,
			pushes,
			liveChannels,
		)
	})
}

func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

func IncBookingSubmitted(kind string, guest bool) {
	requester := "authenticated"
	if guest {
		requester = "guest"
	}
	bookingsSubmitted.WithLabelValues(kind, requester).Inc()
}

func IncDateConflict() {
	dateConflicts.Inc()
}

func IncTransition(status string) {
	transitions.WithLabelValues(status).Inc()
}

func IncSideEffectFailure(effect string) {
	sideEffectFailures.WithLabelValues(effect).Inc()
}

func IncNotification(kind string) {
	notificationsCreated.WithLabelValues(kind).Inc()
}

func IncPushDelivered() {
	pushes.WithLabelValues("delivered").Inc()
}

func IncPushDropped() {
	pushes.WithLabelValues("dropped").Inc()
}

func SetLiveChannels(n int) {
	liveChannels.Set(float64(n))
}
