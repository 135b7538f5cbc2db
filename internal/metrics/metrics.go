package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectify_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connectify_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	RoomsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectify_rooms_resolved_total",
			Help: "Total identifier resolutions",
		},
		[]string{"via"}, // "room_id", "course_id" or "created"
	)

	RoomsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectify_rooms_created_total",
			Help: "Total rooms provisioned",
		},
		[]string{"scope"}, // "course" or "adhoc"
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connectify_messages_sent_total",
			Help: "Total messages appended",
		},
	)

	// Event fan-out metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectify_events_published_total",
			Help: "Total events published to the hub",
		},
		[]string{"type"},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectify_events_delivered_total",
			Help: "Total events delivered to subscribers",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connectify_events_dropped_total",
			Help: "Total events dropped on slow subscribers",
		},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connectify_websocket_connections",
			Help: "Currently connected websocket subscribers",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectify_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectify_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
