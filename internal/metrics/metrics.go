package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	schedulesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "caresched",
			Name:      "schedules_generated_total",
			Help:      "Count of weekly schedules generated.",
		},
	)

	sessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "caresched",
			Name:      "sessions_created_total",
			Help:      "Count of sessions placed by the engine.",
		},
	)

	generationWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "caresched",
			Name:      "generation_warnings_total",
			Help:      "Count of unmet-requirement warnings across runs.",
		},
	)

	draftCopies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "caresched",
			Name:      "draft_copies_total",
			Help:      "Count of draft schedules copied into a new week.",
		},
	)

	modifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresched",
			Name:      "modifications_total",
			Help:      "Count of applied schedule modifications by action.",
		},
		[]string{"action"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresched",
			Name:      "rejections_total",
			Help:      "Count of rejected operations by reason.",
		},
		[]string{"reason"},
	)

	schedulesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "caresched",
			Name:      "schedules_published_total",
			Help:      "Count of schedules published.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresched",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by handler and status.",
		},
		[]string{"handler", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			schedulesGenerated, sessionsCreated, generationWarnings,
			draftCopies, modifications, rejections,
			schedulesPublished, httpRequests,
		)
	})
}

func IncSchedulesGenerated() { schedulesGenerated.Inc() }

func AddSessionsCreated(n int) { sessionsCreated.Add(float64(n)) }

func AddGenerationWarnings(n int) { generationWarnings.Add(float64(n)) }

func IncDraftCopies() { draftCopies.Inc() }

func IncModification(action string) { modifications.WithLabelValues(action).Inc() }

func IncRejection(reason string) { rejections.WithLabelValues(reason).Inc() }

func IncSchedulesPublished() { schedulesPublished.Inc() }

func IncHTTPRequest(handler, status string) { httpRequests.WithLabelValues(handler, status).Inc() }
