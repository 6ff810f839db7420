package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "courtbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Reservation proposals by outcome.",
		},
		[]string{"outcome"},
	)

	admissionRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_retries_total",
			Help:      "Admission attempts repeated after storage contention.",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_transitions_total",
			Help:      "Reservation status changes by target status and outcome.",
		},
		[]string{"status", "outcome"},
	)

	availabilityDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_duration_seconds",
			Help:      "Time spent computing a venue availability report.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sweptReservations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_completed_total",
			Help:      "Reservations marked completed by the sweep job.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, admissions, admissionRetries, transitions, availabilityDuration, sweptReservations)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncHTTP increments the counter for a route and status code label.
func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

// ObserveAdmission records the outcome label of one proposal.
func ObserveAdmission(outcome string) {
	admissions.WithLabelValues(outcome).Inc()
}

func IncAdmissionRetry() {
	admissionRetries.Inc()
}

func ObserveTransition(status, outcome string) {
	transitions.WithLabelValues(status, outcome).Inc()
}

func ObserveAvailability(d time.Duration) {
	availabilityDuration.Observe(d.Seconds())
}

func AddCompleted(n int64) {
	if n > 0 {
		sweptReservations.Add(float64(n))
	}
}
