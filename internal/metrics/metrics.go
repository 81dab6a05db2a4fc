package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinic"

// BookingMetrics counts booking outcomes, transitions and side effects.
// All methods are safe on a nil receiver.
type BookingMetrics struct {
	bookings       *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	sideEffects    *prometheus.CounterVec
	calendarTokens *prometheus.CounterVec
	slotQueries    *prometheus.CounterVec
	slotLatency    prometheus.Histogram
	reminders      *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking submissions by result",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "status_transitions_total",
			Help:      "Persisted appointment status transitions",
		}, []string{"from", "to"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "side_effects_total",
			Help:      "Side effects fired after transitions",
		}, []string{"effect", "result"}),
		calendarTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "token_refresh_total",
			Help:      "Calendar OAuth token refresh attempts",
		}, []string{"result"}),
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "slot_queries_total",
			Help:      "Available slot queries",
		}, []string{"result"}),
		slotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "slot_query_seconds",
			Help:      "Latency of slot generation",
			Buckets:   prometheus.DefBuckets,
		}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminder",
			Name:      "jobs_total",
			Help:      "Processed reminder jobs by outcome",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.transitions, m.sideEffects, m.calendarTokens, m.slotQueries, m.slotLatency, m.reminders)
	return m
}

func (m *BookingMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObserveSideEffect(effect, result string) {
	if m == nil {
		return
	}
	m.sideEffects.WithLabelValues(effect, result).Inc()
}

func (m *BookingMetrics) ObserveCalendarRefresh(result string) {
	if m == nil {
		return
	}
	m.calendarTokens.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery(result string, seconds float64) {
	if m == nil {
		return
	}
	m.slotQueries.WithLabelValues(result).Inc()
	m.slotLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveReminder(result string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
