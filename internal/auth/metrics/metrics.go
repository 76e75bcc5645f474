// Package metrics collects and exposes Prometheus metrics for the
// authentication core.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the service and HTTP layers record against.
type Recorder interface {
	RecordRegistration()
	RecordLogin(success bool)
	RecordSessionCreated(method string)
	RecordSessionRevoked()
	RecordSessionValidation(outcome string)
	RecordHTTPStatus(statusCode int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	registrations     prometheus.Counter
	logins            *prometheus.CounterVec
	sessionsCreated   *prometheus.CounterVec
	sessionsRevoked   prometheus.Counter
	sessionValidation *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castellan_registrations_total",
			Help: "Total user registrations.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castellan_logins_total",
			Help: "Total password login attempts by result.",
		}, []string{"result"}),
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castellan_sessions_created_total",
			Help: "Total sessions created by authentication method.",
		}, []string{"method"}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castellan_sessions_revoked_total",
			Help: "Total sessions revoked.",
		}),
		sessionValidation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castellan_session_validations_total",
			Help: "Total session validations by outcome.",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castellan_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.sessionsCreated,
		c.sessionsRevoked,
		c.sessionValidation,
		c.httpStatus,
	)

	return c
}

func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSessionCreated(method string) {
	c.sessionsCreated.WithLabelValues(method).Inc()
}

func (c *Collector) RecordSessionRevoked() {
	c.sessionsRevoked.Inc()
}

// RecordSessionValidation records the gate a validation stopped at, or "ok".
func (c *Collector) RecordSessionValidation(outcome string) {
	c.sessionValidation.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the Prometheus scrape handler for the gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
