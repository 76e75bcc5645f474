package metrics_test

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/auth/metrics"
)

func TestCollector_RecordsAndExposes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordRegistration()
	c.RecordLogin(true)
	c.RecordLogin(false)
	c.RecordSessionCreated("password")
	c.RecordSessionCreated("mfa")
	c.RecordSessionRevoked()
	c.RecordSessionValidation("ok")
	c.RecordHTTPStatus(201)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `castellan_registrations_total 1`)
	assert.Contains(t, body, `castellan_logins_total{result="success"} 1`)
	assert.Contains(t, body, `castellan_logins_total{result="failure"} 1`)
	assert.Contains(t, body, `castellan_sessions_created_total{method="password"} 1`)
	assert.Contains(t, body, `castellan_http_status_total{status_code="201"} 1`)
}

func TestCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)

	assert.Panics(t, func() { metrics.NewCollector(reg) })
}
