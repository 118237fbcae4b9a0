package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordRegistration("Architect", "created")
	m.RecordRegistration("Architect", "created")
	m.RecordRegistration("Customer", "rejected")
	m.RecordReview("approve")
	m.RecordRequest("/api/auth/register", "POST", 201, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations.WithLabelValues("Architect", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("Customer", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reviews.WithLabelValues("approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/auth/register", "POST", "201")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "NOT_FOUND")
		m.RecordRegistration("Customer", "created")
		m.RecordReview("reject")
	})
}
