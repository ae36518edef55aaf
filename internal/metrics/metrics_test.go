package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector(3 * time.Second)

	c.CacheLookup("get_stops", "hit")
	c.CacheLookup("get_stops", "hit")
	c.CacheLookup("get_stops", "miss")
	c.UpstreamFetch("get_stops", 20*time.Millisecond, nil)
	c.UpstreamFetch("get_vehicles", 20*time.Millisecond, errors.New("timeout"))
	c.NotificationResult("sent")
	c.NATSSetConnected(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("get_stops", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("get_stops", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FeedFetches.WithLabelValues("get_vehicles", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Notifications.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSConnected))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.CacheTTL))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector(time.Second)
	c.NotificationResult("skipped")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `acestatus_notifications_total{result="skipped"} 1`)
}
