package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)

	assert.NotNil(t, su.vars, "expected expvar map to be initialized")
	assert.NotNil(t, su.vars.Get("Uptime"), "expected uptime metric to be initialized")

	su.RegisterMetric("TestMetric")
	assert.NotNil(t, su.vars.Get("TestMetric"), "expected metric to be registered")

	su.Run()
	defer su.Stop()

	su.Incr("TestMetric")
	su.Incr("TestMetric")
	su.Decr("TestMetric")

	assert.Eventually(t, func() bool {
		return su.vars.Get("TestMetric").String() == "1"
	}, time.Second, 10*time.Millisecond, "expected metric to settle at 1")

	req := httptest.NewRequest(http.MethodGet, "/debug/vars", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok status from stats endpoint")

	var data map[string]any
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&data), "expected json stats payload")
	assert.Contains(t, data, "TestMetric", "expected registered metric in payload")
	assert.Contains(t, data, "Uptime", "expected uptime in payload")
}
