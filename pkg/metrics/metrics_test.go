package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	c := New("kg")

	c.Reading(23590, 0.2359)
	c.Sensitivity(100000)
	c.Calibrating(true)
	c.Tared()
	c.Tared()
	c.Calibrated()
	c.ReadError()

	assert.Equal(t, float64(23590), testutil.ToFloat64(c.raw))
	assert.InDelta(t, 0.2359, testutil.ToFloat64(c.mass), 1e-12)
	assert.Equal(t, float64(100000), testutil.ToFloat64(c.sensitivity))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.calibrating))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.tares))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.calibrations))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.readErrors))

	c.Calibrating(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(c.calibrating))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Reading(1, 1)
		c.Sensitivity(1)
		c.Calibrating(true)
		c.Tared()
		c.Calibrated()
		c.ReadError()
	})
}

func TestCollector_Handler(t *testing.T) {
	c := New("kg")
	c.Reading(100, 0.001)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "scale_raw_value 100")
	assert.Contains(t, body, `scale_mass{units="kg"} 0.001`)
	assert.Contains(t, body, "scale_tares_total 0")
}
