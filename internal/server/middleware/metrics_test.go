package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func makeRequest(e *echo.Echo, path string, rec http.ResponseWriter) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	e.ServeHTTP(rec, req)
}

func clearRegisteredMetrics(t *testing.T, conf MetricsConfig) {
	_, err := registerHTTPMetrics(conf)
	if err == nil {
		return
	}
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		httpMetrics := are.ExistingCollector.(*prometheus.HistogramVec)
		httpMetrics.Reset()
		return
	}
	t.Errorf("unexpected error %v", err)
}

func TestMetricsMiddleware(t *testing.T) {
	clearRegisteredMetrics(t, DefaultMetricsConfig)
	e := echo.New()
	e.Use(Metrics())

	e.GET("/jobs", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/boom", func(c echo.Context) error {
		return fmt.Errorf("handler blew up")
	})

	rec := httptest.NewRecorder()
	for i := 0; i < 10; i++ {
		makeRequest(e, "/jobs", rec)
	}
	for i := 0; i < 3; i++ {
		makeRequest(e, "/boom", rec)
	}
	for i := 0; i < 7; i++ {
		makeRequest(e, "/no-such-route", rec)
	}

	makeRequest(e, "/metrics", rec)
	body := rec.Body.String()

	assert.Contains(t, body, `http_request_duration_seconds_count{code="200",method="GET",path="/jobs"} 10`)
	assert.Contains(t, body, `http_request_duration_seconds_count{code="500",method="GET",path="/boom"} 3`)
	// 404s collapse onto one path label.
	assert.Contains(t, body, `http_request_duration_seconds_count{code="404",method="GET",path="/not-found"} 7`)
}
