package routing

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/curbfleet/dispatch/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRouteParsesDirections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/directions/json", r.URL.Path)
		assert.Equal(t, "driving", r.URL.Query().Get("mode"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.NotEmpty(t, r.URL.Query().Get("origin"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"routes": [{
				"overview_polyline": {"points": "abc123"},
				"legs": [{
					"distance": {"text": "3.1 km", "value": 3100},
					"duration": {"text": "12 mins", "value": 720}
				}]
			}]
		}`))
	}))
	defer srv.Close()

	plan, err := testClient(srv.URL).Route(context.Background(),
		geo.Point{Lat: -22.9, Lng: -43.1},
		geo.Point{Lat: -22.95, Lng: -43.15},
	)
	require.NoError(t, err)

	assert.Equal(t, "abc123", plan.EncodedPath)
	assert.Equal(t, 3100, plan.DistanceMeters)
	assert.Equal(t, "3.1 km", plan.DistanceText)
	assert.Equal(t, 720, plan.DurationSeconds)
	assert.Equal(t, "12 mins", plan.DurationText)
	assert.False(t, plan.ComputedAt.IsZero())
}

func TestRouteNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "routes": []}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Route(context.Background(), geo.Point{}, geo.Point{})
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestRouteRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"routes": [{
				"overview_polyline": {"points": "abc"},
				"legs": [{"distance": {"text": "1 km", "value": 1000}, "duration": {"text": "5 mins", "value": 300}}]
			}]
		}`))
	}))
	defer srv.Close()

	plan, err := testClient(srv.URL).Route(context.Background(), geo.Point{}, geo.Point{})
	require.NoError(t, err)
	assert.Equal(t, "abc", plan.EncodedPath)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRouteDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Route(context.Background(), geo.Point{}, geo.Point{})
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load(), "4xx responses are not retried")
}

func TestGeocodeParsesLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/json", r.URL.Path)
		assert.Equal(t, "Rua das Flores, 42", r.URL.Query().Get("address"))

		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{"geometry": {"location": {"lat": -22.97, "lng": -43.18}}}]
		}`))
	}))
	defer srv.Close()

	point, err := testClient(srv.URL).Geocode(context.Background(), "Rua das Flores, 42")
	require.NoError(t, err)
	assert.Equal(t, -22.97, point.Lat)
	assert.Equal(t, -43.18, point.Lng)
}

func TestGeocodeNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoRoute)
}
