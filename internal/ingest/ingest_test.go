package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/curbfleet/dispatch/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportPostsPayload(t *testing.T) {
	var got reportPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/tracking", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	battery := 55
	jobID := "j1"
	c := NewClient(Config{BaseURL: srv.URL, Token: "tok-1"})
	err := c.Report(context.Background(), telemetry.Report{
		CourierID:    "c1",
		Lat:          -22.9,
		Lng:          -43.1,
		JobID:        &jobID,
		BatteryLevel: &battery,
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", got.CourierID)
	assert.Equal(t, -22.9, got.Latitude)
	require.NotNil(t, got.JobID)
	assert.Equal(t, "j1", *got.JobID)
	require.NotNil(t, got.BatteryLevel)
	assert.Equal(t, 55, *got.BatteryLevel)
	assert.Nil(t, got.IsCharging)
}

func TestReportIdentityMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tok-1"})
	err := c.Report(context.Background(), telemetry.Report{CourierID: "c2"})
	assert.ErrorIs(t, err, ErrIdentityMismatch)
}

func TestReportServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tok-1"})
	err := c.Report(context.Background(), telemetry.Report{CourierID: "c1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
