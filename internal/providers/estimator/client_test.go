package estimator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealflow_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateDecodesResponse(t *testing.T) {
	var got Subject
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/estimates/arv", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"value": 250000, "confidence": 72.5, "confidenceLevel": " High ", "text": "solid comps", "prompt": "p", "rawResponse": "r", "costUsd": "0.0125"}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "key", logger.NewWithWriter("test", io.Discard))
	est, err := c.Estimate(context.Background(), KindARV, Subject{LeadID: "l1", Address: "1 Main St", ListingPrice: 180000, Units: 2})
	require.NoError(t, err)

	assert.Equal(t, "1 Main St", got.Address)
	assert.Equal(t, 2, got.Units)

	require.NotNil(t, est.Value)
	assert.Equal(t, 250000.0, *est.Value)
	assert.Equal(t, 72.5, *est.ConfidencePct)
	assert.Equal(t, "high", est.ConfidenceLevel)
	assert.Equal(t, "0.0125", est.Cost.String())
	assert.Equal(t, "r", est.Response)
}

func TestEstimateTextOnlyKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"text": "quiet street", "costUsd": "bogus"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "", logger.NewWithWriter("test", io.Discard))
	est, err := c.Estimate(context.Background(), KindNeighborhood, Subject{Address: "1 Main St"})
	require.NoError(t, err)

	assert.Nil(t, est.Value)
	assert.Equal(t, "quiet street", est.Text)
	assert.True(t, est.Cost.IsZero())
}

func TestEstimateStatusErrors(t *testing.T) {
	for status, want := range map[int]error{
		http.StatusUnauthorized: ErrUnauthorized,
		http.StatusNotFound:     ErrNoEstimate,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		c := New(srv.URL, "k", logger.NewWithWriter("test", io.Discard))
		_, err := c.Estimate(context.Background(), KindRent, Subject{})
		assert.ErrorIs(t, err, want)
		srv.Close()
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "model overloaded")
	}))
	defer srv.Close()
	c := New(srv.URL, "k", logger.NewWithWriter("test", io.Discard))
	_, err := c.Estimate(context.Background(), KindRent, Subject{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}
