package rentcast

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealflow_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const avmBody = `{
  "price": 310000,
  "priceRangeLow": 290000,
  "priceRangeHigh": 330000,
  "latitude": 30.2672,
  "longitude": -97.7431,
  "comparables": [
    {"formattedAddress": "14 Oak St, Austin, TX 78701", "price": 300000, "squareFootage": 1500, "distance": 0.4, "latitude": 30.27, "longitude": -97.74, "removedDate": "2026-05-01T00:00:00Z"},
    {"formattedAddress": "99 Pine Rd, Austin, TX 78701", "price": 280000, "listedDate": "2026-02-10T00:00:00Z"}
  ]
}`

func TestValueMapsComparables(t *testing.T) {
	var gotKey, gotAddress, gotCount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotAddress = r.URL.Query().Get("address")
		gotCount = r.URL.Query().Get("compCount")
		assert.Equal(t, "/avm/value", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, avmBody)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", 0, logger.NewWithWriter("test", io.Discard))
	v, err := c.Value(context.Background(), "12 Oak St, Austin, TX 78701", nil)
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "12 Oak St, Austin, TX 78701", gotAddress)
	assert.Equal(t, "10", gotCount)

	assert.Equal(t, 310000.0, v.Price)
	assert.Equal(t, "0.2", v.Cost.String())
	require.Len(t, v.Comparables, 2)

	first := v.Comparables[0]
	assert.Equal(t, "rentcast", first.Source)
	require.NotNil(t, first.PricePerSqft)
	assert.Equal(t, 200.0, *first.PricePerSqft)
	assert.Equal(t, 2026, first.SaleDate.Year())
	assert.Equal(t, 0.4, *first.DistanceMiles)

	second := v.Comparables[1]
	assert.Nil(t, second.PricePerSqft)
	assert.Nil(t, second.DistanceMiles)
	assert.Equal(t, 2, int(second.SaleDate.Month()))
}

func TestValueStatusErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:        ErrNotFound,
		http.StatusUnauthorized:    ErrUnauthorized,
		http.StatusTooManyRequests: ErrRateLimited,
	}
	for status, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		c := New(srv.URL, "k", 0, logger.NewWithWriter("test", io.Discard))
		_, err := c.Value(context.Background(), "1 Main St", nil)
		assert.ErrorIs(t, err, want, "status %d", status)
		srv.Close()
	}
}

func TestValueHonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, avmBody)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.URL, "k", 1, logger.NewWithWriter("test", io.Discard))
	_, err := c.Value(ctx, "1 Main St", nil)
	assert.Error(t, err)
}
