package inbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dealflow_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCounter struct {
	items []UnreadCount
}

func (s *staticCounter) FetchUnread(context.Context) ([]UnreadCount, error) {
	return s.items, nil
}

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, CacheTTL(time.Minute), logger.NewWithWriter("test", io.Discard)), mr
}

func TestPollerCachesCountsPerTenant(t *testing.T) {
	cache, mr := newCache(t)
	tenant, other := uuid.New(), uuid.New()
	leadA, leadB, leadC := uuid.New(), uuid.New(), uuid.New()

	counter := &staticCounter{items: []UnreadCount{
		{TenantID: tenant, LeadID: leadA, Unread: 3},
		{TenantID: other, LeadID: leadB, Unread: 1},
		{TenantID: tenant, LeadID: leadC, Unread: 0},
	}}
	p := NewPoller(counter, cache, time.Minute, logger.NewWithWriter("test", io.Discard))
	require.NoError(t, p.PollOnce(context.Background()))

	got := cache.UnreadCounts(context.Background(), tenant, []uuid.UUID{leadA, leadB, leadC})
	assert.Equal(t, map[uuid.UUID]int{leadA: 3}, got)

	ttl := mr.TTL(tenantKey(tenant))
	assert.Equal(t, 3*time.Minute, ttl)
}

func TestPollerClearsTenantWhenAllRead(t *testing.T) {
	cache, _ := newCache(t)
	tenant := uuid.New()
	lead := uuid.New()
	counter := &staticCounter{items: []UnreadCount{{TenantID: tenant, LeadID: lead, Unread: 2}}}
	p := NewPoller(counter, cache, time.Minute, logger.NewWithWriter("test", io.Discard))

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, 2, cache.UnreadCounts(context.Background(), tenant, []uuid.UUID{lead})[lead])

	counter.items = nil
	require.NoError(t, p.PollOnce(context.Background()))
	assert.Empty(t, cache.UnreadCounts(context.Background(), tenant, []uuid.UUID{lead}))
}

func TestCacheExpiresAndFailsOpen(t *testing.T) {
	cache, mr := newCache(t)
	tenant, lead := uuid.New(), uuid.New()
	require.NoError(t, cache.Replace(context.Background(), map[uuid.UUID]map[uuid.UUID]int{tenant: {lead: 4}}))

	mr.FastForward(4 * time.Minute)
	assert.Empty(t, cache.UnreadCounts(context.Background(), tenant, []uuid.UUID{lead}))

	require.NoError(t, mr.Set(tenantKey(tenant), "not a hash"))
	assert.Empty(t, cache.UnreadCounts(context.Background(), tenant, []uuid.UUID{lead}))
}

func TestHTTPCounter(t *testing.T) {
	tenant, lead := uuid.New(), uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/conversations/unread", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(unreadResponse{Items: []UnreadCount{{TenantID: tenant, LeadID: lead, Unread: 5}}})
	}))
	defer srv.Close()

	c := NewHTTPCounter(srv.URL+"/", "secret", logger.NewWithWriter("test", io.Discard))
	items, err := c.FetchUnread(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Unread)
	assert.Equal(t, lead, items[0].LeadID)
}

func TestHTTPCounterUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPCounter(srv.URL, "", logger.NewWithWriter("test", io.Discard))
	_, err := c.FetchUnread(context.Background())
	assert.ErrorContains(t, err, "status 502")
}
