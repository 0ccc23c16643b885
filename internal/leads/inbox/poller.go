package inbox

import (
	"context"
	"time"

	"dealflow_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultPollInterval = 30 * time.Second

// Poller periodically copies unread counts from the messaging service into
// the cache.
type Poller struct {
	counter  MessageCounter
	cache    *Cache
	interval time.Duration
	log      *logger.Logger

	// tenants seen on the previous poll, so a tenant whose last unread
	// message was read gets its hash cleared.
	seen map[uuid.UUID]struct{}
}

func NewPoller(counter MessageCounter, cache *Cache, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		counter:  counter,
		cache:    cache,
		interval: interval,
		log:      log,
		seen:     make(map[uuid.UUID]struct{}),
	}
}

// CacheTTL is how long counts survive without a refresh.
func CacheTTL(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return 3 * interval
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("unread poller started", "interval", p.interval)
	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("unread poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
		p.log.Warn("unread poll failed", "error", err)
	}
}

// PollOnce fetches and caches one snapshot.
func (p *Poller) PollOnce(ctx context.Context) error {
	items, err := p.counter.FetchUnread(ctx)
	if err != nil {
		return err
	}

	byTenant := make(map[uuid.UUID]map[uuid.UUID]int)
	for tenantID := range p.seen {
		byTenant[tenantID] = map[uuid.UUID]int{}
	}
	for _, item := range items {
		if item.Unread <= 0 || item.TenantID == uuid.Nil || item.LeadID == uuid.Nil {
			continue
		}
		if byTenant[item.TenantID] == nil {
			byTenant[item.TenantID] = make(map[uuid.UUID]int)
		}
		byTenant[item.TenantID][item.LeadID] = item.Unread
	}

	if err := p.cache.Replace(ctx, byTenant); err != nil {
		return err
	}

	p.seen = make(map[uuid.UUID]struct{}, len(byTenant))
	for tenantID, leads := range byTenant {
		if len(leads) > 0 {
			p.seen[tenantID] = struct{}{}
		}
	}
	return nil
}
