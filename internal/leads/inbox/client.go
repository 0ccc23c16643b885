// Package inbox keeps an advisory cache of unread message counts per lead.
// The counts come from the messaging service and only decorate queue items.
package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dealflow_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// UnreadCount is one lead's unread message count.
type UnreadCount struct {
	TenantID uuid.UUID `json:"tenantId"`
	LeadID   uuid.UUID `json:"leadId"`
	Unread   int       `json:"unread"`
}

// MessageCounter fetches unread counts from the messaging service.
type MessageCounter interface {
	FetchUnread(ctx context.Context) ([]UnreadCount, error)
}

// HTTPCounter is the HTTP client for the messaging service's unread endpoint.
type HTTPCounter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

func NewHTTPCounter(baseURL, apiKey string, log *logger.Logger) *HTTPCounter {
	return &HTTPCounter{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		log:        log,
	}
}

type unreadResponse struct {
	Items []UnreadCount `json:"items"`
}

// FetchUnread returns every lead with at least one unread message.
func (c *HTTPCounter) FetchUnread(ctx context.Context) ([]UnreadCount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/conversations/unread", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ProviderCall("messaging", "", time.Since(start).Milliseconds(), err)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("upstream error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		c.log.ProviderCall("messaging", "", time.Since(start).Milliseconds(), err)
		return nil, err
	}

	var body unreadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	c.log.ProviderCall("messaging", "", time.Since(start).Milliseconds(), nil)
	return body.Items, nil
}
