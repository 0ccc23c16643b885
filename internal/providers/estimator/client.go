// Package estimator provides the HTTP client for the AI estimate gateway.
// The gateway owns model invocation; this client only exchanges finished
// estimates together with the raw prompt and response kept for audit.
package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dealflow_backend/platform/logger"

	"github.com/shopspring/decimal"
)

const defaultTimeout = 30 * time.Second

// Kinds the gateway can estimate.
const (
	KindARV          = "arv"
	KindRehab        = "rehab"
	KindRent         = "rent"
	KindNeighborhood = "neighborhood"
	KindSummary      = "summary"
)

var (
	ErrNoEstimate   = errors.New("estimator returned no estimate")
	ErrUnauthorized = errors.New("estimator rejected credentials")
)

// Subject describes the property to estimate.
type Subject struct {
	LeadID        string   `json:"leadId"`
	Address       string   `json:"address"`
	ListingPrice  float64  `json:"listingPrice"`
	Units         int      `json:"units"`
	SquareFootage *int     `json:"squareFootage,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}

// Estimate is one finished estimate. Value is nil for text-only kinds.
type Estimate struct {
	Kind            string
	Value           *float64
	ConfidencePct   *float64
	ConfidenceLevel string
	Text            string
	Prompt          string
	Response        string
	Cost            decimal.Decimal
}

// Client is the HTTP client for the estimate gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// New creates a new estimator client.
func New(baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		log:        log,
	}
}

// Estimate requests one kind of estimate for subject.
func (c *Client) Estimate(ctx context.Context, kind string, subject Subject) (Estimate, error) {
	body, err := json.Marshal(subject)
	if err != nil {
		return Estimate{}, fmt.Errorf("encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/estimates/%s", c.baseURL, url.PathEscape(kind))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return Estimate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("estimator request failed", "error", err, "kind", kind)
		return Estimate{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// decode below
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log.Error("estimator unauthorized", "status", resp.StatusCode)
		return Estimate{}, ErrUnauthorized
	case http.StatusNotFound, http.StatusNoContent:
		return Estimate{}, ErrNoEstimate
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("estimator upstream error", "status", resp.StatusCode, "kind", kind)
		return Estimate{}, fmt.Errorf("upstream error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var api apiEstimate
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		c.log.Error("estimator decode failed", "error", err)
		return Estimate{}, fmt.Errorf("decode response: %w", err)
	}
	return api.toEstimate(kind), nil
}

// apiEstimate is the raw gateway response.
type apiEstimate struct {
	Value           *float64 `json:"value"`
	ConfidencePct   *float64 `json:"confidence"`
	ConfidenceLevel string   `json:"confidenceLevel"`
	Text            string   `json:"text"`
	Prompt          string   `json:"prompt"`
	Response        string   `json:"rawResponse"`
	CostUSD         string   `json:"costUsd"`
}

func (a apiEstimate) toEstimate(kind string) Estimate {
	cost, err := decimal.NewFromString(a.CostUSD)
	if err != nil {
		cost = decimal.Zero
	}
	return Estimate{
		Kind:            kind,
		Value:           a.Value,
		ConfidencePct:   a.ConfidencePct,
		ConfidenceLevel: strings.ToLower(strings.TrimSpace(a.ConfidenceLevel)),
		Text:            a.Text,
		Prompt:          a.Prompt,
		Response:        a.Response,
		Cost:            cost,
	}
}
