// Package rentcast provides the HTTP client for the RentCast valuation API,
// the verified market-value and comparable-sales source of full evaluations.
package rentcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dealflow_backend/internal/valuation"
	"dealflow_backend/platform/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.rentcast.io/v1"
	defaultTimeout   = 15 * time.Second
	defaultCompCount = 10
	sourceName       = "rentcast"
)

// callCost is what one AVM request is billed at on the metered plan.
var callCost = decimal.RequireFromString("0.20")

var (
	ErrNotFound     = errors.New("rentcast has no valuation for this address")
	ErrUnauthorized = errors.New("rentcast rejected api key")
	ErrRateLimited  = errors.New("rentcast rate limit exceeded")
)

// Valuation is the verified market value with its comparables.
type Valuation struct {
	Price       float64
	RangeLow    float64
	RangeHigh   float64
	Latitude    *float64
	Longitude   *float64
	Comparables []valuation.ComparableSale
	Cost        decimal.Decimal
}

// Client is the HTTP client for RentCast. Calls are throttled client side
// so bursts of full evaluations stay under the plan's request rate.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	log        *logger.Logger
}

// New creates a RentCast client. A non-positive ratePerSecond disables throttling.
func New(baseURL, apiKey string, ratePerSecond float64, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = max(1, int(ratePerSecond))
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(limit, burst),
		log:        log,
	}
}

// Value fetches the AVM value and sale comparables for an address.
func (c *Client) Value(ctx context.Context, address string, squareFootage *int) (Valuation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Valuation{}, err
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("compCount", strconv.Itoa(defaultCompCount))
	if squareFootage != nil {
		params.Set("squareFootage", strconv.Itoa(*squareFootage))
	}
	reqURL := fmt.Sprintf("%s/avm/value?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Valuation{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("rentcast request failed", "error", err)
		return Valuation{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// decode below
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log.Error("rentcast unauthorized", "status", resp.StatusCode)
		return Valuation{}, ErrUnauthorized
	case http.StatusNotFound:
		return Valuation{}, ErrNotFound
	case http.StatusTooManyRequests:
		return Valuation{}, ErrRateLimited
	default:
		c.log.Error("rentcast upstream error", "status", resp.StatusCode)
		return Valuation{}, fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}

	var api apiValuation
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		c.log.Error("rentcast decode failed", "error", err)
		return Valuation{}, fmt.Errorf("decode response: %w", err)
	}
	return api.toValuation(), nil
}

type apiValuation struct {
	Price          float64         `json:"price"`
	PriceRangeLow  float64         `json:"priceRangeLow"`
	PriceRangeHigh float64         `json:"priceRangeHigh"`
	Latitude       *float64        `json:"latitude"`
	Longitude      *float64        `json:"longitude"`
	Comparables    []apiComparable `json:"comparables"`
}

type apiComparable struct {
	FormattedAddress string     `json:"formattedAddress"`
	Price            float64    `json:"price"`
	SquareFootage    *float64   `json:"squareFootage"`
	Distance         *float64   `json:"distance"`
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`
	RemovedDate      *time.Time `json:"removedDate"`
	LastSeenDate     *time.Time `json:"lastSeenDate"`
	ListedDate       *time.Time `json:"listedDate"`
}

func (a apiValuation) toValuation() Valuation {
	comps := make([]valuation.ComparableSale, 0, len(a.Comparables))
	for _, ac := range a.Comparables {
		comp := valuation.ComparableSale{
			Address:       ac.FormattedAddress,
			SalePrice:     ac.Price,
			DistanceMiles: ac.Distance,
			Source:        sourceName,
			Latitude:      ac.Latitude,
			Longitude:     ac.Longitude,
		}
		if ac.SquareFootage != nil && *ac.SquareFootage > 0 {
			ppsf := ac.Price / *ac.SquareFootage
			comp.PricePerSqft = &ppsf
		}
		switch {
		case ac.RemovedDate != nil:
			comp.SaleDate = *ac.RemovedDate
		case ac.LastSeenDate != nil:
			comp.SaleDate = *ac.LastSeenDate
		case ac.ListedDate != nil:
			comp.SaleDate = *ac.ListedDate
		}
		comps = append(comps, comp)
	}

	return Valuation{
		Price:       a.Price,
		RangeLow:    a.PriceRangeLow,
		RangeHigh:   a.PriceRangeHigh,
		Latitude:    a.Latitude,
		Longitude:   a.Longitude,
		Comparables: comps,
		Cost:        callCost,
	}
}
