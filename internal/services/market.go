package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/clumsystudios/rarity-tracker/internal/metrics"
)

const (
	marketDefaultTimeout = 15 * time.Second
	listingsPageSize     = 1000
)

// MarketService reads realized sales and current listings for a policy from
// the marketplace API. Requests are throttled two ways: a short-term rate
// limiter and a daily quota that resets at midnight.
type MarketService struct {
	client     *http.Client
	baseURL    string
	limiter    *rate.Limiter
	dailyLimit int

	mu             sync.Mutex
	requestsToday  int
	lastRequestDay time.Time
}

// MarketTransaction is one realized sale.
type MarketTransaction struct {
	DisplayName    string `json:"display_name"`
	AmountLovelace int64  `json:"amount_lovelace"`
}

// MarketListing is one active listing. The marketplace serializes the
// listing amount as a lovelace string.
type MarketListing struct {
	DisplayName     string `json:"display_name"`
	ListingLovelace string `json:"listing_lovelace"`
}

// PriceADA converts the listed lovelace amount to ADA.
func (l MarketListing) PriceADA() (float64, error) {
	lovelace, err := strconv.ParseInt(l.ListingLovelace, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing listing amount %q: %w", l.ListingLovelace, err)
	}
	return float64(lovelace) / 1_000_000, nil
}

type transactionsResponse struct {
	Total        int                 `json:"tot"`
	Transactions []MarketTransaction `json:"transactions"`
}

type listingsResponse struct {
	Tokens []MarketListing `json:"tokens"`
}

func NewMarketService(baseURL string, dailyLimit int) *MarketService {
	if dailyLimit <= 0 {
		dailyLimit = 500
	}
	return &MarketService{
		client: &http.Client{
			Timeout: marketDefaultTimeout,
		},
		baseURL: baseURL,
		// 2 req/s sustained with a small burst keeps us under the
		// marketplace's per-IP ceiling.
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
		dailyLimit: dailyLimit,
	}
}

// checkQuota consumes one request from today's quota, resetting the counter
// on day rollover. Returns false when the quota is exhausted.
func (s *MarketService) checkQuota() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if s.lastRequestDay.Before(today) {
		s.requestsToday = 0
		s.lastRequestDay = today
	}

	if s.requestsToday >= s.dailyLimit {
		return false
	}
	s.requestsToday++
	metrics.MarketQuotaRemaining.Set(float64(s.dailyLimit - s.requestsToday))
	return true
}

// GetRequestsRemaining returns the number of requests remaining today.
func (s *MarketService) GetRequestsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if s.lastRequestDay.Before(today) {
		return s.dailyLimit
	}
	remaining := s.dailyLimit - s.requestsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TransactionCount returns the marketplace's total transaction count for a
// policy, the cursor the sync worker diffs against its stored tx count.
func (s *MarketService) TransactionCount(ctx context.Context, policyID string) (int, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("count", "1")

	var resp transactionsResponse
	if err := s.get(ctx, fmt.Sprintf("/collection/%s/transactions", policyID), params, &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}

// Transactions fetches the most recent count sales for a policy.
func (s *MarketService) Transactions(ctx context.Context, policyID string, count int) ([]MarketTransaction, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("count", strconv.Itoa(count))

	var resp transactionsResponse
	if err := s.get(ctx, fmt.Sprintf("/collection/%s/transactions", policyID), params, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// Listings fetches the currently listed tokens for a policy.
func (s *MarketService) Listings(ctx context.Context, policyID string) ([]MarketListing, error) {
	params := url.Values{}
	params.Set("policyIds", fmt.Sprintf("[%q]", policyID))
	params.Set("saleType", "default")
	params.Set("sortBy", "recently-listed")
	params.Set("verified", "default")
	params.Set("size", strconv.Itoa(listingsPageSize))

	var resp listingsResponse
	if err := s.get(ctx, "/search/tokens", params, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

func (s *MarketService) get(ctx context.Context, path string, params url.Values, out any) error {
	if !s.checkQuota() {
		return fmt.Errorf("marketplace daily request limit exceeded")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s%s?%s", s.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	metrics.MarketRequestsTotal.Inc()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("marketplace request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("marketplace returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding marketplace response: %w", err)
	}
	return nil
}
