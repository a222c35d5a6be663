package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codyseavey/ir-tracker/internal/metrics"
	"github.com/codyseavey/ir-tracker/internal/models"
)

const cardTraderBaseURL = "https://api.cardtrader.com/api/v2"

// ListingSource returns every marketplace listing of one marketplace expansion
type ListingSource interface {
	GetExpansionProducts(ctx context.Context, expansionID int) ([]models.Listing, error)
}

// CardTraderService is the marketplace client for CardTrader
type CardTraderService struct {
	baseURL    string
	token      string
	dailyLimit int
	upstream   *upstream

	// Daily quota tracking
	mu             sync.Mutex
	requestsToday  int
	lastRequestDay time.Time
}

// cardTraderProduct mirrors the product objects of GET /marketplace/products
type cardTraderProduct struct {
	ID          int64  `json:"id"`
	BlueprintID int64  `json:"blueprint_id"`
	NameEn      string `json:"name_en"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
	Price       struct {
		Cents    int64  `json:"cents"`
		Currency string `json:"currency"`
	} `json:"price"`
	PropertiesHash map[string]any `json:"properties_hash"`
	Expansion      struct {
		ID     int    `json:"id"`
		Code   string `json:"code"`
		NameEn string `json:"name_en"`
	} `json:"expansion"`
	User struct {
		ID            int64  `json:"id"`
		Username      string `json:"username"`
		CanSellViaHub bool   `json:"can_sell_via_hub"`
	} `json:"user"`
}

// QuotaStatus reports marketplace request usage for the current day
type QuotaStatus struct {
	DailyLimit int       `json:"dailyLimit"`
	Remaining  int       `json:"remaining"`
	ResetsAt   time.Time `json:"resetsAt"`
	Configured bool      `json:"configured"`
}

func NewCardTraderService(baseURL, token string, dailyLimit int, opts UpstreamOptions) *CardTraderService {
	if baseURL == "" {
		baseURL = cardTraderBaseURL
	}
	if dailyLimit <= 0 {
		dailyLimit = 5000
	}
	s := &CardTraderService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		dailyLimit: dailyLimit,
		upstream:   newUpstream("marketplace", opts),
	}
	// Retries spend quota too
	s.upstream.beforeAttempt = s.spendQuota
	return s
}

// IsConfigured reports whether an API token is set
func (s *CardTraderService) IsConfigured() bool {
	return s.token != ""
}

// checkDailyLimit consumes one request from today's quota.
// Returns false if the quota is exhausted.
func (s *CardTraderService) checkDailyLimit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := startOfDay(time.Now())
	if s.lastRequestDay.Before(today) {
		s.requestsToday = 0
		s.lastRequestDay = today
	}

	if s.requestsToday >= s.dailyLimit {
		return false
	}

	s.requestsToday++
	metrics.MarketplaceQuotaRemaining.Set(float64(s.dailyLimit - s.requestsToday))
	return true
}

func (s *CardTraderService) spendQuota() error {
	if !s.checkDailyLimit() {
		return fmt.Errorf("%w: marketplace daily request limit exceeded", ErrUpstream)
	}
	return nil
}

// GetRequestsRemaining returns the number of requests remaining today
func (s *CardTraderService) GetRequestsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRequestDay.Before(startOfDay(time.Now())) {
		return s.dailyLimit
	}
	return max(s.dailyLimit-s.requestsToday, 0)
}

// Status returns the current quota status
func (s *CardTraderService) Status() QuotaStatus {
	return QuotaStatus{
		DailyLimit: s.dailyLimit,
		Remaining:  s.GetRequestsRemaining(),
		ResetsAt:   startOfDay(time.Now()).Add(24 * time.Hour),
		Configured: s.IsConfigured(),
	}
}

// GetExpansionProducts fetches every listing of a marketplace expansion. Results are not cached.
func (s *CardTraderService) GetExpansionProducts(ctx context.Context, expansionID int) ([]models.Listing, error) {
	reqURL := fmt.Sprintf("%s/marketplace/products?expansion_id=%d", s.baseURL, expansionID)
	headers := map[string]string{}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}

	// Keyed by blueprint id
	var resp map[string][]cardTraderProduct
	found, err := s.upstream.getJSON(ctx, reqURL, headers, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch marketplace products for expansion %d: %w", expansionID, err)
	}
	if !found {
		return nil, nil
	}

	// Flatten in a stable order so ties in price are deterministic
	keys := make([]string, 0, len(resp))
	for k := range resp {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var listings []models.Listing
	for _, k := range keys {
		for _, p := range resp[k] {
			listings = append(listings, convertToListing(p))
		}
	}
	return listings, nil
}

func convertToListing(p cardTraderProduct) models.Listing {
	condition, _ := p.PropertiesHash["condition"].(string)
	return models.Listing{
		ID:            p.ID,
		BlueprintID:   p.BlueprintID,
		Name:          p.NameEn,
		Description:   p.Description,
		PriceCents:    p.Price.Cents,
		Currency:      p.Price.Currency,
		Condition:     condition,
		HubAvailable:  p.User.CanSellViaHub,
		ExpansionCode: p.Expansion.Code,
		ExpansionName: p.Expansion.NameEn,
		Quantity:      p.Quantity,
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
