package services

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sort"
	"strings"

	"github.com/codyseavey/ir-tracker/internal/metrics"
	"github.com/codyseavey/ir-tracker/internal/models"
)

// Listings above this price (minor units) qualify as a rarity match even without
// a marker in the name or description.
const rarityPriceThresholdCents = 1000

var (
	rarityMarkers = []string{
		"special illustration rare",
		"illustration rare",
		"special art",
		"alt art",
		"sir",
		"ir",
	}
	acceptedConditions = map[string]bool{
		"near mint":      true,
		"nm":             true,
		"mint":           true,
		"mint/near mint": true,
	}
)

// MarketplaceService matches local cards against marketplace listings
type MarketplaceService struct {
	source     ListingSource
	expansions ExpansionMap
}

func NewMarketplaceService(source ListingSource, expansions ExpansionMap) *MarketplaceService {
	return &MarketplaceService{
		source:     source,
		expansions: expansions,
	}
}

// MatchListings returns every acceptable listing for card, cheapest first.
// An unmapped expansion yields no listings and no error.
func (s *MarketplaceService) MatchListings(ctx context.Context, card models.Card) ([]models.Listing, error) {
	expansionID, ok := s.expansions.Lookup(card.Expansion)
	if !ok {
		metrics.MarketplaceLookupsTotal.WithLabelValues("unmapped").Inc()
		return nil, nil
	}

	listings, err := s.source.GetExpansionProducts(ctx, expansionID)
	if err != nil {
		metrics.MarketplaceLookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch listings for %s: %w", card.Expansion, err)
	}

	matched := FilterListings(card, listings)
	metrics.MarketplaceMatches.Observe(float64(len(matched)))
	return matched, nil
}

// FindBestPrice returns the cheapest acceptable listing, or nil when none qualifies
func (s *MarketplaceService) FindBestPrice(ctx context.Context, card models.Card) (*models.Listing, error) {
	matched, err := s.MatchListings(ctx, card)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		metrics.MarketplaceLookupsTotal.WithLabelValues("none").Inc()
		return nil, nil
	}

	metrics.MarketplaceLookupsTotal.WithLabelValues("found").Inc()
	best := matched[0]
	log.Printf("Marketplace: best price for %s (%s) is %d %s (listing %d)",
		card.Name, card.Expansion, best.PriceCents, best.Currency, best.ID)
	return &best, nil
}

// FilterListings applies name matching, the rarity heuristic, condition and hub
// availability, then sorts ascending by price.
func FilterListings(card models.Card, listings []models.Listing) []models.Listing {
	cardKey := NormalizeCardName(card.Name)
	restricted := card.Type.IsValid()

	var out []models.Listing
	for _, l := range listings {
		if !namesMatch(cardKey, NormalizeCardName(l.Name)) {
			continue
		}
		// Either a marker or a high price qualifies
		if restricted && !hasRarityMarker(l) && l.PriceCents <= rarityPriceThresholdCents {
			continue
		}
		if !isAcceptedCondition(l.Condition) || !l.HubAvailable {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PriceCents < out[j].PriceCents
	})
	return out
}

func hasRarityMarker(l models.Listing) bool {
	text := strings.ToLower(l.Name + " " + l.Description)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	for _, marker := range rarityMarkers {
		// Short markers must stand alone as words
		if len(marker) <= 3 {
			if slices.Contains(words, marker) {
				return true
			}
			continue
		}
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func isAcceptedCondition(condition string) bool {
	return acceptedConditions[strings.ToLower(strings.TrimSpace(condition))]
}
