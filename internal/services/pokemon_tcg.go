package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codyseavey/ir-tracker/internal/models"
)

const (
	pokemonTCGBaseURL  = "https://api.pokemontcg.io/v2"
	pokemonTCGPageSize = 250
	// Guards against a misbehaving totalCount
	pokemonTCGMaxPages = 40
)

// CardCatalog is the catalog provider used by sync and stats
type CardCatalog interface {
	GetSets(ctx context.Context, series ...string) ([]models.Expansion, error)
	GetSet(ctx context.Context, id string) (*models.Expansion, error)
	GetSetCards(ctx context.Context, setID string, rarities ...string) ([]models.Card, error)
}

// PokemonTCGService is the catalog client for api.pokemontcg.io
type PokemonTCGService struct {
	baseURL  string
	apiKey   string
	upstream *upstream
	setCache *lru.Cache[string, models.Expansion]
}

func NewPokemonTCGService(baseURL, apiKey string, opts UpstreamOptions) *PokemonTCGService {
	if baseURL == "" {
		baseURL = pokemonTCGBaseURL
	}
	setCache, _ := lru.New[string, models.Expansion](256)
	return &PokemonTCGService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		upstream: newUpstream("catalog", opts),
		setCache: setCache,
	}
}

type pokemonListResponse[T any] struct {
	Data       []T `json:"data"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Count      int `json:"count"`
	TotalCount int `json:"totalCount"`
}

type pokemonCard struct {
	Set    pokemonSet    `json:"set"`
	Images pokemonImages `json:"images"`
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Number string        `json:"number"`
	Rarity string        `json:"rarity"`
}

type pokemonSet struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Series      string           `json:"series"`
	ReleaseDate string           `json:"releaseDate"`
	Total       int              `json:"total"`
	Images      pokemonSetImages `json:"images"`
}

type pokemonSetImages struct {
	Symbol string `json:"symbol"`
	Logo   string `json:"logo"`
}

type pokemonImages struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

func (s *PokemonTCGService) headers() map[string]string {
	if s.apiKey == "" {
		return nil
	}
	return map[string]string{"X-Api-Key": s.apiKey}
}

// GetSets returns expansions, optionally restricted to the given series, oldest first
func (s *PokemonTCGService) GetSets(ctx context.Context, series ...string) ([]models.Expansion, error) {
	params := url.Values{}
	params.Set("orderBy", "releaseDate")
	params.Set("pageSize", fmt.Sprint(pokemonTCGPageSize))
	if q := orQuery("series", series); q != "" {
		params.Set("q", q)
	}

	var resp pokemonListResponse[pokemonSet]
	if _, err := s.upstream.getJSON(ctx, s.baseURL+"/sets?"+params.Encode(), s.headers(), &resp); err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}

	expansions := make([]models.Expansion, 0, len(resp.Data))
	for _, ps := range resp.Data {
		exp := convertToExpansion(ps)
		s.setCache.Add(exp.ID, exp)
		expansions = append(expansions, exp)
	}
	return expansions, nil
}

// GetSet returns one expansion by catalog id, or nil when the catalog does not know it
func (s *PokemonTCGService) GetSet(ctx context.Context, id string) (*models.Expansion, error) {
	if exp, ok := s.setCache.Get(id); ok {
		return &exp, nil
	}

	var resp struct {
		Data pokemonSet `json:"data"`
	}
	found, err := s.upstream.getJSON(ctx, fmt.Sprintf("%s/sets/%s", s.baseURL, url.PathEscape(id)), s.headers(), &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get set %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}

	exp := convertToExpansion(resp.Data)
	s.setCache.Add(id, exp)
	return &exp, nil
}

// GetSetCards returns every card of a set with one of the given rarities, following pagination.
// Cards come back ordered by collector number.
func (s *PokemonTCGService) GetSetCards(ctx context.Context, setID string, rarities ...string) ([]models.Card, error) {
	q := fmt.Sprintf("set.id:%q", setID)
	if rq := orQuery("rarity", rarities); rq != "" {
		q += " " + rq
	}

	var cards []models.Card
	for page := 1; page <= pokemonTCGMaxPages; page++ {
		params := url.Values{}
		params.Set("q", q)
		params.Set("page", fmt.Sprint(page))
		params.Set("pageSize", fmt.Sprint(pokemonTCGPageSize))
		params.Set("orderBy", "number")

		var resp pokemonListResponse[pokemonCard]
		if _, err := s.upstream.getJSON(ctx, s.baseURL+"/cards?"+params.Encode(), s.headers(), &resp); err != nil {
			return nil, fmt.Errorf("failed to get cards for set %s: %w", setID, err)
		}

		for _, pc := range resp.Data {
			cards = append(cards, convertToCard(pc))
		}

		if len(resp.Data) == 0 || len(cards) >= resp.TotalCount {
			break
		}
	}

	sortCardsByNumber(cards)
	return cards, nil
}

// orQuery builds a Lucene-style (field:"a" OR field:"b") clause
func orQuery(field string, values []string) string {
	var parts []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%q", field, v))
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, " OR ") + ")"
	}
}

func convertToExpansion(ps pokemonSet) models.Expansion {
	return models.Expansion{
		ID:          ps.ID,
		Name:        ps.Name,
		Slug:        ExpansionSlug(ps.ID),
		Series:      ps.Series,
		Logo:        ps.Images.Logo,
		Symbol:      ps.Images.Symbol,
		ReleaseDate: ps.ReleaseDate,
		Total:       ps.Total,
	}
}

func convertToCard(pc pokemonCard) models.Card {
	return models.Card{
		ID:            pc.ID,
		Name:          pc.Name,
		ImageURL:      pc.Images.Small,
		ImageURLLarge: pc.Images.Large,
		Expansion:     ExpansionSlug(pc.Set.ID),
		Number:        pc.Number,
		Rarity:        pc.Rarity,
		Type:          models.CardTypeForRarity(pc.Rarity),
	}
}

// ExpansionSlug derives the routable slug from a catalog set id
func ExpansionSlug(setID string) string {
	return strings.ToLower(strings.TrimSpace(setID))
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*$`)

// parseSlug normalizes a slug taken from a request and rejects anything that is not
// shaped like a catalog set id, so it can go into a catalog query as-is.
func parseSlug(slug string) (string, error) {
	slug = ExpansionSlug(slug)
	if !slugPattern.MatchString(slug) {
		return "", fmt.Errorf("%w: invalid expansion slug %q", ErrInvalidInput, slug)
	}
	return slug, nil
}

// sortCardsByNumber orders by numeric collector number, falling back to string order
func sortCardsByNumber(cards []models.Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		ni, iok := parseCardNumber(cards[i].Number)
		nj, jok := parseCardNumber(cards[j].Number)
		if iok && jok && ni != nj {
			return ni < nj
		}
		if cards[i].Number != cards[j].Number {
			return cards[i].Number < cards[j].Number
		}
		return cards[i].ID < cards[j].ID
	})
}

func parseCardNumber(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
