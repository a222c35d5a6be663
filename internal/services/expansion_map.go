package services

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultMarketplaceExpansions maps catalog expansion slugs to CardTrader expansion ids
var defaultMarketplaceExpansions = map[string]int{
	// Scarlet & Violet era
	"sv1":      3212, // Scarlet & Violet
	"sv2":      3285, // Paldea Evolved
	"sv3":      3372, // Obsidian Flames
	"sv3pt5":   3410, // 151
	"sv4":      3445, // Paradox Rift
	"sv4pt5":   3501, // Paldean Fates
	"sv5":      3532, // Temporal Forces
	"sv6":      3587, // Twilight Masquerade
	"sv6pt5":   3629, // Shrouded Fable
	"sv7":      3640, // Stellar Crown
	"sv8":      3693, // Surging Sparks
	"sv8pt5":   3750, // Prismatic Evolutions
	"sv9":      3778, // Journey Together
	"sv10":     3829, // Destined Rivals
	"zsv10pt5": 3880, // Black Bolt
	"rsv10pt5": 3881, // White Flare
}

// ExpansionMap resolves a catalog expansion slug to a marketplace expansion id
type ExpansionMap map[string]int

// NewExpansionMap returns the built-in table with overrides applied.
// Overrides use the form "sv1=3212,sv2=3285".
func NewExpansionMap(overrides string) (ExpansionMap, error) {
	m := make(ExpansionMap, len(defaultMarketplaceExpansions))
	for k, v := range defaultMarketplaceExpansions {
		m[k] = v
	}

	for _, pair := range strings.Split(overrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		slug, idStr, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid expansion mapping %q", pair)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid marketplace id in %q", pair)
		}
		m[ExpansionSlug(slug)] = id
	}
	return m, nil
}

// Lookup returns the marketplace id for slug; ok is false for unmapped expansions
func (m ExpansionMap) Lookup(slug string) (int, bool) {
	id, ok := m[ExpansionSlug(slug)]
	return id, ok
}
