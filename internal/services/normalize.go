package services

import (
	"regexp"
	"strings"
)

// The order of these patterns matters: multi-word suffixes are removed before
// the short variant tokens so "special illustration rare" is not left as "special".
var (
	nameSuffixPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(?\bspecial illustration rare\b\)?\s*$`),
		regexp.MustCompile(`\s*\(?\billustration rare\b\)?\s*$`),
		regexp.MustCompile(`\s*\(?\btrainer gallery\b\)?\s*$`),
		regexp.MustCompile(`\s*\(?\b(alt|special|full) art\b\)?\s*$`),
		regexp.MustCompile(`[\s-]*\b(vmax|vstar|ex|gx|v)\s*$`),
	}
	pokemonWordPattern = regexp.MustCompile(`\bpokemon\b`)
	nonAlphanumeric    = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeCardName reduces a card name to a comparison key: lowercase, with trailing
// rarity/variant tokens and the word "pokemon" removed, and only [a-z0-9] kept.
// "Pikachu VMAX" and "pikachu" normalize to the same key.
func NormalizeCardName(name string) string {
	s := normalizeOnce(name)
	// Dropping punctuation can expose a bare token ("V!" -> "v"); repeat until stable
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "é", "e")

	// Suffixes can stack ("Charizard ex Special Illustration Rare"); strip until stable
	for {
		before := s
		for _, re := range nameSuffixPatterns {
			s = re.ReplaceAllString(s, "")
		}
		if s == before {
			break
		}
	}

	s = pokemonWordPattern.ReplaceAllString(s, "")
	return nonAlphanumeric.ReplaceAllString(s, "")
}

// namesMatch reports whether either normalized name contains the other.
// Empty keys never match.
func namesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
