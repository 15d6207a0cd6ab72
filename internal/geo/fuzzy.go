package geo

import (
	"sort"
	"strings"
)

const (
	maxSuggestionDistance = 3
	maxSuggestions        = 4
)

// Levenshtein is the classic edit distance with unit costs, over runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// SuggestCities returns up to four distinct known cities within edit
// distance 3 of query, closest first and then alphabetically.
func SuggestCities(query string, cities []string) []string {
	q := strings.ToLower(strings.TrimSpace(query))

	type match struct {
		city string
		dist int
	}

	seen := make(map[string]struct{})
	var matches []match
	for _, city := range cities {
		key := strings.ToLower(city)
		if _, dup := seen[key]; dup || city == "" {
			continue
		}
		seen[key] = struct{}{}

		if d := Levenshtein(q, key); d <= maxSuggestionDistance {
			matches = append(matches, match{city: city, dist: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].city < matches[j].city
	})

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.city
	}
	return out
}
