package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"vitamart/internal/models"
)

// SortBy selects the ordering of a filtered product view.
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortMatch     SortBy = "match"
	SortName      SortBy = "name"
)

// FilterOptions describes the derived view of a product list: optional
// category and age-bracket filters plus an ordering. The zero value filters
// nothing and sorts by relevance.
type FilterOptions struct {
	Category   string
	AgeBracket string
	SortBy     SortBy
}

var numberPattern = regexp.MustCompile(`\d+`)

// FilterAndSort derives a filtered, sorted view of products without mutating
// the input. Category matches are exact and case-insensitive. Sorting is
// stable, so equal keys keep their insertion order.
func FilterAndSort(products []models.Product, opts FilterOptions) []models.Product {
	filtered := make([]models.Product, 0, len(products))
	for _, p := range products {
		if opts.Category != "" && opts.Category != "all" &&
			!strings.EqualFold(p.Category, opts.Category) {
			continue
		}
		if opts.AgeBracket != "" && !ageRangesOverlap(opts.AgeBracket, p.AgeRange) {
			continue
		}
		filtered = append(filtered, p)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		switch opts.SortBy {
		case SortMatch:
			return filtered[i].MatchScore > filtered[j].MatchScore
		case SortName:
			return filtered[i].Name < filtered[j].Name
		default:
			return filtered[i].Relevance > filtered[j].Relevance
		}
	})
	return filtered
}

// ageRangesOverlap checks whether a selected bracket like "26-40" is
// compatible with a product's free-text age range ("18-35", "61+", "mọi lứa
// tuổi"). Both sides are parsed into numeric bounds and checked for overlap;
// text with no parseable bounds falls back to a substring comparison. An
// empty product range never filters the product out.
func ageRangesOverlap(bracket, productRange string) bool {
	if strings.TrimSpace(productRange) == "" {
		return true
	}
	bLo, bHi, bOK := parseAgeRange(bracket)
	pLo, pHi, pOK := parseAgeRange(productRange)
	if !bOK || !pOK {
		return strings.Contains(productRange, strings.TrimSpace(bracket)) ||
			strings.Contains(bracket, strings.TrimSpace(productRange))
	}
	return bLo <= pHi && pLo <= bHi
}

// parseAgeRange extracts numeric bounds from free text: "26-40" gives both,
// "61+" gives an open upper bound, a lone number is an exact age.
func parseAgeRange(s string) (lo, hi int, ok bool) {
	nums := numberPattern.FindAllString(s, 2)
	if len(nums) == 0 {
		return 0, 0, false
	}
	lo, _ = strconv.Atoi(nums[0])
	if len(nums) > 1 {
		hi, _ = strconv.Atoi(nums[1])
		if hi < lo {
			lo, hi = hi, lo
		}
		return lo, hi, true
	}
	if strings.Contains(s, "+") {
		return lo, 200, true
	}
	return lo, lo, true
}
