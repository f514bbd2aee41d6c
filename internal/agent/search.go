package agent

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/tripwise/tripwise-backend/internal/repository"
)

// DefaultMinStars applies when the model omits a star-rating constraint.
const DefaultMinStars = 3

// seasonSynonyms maps a canonical season name to the tokens matched against
// the free-text best_seasons field, Arabic spellings included.
var seasonSynonyms = map[string][]string{
	"summer": {"summer", "صيف"},
	"winter": {"winter", "شتاء"},
	"spring": {"spring", "ربيع"},
	"autumn": {"autumn", "fall", "خريف"},
}

// SeasonTokens expands a season name into its synonym list. Unknown seasons
// match themselves; "" and "all" mean unconstrained.
func SeasonTokens(season string) []string {
	if season == "" || strings.EqualFold(season, "all") {
		return nil
	}
	if tokens, ok := seasonSynonyms[strings.ToLower(season)]; ok {
		return tokens
	}
	return []string{season}
}

// SearchParams are the optional constraints for a catalog search. Nil fields
// are unconstrained rather than defaulted to exclude.
type SearchParams struct {
	Budget    *float64
	Days      *int
	People    *int
	IsCoastal *bool
	MinStars  int
	Season    string
	IsSeaView *bool
}

// SearchResult is one hotel-at-destination combination. Cost fields are only
// populated when budget, days and people were all supplied.
type SearchResult struct {
	DestinationID   int64          `json:"destination_id"`
	DestinationName string         `json:"destination_name"`
	Country         string         `json:"country"`
	IsCoastal       bool           `json:"is_coastal"`
	Description     string         `json:"description"`
	HotelID         int64          `json:"hotel_id"`
	HotelName       string         `json:"hotel_name"`
	Stars           int            `json:"stars"`
	IsSeaView       bool           `json:"is_sea_view"`
	PricePerNight   float64        `json:"price_per_night"`
	TotalCost       *float64       `json:"total_cost,omitempty"`
	CostBreakdown   *CostBreakdown `json:"cost_breakdown,omitempty"`
}

// SearchDestinationsAndHotels returns every combination satisfying the
// supplied constraints. When budget, days and people are all present each
// combination carries a computed total, anything over budget is dropped and
// results come back sorted ascending by total cost; otherwise catalog order
// is preserved and cost fields stay empty.
func SearchDestinationsAndHotels(ctx context.Context, store repository.CatalogStore, p SearchParams) ([]SearchResult, error) {
	minStars := p.MinStars
	if minStars == 0 {
		minStars = DefaultMinStars
	}

	combos, err := store.QueryCombinations(ctx, repository.CatalogFilters{
		IsCoastal:    p.IsCoastal,
		MinStars:     minStars,
		IsSeaView:    p.IsSeaView,
		SeasonTokens: SeasonTokens(p.Season),
	})
	if err != nil {
		return nil, err
	}

	priced := p.Budget != nil && p.Days != nil && p.People != nil

	results := make([]SearchResult, 0, len(combos))
	for _, combo := range combos {
		result := SearchResult{
			DestinationID:   combo.Destination.ID,
			DestinationName: combo.Destination.Name,
			Country:         combo.Destination.Country,
			IsCoastal:       combo.Destination.IsCoastal,
			Description:     combo.Destination.Description,
			HotelID:         combo.Hotel.ID,
			HotelName:       combo.Hotel.Name,
			Stars:           combo.Hotel.Stars,
			IsSeaView:       combo.Hotel.IsSeaView,
			PricePerNight:   combo.Hotel.PricePerNight,
		}

		if priced {
			breakdown, err := CalculateTripCost(
				combo.Destination.FlightCost,
				combo.Destination.DailyLivingCost,
				combo.Hotel.PricePerNight,
				*p.Days,
				*p.People,
			)
			if err != nil {
				return nil, err
			}
			if breakdown.Total > *p.Budget {
				continue
			}
			total := breakdown.Total
			bd := breakdown
			result.TotalCost = &total
			result.CostBreakdown = &bd
		}

		results = append(results, result)
	}

	if priced {
		sort.SliceStable(results, func(i, j int) bool {
			return *results[i].TotalCost < *results[j].TotalCost
		})
	}

	return results, nil
}

// MatchesSeason reports whether a free-text best_seasons value contains any
// of the expanded season tokens, case-insensitively. An empty token list
// matches everything.
func MatchesSeason(bestSeasons string, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	haystack := strings.ToLower(bestSeasons)
	return lo.SomeBy(tokens, func(tok string) bool {
		return strings.Contains(haystack, strings.ToLower(tok))
	})
}
