package agent

import (
	"fmt"
	"math"
)

// CostBreakdown itemizes a trip total.
type CostBreakdown struct {
	Flights       float64 `json:"flights"`
	Accommodation float64 `json:"accommodation"`
	DailyLiving   float64 `json:"daily_living"`
	Total         float64 `json:"total"`
}

// round2 rounds half away from zero to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalculateTripCost computes the total trip price and its breakdown:
// flights = flight_cost x people, accommodation = hotel_price x days,
// daily living = daily_living_cost x days x people.
//
// Costs must be non-negative and days/people positive; violations are a
// caller contract error, never clamped.
func CalculateTripCost(flightCost, dailyLivingCost, hotelPrice float64, days, people int) (CostBreakdown, error) {
	if flightCost < 0 || dailyLivingCost < 0 || hotelPrice < 0 {
		return CostBreakdown{}, fmt.Errorf("cost inputs must be non-negative")
	}
	if days <= 0 || people <= 0 {
		return CostBreakdown{}, fmt.Errorf("days and people must be positive, got days=%d people=%d", days, people)
	}

	flights := flightCost * float64(people)
	accommodation := hotelPrice * float64(days)
	living := dailyLivingCost * float64(days) * float64(people)

	return CostBreakdown{
		Flights:       round2(flights),
		Accommodation: round2(accommodation),
		DailyLiving:   round2(living),
		Total:         round2(flights + accommodation + living),
	}, nil
}
