package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tripwise/tripwise-backend/internal/repository"
)

// ToolName identifies one of the fixed set of query tools offered to the
// model. The set is closed; dispatch is an exhaustive switch.
type ToolName string

const (
	ToolSearchDestinationsAndHotels ToolName = "search_destinations_and_hotels"
	ToolCalculateTripCost           ToolName = "calculate_trip_cost_tool"
	ToolGetDestinationDetails       ToolName = "get_destination_details"
	ToolGetHotelDetails             ToolName = "get_hotel_details"
	ToolSearchEvents                ToolName = "search_events"
)

type searchToolArgs struct {
	Budget    *float64 `json:"budget"`
	Days      *int     `json:"days"`
	People    *int     `json:"people"`
	IsCoastal *bool    `json:"is_coastal"`
	MinStars  int      `json:"min_stars"`
	Season    string   `json:"season"`
	IsSeaView *bool    `json:"is_sea_view"`
}

type calculateToolArgs struct {
	FlightCost      *float64 `json:"flight_cost"`
	DailyLivingCost *float64 `json:"daily_living_cost"`
	HotelPrice      *float64 `json:"hotel_price"`
	Days            *int     `json:"days"`
	People          *int     `json:"people"`
}

type destinationDetailsArgs struct {
	DestinationID *int64 `json:"destination_id"`
}

type hotelDetailsArgs struct {
	HotelID *int64 `json:"hotel_id"`
}

type searchEventsArgs struct {
	DestinationID *int64   `json:"destination_id"`
	Season        string   `json:"season"`
	MaxPrice      *float64 `json:"max_price"`
}

// toolError is the inline error payload handed back to the model as a tool
// result. Tool failures never abort the conversation.
func toolError(format string, args ...interface{}) map[string]interface{} {
	return map[string]interface{}{"error": fmt.Sprintf(format, args...)}
}

// ExecuteToolCall runs a single model-requested tool against the catalog.
// Unknown tool names and argument schema violations come back as inline
// error payloads; only store failures surface as Go errors.
func ExecuteToolCall(ctx context.Context, store repository.CatalogStore, call ToolCall) (interface{}, error) {
	switch ToolName(call.Name) {
	case ToolSearchDestinationsAndHotels:
		var args searchToolArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return toolError("invalid arguments for %s: %v", call.Name, err), nil
		}
		return SearchDestinationsAndHotels(ctx, store, SearchParams{
			Budget:    args.Budget,
			Days:      args.Days,
			People:    args.People,
			IsCoastal: args.IsCoastal,
			MinStars:  args.MinStars,
			Season:    args.Season,
			IsSeaView: args.IsSeaView,
		})

	case ToolCalculateTripCost:
		var args calculateToolArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return toolError("invalid arguments for %s: %v", call.Name, err), nil
		}
		if args.FlightCost == nil || args.DailyLivingCost == nil || args.HotelPrice == nil || args.Days == nil || args.People == nil {
			return toolError("%s requires flight_cost, daily_living_cost, hotel_price, days and people", call.Name), nil
		}
		breakdown, err := CalculateTripCost(*args.FlightCost, *args.DailyLivingCost, *args.HotelPrice, *args.Days, *args.People)
		if err != nil {
			return toolError("%v", err), nil
		}
		return map[string]interface{}{
			"total_cost": breakdown.Total,
			"breakdown": map[string]interface{}{
				"flights":       breakdown.Flights,
				"accommodation": breakdown.Accommodation,
				"daily_living":  breakdown.DailyLiving,
			},
		}, nil

	case ToolGetDestinationDetails:
		var args destinationDetailsArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil || args.DestinationID == nil {
			return toolError("%s requires destination_id", call.Name), nil
		}
		detail, err := store.GetDestination(ctx, *args.DestinationID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return detail, nil

	case ToolGetHotelDetails:
		var args hotelDetailsArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil || args.HotelID == nil {
			return toolError("%s requires hotel_id", call.Name), nil
		}
		detail, err := store.GetHotel(ctx, *args.HotelID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return detail, nil

	case ToolSearchEvents:
		var args searchEventsArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil || args.DestinationID == nil {
			return toolError("%s requires destination_id", call.Name), nil
		}
		season := args.Season
		if season == "" {
			season = "all"
		}
		return store.QueryEvents(ctx, *args.DestinationID, season, args.MaxPrice)

	default:
		return toolError("unknown tool: %s", call.Name), nil
	}
}

// ToolDefinitions is the fixed tool catalog advertised to the model.
func ToolDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(ToolSearchDestinationsAndHotels),
				Description: "Search for destinations and hotels matching the user's trip requirements",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"budget": map[string]interface{}{
							"type":        "number",
							"description": "Total trip budget in USD",
						},
						"days": map[string]interface{}{
							"type":        "integer",
							"description": "Number of trip days",
						},
						"people": map[string]interface{}{
							"type":        "integer",
							"description": "Number of travelers",
						},
						"is_coastal": map[string]interface{}{
							"type":        "boolean",
							"description": "true for coastal destinations, false for mountain destinations",
						},
						"min_stars": map[string]interface{}{
							"type":        "integer",
							"description": "Minimum hotel star rating (1-5)",
							"default":     DefaultMinStars,
						},
						"season": map[string]interface{}{
							"type":        "string",
							"description": "Preferred travel season",
							"enum":        []string{"summer", "winter", "spring", "autumn", "all"},
						},
						"is_sea_view": map[string]interface{}{
							"type":        "boolean",
							"description": "Whether the hotel should have a sea view",
						},
					},
					"required": []string{},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(ToolCalculateTripCost),
				Description: "Calculate the total cost of a trip from its pricing inputs",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"flight_cost": map[string]interface{}{
							"type":        "number",
							"description": "Cost of one flight ticket",
						},
						"daily_living_cost": map[string]interface{}{
							"type":        "number",
							"description": "Daily living cost per person, hotel excluded",
						},
						"hotel_price": map[string]interface{}{
							"type":        "number",
							"description": "Hotel price per night",
						},
						"days": map[string]interface{}{
							"type":        "integer",
							"description": "Number of trip days",
						},
						"people": map[string]interface{}{
							"type":        "integer",
							"description": "Number of travelers",
						},
					},
					"required": []string{"flight_cost", "daily_living_cost", "hotel_price", "days", "people"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(ToolGetDestinationDetails),
				Description: "Get the full record of a specific destination",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"destination_id": map[string]interface{}{
							"type":        "integer",
							"description": "Destination identifier",
						},
					},
					"required": []string{"destination_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(ToolGetHotelDetails),
				Description: "Get the full record of a specific hotel",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"hotel_id": map[string]interface{}{
							"type":        "integer",
							"description": "Hotel identifier",
						},
					},
					"required": []string{"hotel_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(ToolSearchEvents),
				Description: "Search seasonal events at a destination",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"destination_id": map[string]interface{}{
							"type": "integer",
						},
						"season": map[string]interface{}{
							"type": "string",
							"enum": []string{"summer", "winter", "spring", "autumn", "all"},
						},
						"max_price": map[string]interface{}{
							"type": "number",
						},
					},
					"required": []string{"destination_id"},
				},
			},
		},
	}
}
