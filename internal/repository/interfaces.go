package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a catalog record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrSessionNotFound is returned when a conversation session cannot be
// resumed for the given session id and owner.
var ErrSessionNotFound = errors.New("session not found")

// Destination is a travel destination row.
type Destination struct {
	ID              int64   `db:"id" json:"id"`
	Name            string  `db:"name" json:"name"`
	Country         string  `db:"country" json:"country"`
	FlightCost      float64 `db:"flight_cost" json:"flight_cost"`
	DailyLivingCost float64 `db:"daily_living_cost" json:"daily_living_cost"`
	IsCoastal       bool    `db:"is_coastal" json:"is_coastal"`
	Description     string  `db:"description" json:"description"`
	BestSeasons     string  `db:"best_seasons" json:"best_seasons"`
}

// Hotel is a hotel row belonging to a destination.
type Hotel struct {
	ID            int64   `db:"id" json:"id"`
	DestinationID int64   `db:"destination_id" json:"destination_id"`
	Name          string  `db:"name" json:"name"`
	Stars         int     `db:"stars" json:"stars"`
	PricePerNight float64 `db:"price_per_night" json:"price_per_night"`
	IsSeaView     bool    `db:"is_sea_view" json:"is_sea_view"`
}

// Event is a seasonal event at a destination.
type Event struct {
	ID             int64    `db:"id" json:"id"`
	DestinationID  int64    `db:"destination_id" json:"destination_id"`
	Name           string   `db:"name" json:"name"`
	Description    string   `db:"description" json:"description"`
	Season         string   `db:"season" json:"season"`
	PricePerPerson float64  `db:"price_per_person" json:"price_per_person"`
	DurationHours  int      `db:"duration_hours" json:"duration_hours"`
	IsFree         bool     `db:"is_free" json:"is_free"`
	Images         []string `db:"-" json:"images,omitempty"`
}

// Combination is one destination x hotel pairing returned by the catalog.
// Pricing inputs are carried raw; totals are computed by the query engine.
type Combination struct {
	Destination Destination
	Hotel       Hotel
}

// CatalogFilters are the predicates QueryCombinations applies. Nil pointer
// fields are unconstrained. SeasonTokens is an already-expanded synonym list
// matched case-insensitively against Destination.BestSeasons.
type CatalogFilters struct {
	IsCoastal    *bool
	MinStars     int
	IsSeaView    *bool
	SeasonTokens []string
}

// DestinationDetail is the full projection used for visual enrichment.
type DestinationDetail struct {
	Destination
	Images []string      `json:"images"`
	Hotels []HotelDetail `json:"hotels"`
	Events []Event       `json:"events"`
}

// HotelDetail is a hotel with its image assets.
type HotelDetail struct {
	Hotel
	Images []string `json:"images"`
}

// ConversationSession is a durable per-user dialogue record. State is an
// opaque JSON document owned by the agent package.
type ConversationSession struct {
	ID        int64           `db:"id"`
	SessionID string          `db:"session_id"`
	Owner     string          `db:"owner"`
	State     json.RawMessage `db:"state"`
	IsActive  bool            `db:"is_active"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// CatalogStore provides read access to the travel inventory.
type CatalogStore interface {
	QueryCombinations(ctx context.Context, filters CatalogFilters) ([]Combination, error)
	GetDestination(ctx context.Context, id int64) (*DestinationDetail, error)
	GetHotel(ctx context.Context, id int64) (*HotelDetail, error)
	QueryEvents(ctx context.Context, destinationID int64, season string, maxPrice *float64) ([]Event, error)
}

// SessionStore persists conversation sessions keyed by session id and owner.
type SessionStore interface {
	Load(ctx context.Context, sessionID, owner string) (*ConversationSession, error)
	Create(ctx context.Context, owner string) (*ConversationSession, error)
	Save(ctx context.Context, session *ConversationSession) error
}
