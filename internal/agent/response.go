package agent

import (
	"errors"
)

// Canonical conversation statuses exposed to clients. The model may emit
// legacy synonyms; NormalizeStatus folds those into this set.
const (
	StatusMissingInfo      = "missing_info"
	StatusNoOptions        = "no_options"
	StatusSearching        = "searching"
	StatusOptionsPresented = "options_presented"
	StatusPlanConfirmed    = "plan_confirmed"
	StatusError            = "error"
	StatusTextResponse     = "text_response"
)

// legacyStatusSynonyms maps model-emitted vocabulary from older prompts onto
// the canonical contract.
var legacyStatusSynonyms = map[string]string{
	"gather_info": StatusMissingInfo,
	"clarify":     StatusMissingInfo,
}

// NormalizeStatus rewrites legacy status synonyms when legacy mode is
// enabled. Unknown statuses pass through untouched; validation catches them.
func NormalizeStatus(status string, legacyMode bool) string {
	if !legacyMode {
		return status
	}
	if canonical, ok := legacyStatusSynonyms[status]; ok {
		return canonical
	}
	return status
}

// Option is one destination+hotel proposal presented to the user.
type Option struct {
	OptionID      int            `json:"option_id"`
	DestinationID int64          `json:"destination_id"`
	HotelID       int64          `json:"hotel_id"`
	TotalCost     float64        `json:"total_cost"`
	CostBreakdown *CostBreakdown `json:"cost_breakdown,omitempty"`
}

// PlanEvent is a seasonal event attached to a confirmed plan.
type PlanEvent struct {
	EventID        int64   `json:"event_id"`
	Name           string  `json:"name"`
	PricePerPerson float64 `json:"price_per_person"`
}

// SelectedPlan is the finalized trip choice.
type SelectedPlan struct {
	OptionID      int            `json:"option_id"`
	DestinationID int64          `json:"destination_id"`
	HotelID       int64          `json:"hotel_id"`
	TotalCost     float64        `json:"total_cost"`
	Days          int            `json:"days"`
	Events        []PlanEvent    `json:"events,omitempty"`
	CostBreakdown *CostBreakdown `json:"cost_breakdown,omitempty"`
}

// VisualData carries the full catalog records referenced by a confirmed plan.
type VisualData struct {
	Destination interface{} `json:"destination"`
	Hotel       interface{} `json:"hotel"`
}

// StructuredResponse is the outward per-turn contract.
type StructuredResponse struct {
	Status                string                 `json:"status"`
	Message               string                 `json:"message,omitempty"`
	CollectedRequirements map[string]interface{} `json:"collected_requirements,omitempty"`
	Options               []Option               `json:"options,omitempty"`
	SelectedPlan          *SelectedPlan          `json:"selected_plan,omitempty"`
	VisualData            *VisualData            `json:"visual_data,omitempty"`
	SessionID             string                 `json:"session_id,omitempty"`
}

// Validate enforces the structural status contract: options present when
// options are announced, a complete plan when a plan is confirmed. Status
// vocabulary itself is not restricted here so that non-normalized legacy
// statuses can pass through when legacy mode is off.
func (r *StructuredResponse) Validate() error {
	if r.Status == StatusOptionsPresented && len(r.Options) == 0 {
		return errors.New("options_presented requires a non-empty options list")
	}
	if r.Status == StatusPlanConfirmed {
		if r.SelectedPlan == nil {
			return errors.New("plan_confirmed requires selected_plan")
		}
		if r.SelectedPlan.DestinationID == 0 || r.SelectedPlan.HotelID == 0 {
			return errors.New("selected_plan must reference a destination and a hotel")
		}
		if r.SelectedPlan.CostBreakdown == nil {
			return errors.New("selected_plan must include a cost breakdown")
		}
	}
	return nil
}
