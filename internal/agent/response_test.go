package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusMissingInfo, NormalizeStatus("gather_info", true))
	assert.Equal(t, StatusMissingInfo, NormalizeStatus("clarify", true))
	assert.Equal(t, StatusPlanConfirmed, NormalizeStatus("plan_confirmed", true))

	// With legacy mode off, legacy vocabulary passes through untouched.
	assert.Equal(t, "gather_info", NormalizeStatus("gather_info", false))
	assert.Equal(t, "clarify", NormalizeStatus("clarify", false))
}

func TestStructuredResponseValidate(t *testing.T) {
	breakdown := &CostBreakdown{Flights: 200, Accommodation: 400, DailyLiving: 500, Total: 1100}

	tests := []struct {
		name    string
		resp    StructuredResponse
		wantErr bool
	}{
		{
			name: "missing_info needs nothing extra",
			resp: StructuredResponse{Status: StatusMissingInfo, Message: "How many days?"},
		},
		{
			name:    "options_presented with empty options",
			resp:    StructuredResponse{Status: StatusOptionsPresented},
			wantErr: true,
		},
		{
			name: "options_presented with options",
			resp: StructuredResponse{
				Status:  StatusOptionsPresented,
				Options: []Option{{OptionID: 1, DestinationID: 3, HotelID: 7, TotalCost: 1100}},
			},
		},
		{
			name:    "plan_confirmed without plan",
			resp:    StructuredResponse{Status: StatusPlanConfirmed},
			wantErr: true,
		},
		{
			name: "plan_confirmed with dangling hotel reference",
			resp: StructuredResponse{
				Status:       StatusPlanConfirmed,
				SelectedPlan: &SelectedPlan{DestinationID: 3, CostBreakdown: breakdown},
			},
			wantErr: true,
		},
		{
			name: "plan_confirmed without cost breakdown",
			resp: StructuredResponse{
				Status:       StatusPlanConfirmed,
				SelectedPlan: &SelectedPlan{DestinationID: 3, HotelID: 7},
			},
			wantErr: true,
		},
		{
			name: "plan_confirmed complete",
			resp: StructuredResponse{
				Status: StatusPlanConfirmed,
				SelectedPlan: &SelectedPlan{
					OptionID: 1, DestinationID: 3, HotelID: 7,
					TotalCost: 1100, Days: 5, CostBreakdown: breakdown,
				},
			},
		},
		{
			name: "unknown status passes structural validation",
			resp: StructuredResponse{Status: "gather_info"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
