package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/tripwise-backend/internal/repository"
)

// fakeCatalog is an in-memory CatalogStore applying the same filter
// semantics the SQL layer does.
type fakeCatalog struct {
	combos       []repository.Combination
	destinations map[int64]*repository.DestinationDetail
	hotels       map[int64]*repository.HotelDetail
	events       []repository.Event

	queryCalls  int
	lastFilters repository.CatalogFilters
	queryErr    error
	detailErr   error
}

func (c *fakeCatalog) QueryCombinations(_ context.Context, f repository.CatalogFilters) ([]repository.Combination, error) {
	c.queryCalls++
	c.lastFilters = f
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	var out []repository.Combination
	for _, combo := range c.combos {
		if combo.Hotel.Stars < f.MinStars {
			continue
		}
		if f.IsCoastal != nil && combo.Destination.IsCoastal != *f.IsCoastal {
			continue
		}
		if f.IsSeaView != nil && combo.Hotel.IsSeaView != *f.IsSeaView {
			continue
		}
		if !MatchesSeason(combo.Destination.BestSeasons, f.SeasonTokens) {
			continue
		}
		out = append(out, combo)
	}
	return out, nil
}

func (c *fakeCatalog) GetDestination(_ context.Context, id int64) (*repository.DestinationDetail, error) {
	if c.detailErr != nil {
		return nil, c.detailErr
	}
	if d, ok := c.destinations[id]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (c *fakeCatalog) GetHotel(_ context.Context, id int64) (*repository.HotelDetail, error) {
	if c.detailErr != nil {
		return nil, c.detailErr
	}
	if h, ok := c.hotels[id]; ok {
		return h, nil
	}
	return nil, repository.ErrNotFound
}

func (c *fakeCatalog) QueryEvents(_ context.Context, destinationID int64, season string, maxPrice *float64) ([]repository.Event, error) {
	var out []repository.Event
	for _, ev := range c.events {
		if ev.DestinationID != destinationID {
			continue
		}
		if season != "all" && ev.Season != season && ev.Season != "all" {
			continue
		}
		if maxPrice != nil && ev.PricePerPerson > *maxPrice {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// fakeSessions is an in-memory SessionStore keyed by owner and session id.
type fakeSessions struct {
	store   map[string]*repository.ConversationSession
	created int
	saves   int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{store: map[string]*repository.ConversationSession{}}
}

func (s *fakeSessions) Load(_ context.Context, sessionID, owner string) (*repository.ConversationSession, error) {
	if session, ok := s.store[owner+"/"+sessionID]; ok {
		return session, nil
	}
	return nil, repository.ErrSessionNotFound
}

func (s *fakeSessions) Create(_ context.Context, owner string) (*repository.ConversationSession, error) {
	s.created++
	session := &repository.ConversationSession{
		ID:        int64(s.created),
		SessionID: fmt.Sprintf("sess-%d", s.created),
		Owner:     owner,
		IsActive:  true,
	}
	s.store[owner+"/"+session.SessionID] = session
	return session, nil
}

func (s *fakeSessions) Save(_ context.Context, session *repository.ConversationSession) error {
	s.saves++
	s.store[session.Owner+"/"+session.SessionID] = session
	return nil
}

// scriptedLLM replays a scripted sequence of completions, reusing the last
// script entry once exhausted.
type scriptedLLM struct {
	responses []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	calls     []openai.ChatCompletionRequest
}

func (s *scriptedLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.calls = append(s.calls, req)
	idx := len(s.calls) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx](req)
}

func textCompletion(content string) func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: content,
				},
			}},
		}, nil
	}
}

func toolCompletion(id, name, args string) func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return toolCompletionWithContent(id, name, args, "")
}

func toolCompletionWithContent(id, name, args, content string) func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: content,
					ToolCalls: []openai.ToolCall{{
						ID:   id,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: name, Arguments: args},
					}},
				},
			}},
		}, nil
	}
}

func newTestOrchestrator(llm ChatCompleter, catalog *fakeCatalog, sessions *fakeSessions, opts Options) *Orchestrator {
	o := NewOrchestrator(llm, catalog, sessions, opts)
	o.backoffUnit = time.Millisecond
	o.log.SetOutput(io.Discard)
	return o
}

func TestRunMissingInfoTurn(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		textCompletion(`{"status": "gather_info", "message": "How many days?", "collected_requirements": {"budget": 2000}}`),
	}}
	sessions := newFakeSessions()
	o := newTestOrchestrator(llm, &fakeCatalog{}, sessions, Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "I want a beach trip", "")

	assert.Equal(t, StatusMissingInfo, resp.Status)
	assert.Equal(t, "How many days?", resp.Message)
	assert.Equal(t, 2000.0, resp.CollectedRequirements["budget"])
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, 1, sessions.saves, "exactly one save per turn")
}

func TestRunLegacyStatusPassThrough(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		textCompletion(`{"status": "gather_info", "message": "Where to?"}`),
	}}
	o := newTestOrchestrator(llm, &fakeCatalog{}, newFakeSessions(), Options{LegacyStatusMode: false})

	resp := o.Run(context.Background(), "user-1", "hi", "")

	assert.Equal(t, "gather_info", resp.Status)
}

func TestRunToolRoundThenAnswer(t *testing.T) {
	catalog := &fakeCatalog{
		combos: []repository.Combination{{
			Destination: repository.Destination{ID: 1, Name: "Alexandria", FlightCost: 100, DailyLivingCost: 50, IsCoastal: true, BestSeasons: "summer"},
			Hotel:       repository.Hotel{ID: 1, DestinationID: 1, Name: "Sea Pearl", Stars: 4, PricePerNight: 80},
		}},
	}
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		toolCompletion("call_1", string(ToolSearchDestinationsAndHotels), `{"budget": 2000, "days": 5, "people": 2}`),
		textCompletion(`{"status": "options_presented", "message": "Found one", "options": [{"option_id": 1, "destination_id": 1, "hotel_id": 1, "total_cost": 1100}]}`),
	}}
	sessions := newFakeSessions()
	o := newTestOrchestrator(llm, catalog, sessions, Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "find me a trip", "")

	assert.Equal(t, StatusOptionsPresented, resp.Status)
	require.Len(t, resp.Options, 1)
	assert.Equal(t, int64(1), resp.Options[0].DestinationID)
	assert.Equal(t, DefaultMinStars, catalog.lastFilters.MinStars)
	assert.Equal(t, 1, sessions.saves)

	// The second submission must carry the tool result back to the model.
	require.Len(t, llm.calls, 2)
	var sawToolResult bool
	for _, m := range llm.calls[1].Messages {
		if m.Role == openai.ChatMessageRoleTool && m.ToolCallID == "call_1" {
			sawToolResult = true
			assert.Contains(t, m.Content, "Alexandria")
		}
	}
	assert.True(t, sawToolResult)
}

func TestRunRepeatedToolCallBreaksLoop(t *testing.T) {
	catalog := &fakeCatalog{}
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		toolCompletion("call_1", string(ToolSearchDestinationsAndHotels), `{"budget": 500}`),
		toolCompletionWithContent("call_2", string(ToolSearchDestinationsAndHotels), `{"budget": 500}`,
			`{"status": "no_options", "message": "Nothing in that budget."}`),
	}}
	o := newTestOrchestrator(llm, catalog, newFakeSessions(), Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "anything under 500?", "")

	assert.Equal(t, StatusNoOptions, resp.Status)
	assert.Len(t, llm.calls, 2, "loop stops on the first repeated signature")
	assert.Equal(t, 1, catalog.queryCalls, "the repeated call is not executed again")
}

func TestRunToolRoundCeiling(t *testing.T) {
	catalog := &fakeCatalog{}
	round := 0
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		func(req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			round++
			return toolCompletion(fmt.Sprintf("call_%d", round), string(ToolSearchDestinationsAndHotels),
				fmt.Sprintf(`{"budget": %d}`, round*100))(req)
		},
	}}
	o := newTestOrchestrator(llm, catalog, newFakeSessions(), Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "keep searching", "")

	// 1 initial + 4 resubmissions + 1 repair attempt; only 4 rounds executed.
	assert.Equal(t, 4, catalog.queryCalls)
	assert.Len(t, llm.calls, 6)
	assert.Equal(t, StatusTextResponse, resp.Status)
}

func TestRunRetryExhausted(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: 500, Message: "upstream down"}
		},
	}}
	sessions := newFakeSessions()
	o := newTestOrchestrator(llm, &fakeCatalog{}, sessions, Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "hello", "")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "sess-1", resp.SessionID, "error responses still carry the session id")
	assert.Len(t, llm.calls, 3)
}

func TestRunNonRetryableFailsFast(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}
		},
	}}
	o := newTestOrchestrator(llm, &fakeCatalog{}, newFakeSessions(), Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "hello", "")

	assert.Equal(t, StatusError, resp.Status)
	assert.Len(t, llm.calls, 1, "auth failures are terminal, no retries")
}

func TestRunStaleSessionStartsFresh(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		textCompletion(`{"status": "missing_info", "message": "Where to?"}`),
	}}
	sessions := newFakeSessions()
	o := newTestOrchestrator(llm, &fakeCatalog{}, sessions, Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "hi", "ghost-session")

	assert.Equal(t, StatusMissingInfo, resp.Status)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, 1, sessions.created)
}

func TestRunPlanConfirmedEnrichment(t *testing.T) {
	dest := &repository.DestinationDetail{Destination: repository.Destination{ID: 3, Name: "Hurghada"}}
	hotel := &repository.HotelDetail{Hotel: repository.Hotel{ID: 7, Name: "Reef Resort"}}
	catalog := &fakeCatalog{
		destinations: map[int64]*repository.DestinationDetail{3: dest},
		hotels:       map[int64]*repository.HotelDetail{7: hotel},
	}
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		textCompletion(`{"status": "plan_confirmed", "message": "Booked your pick.", "selected_plan": {"option_id": 1, "destination_id": 3, "hotel_id": 7, "total_cost": 1100, "days": 5, "cost_breakdown": {"flights": 200, "accommodation": 400, "daily_living": 500, "total": 1100}}}`),
	}}
	o := newTestOrchestrator(llm, catalog, newFakeSessions(), Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "option 1 please", "")

	assert.Equal(t, StatusPlanConfirmed, resp.Status)
	require.NotNil(t, resp.SelectedPlan)
	require.NotNil(t, resp.VisualData)
	assert.Equal(t, dest, resp.VisualData.Destination)
	assert.Equal(t, hotel, resp.VisualData.Hotel)
}

func TestRunDanglingPlanReferenceDowngrades(t *testing.T) {
	catalog := &fakeCatalog{
		destinations: map[int64]*repository.DestinationDetail{3: {Destination: repository.Destination{ID: 3}}},
		// hotel 7 removed from the catalog
	}
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		textCompletion(`{"status": "plan_confirmed", "selected_plan": {"option_id": 1, "destination_id": 3, "hotel_id": 7, "total_cost": 1100, "days": 5, "cost_breakdown": {"flights": 200, "accommodation": 400, "daily_living": 500, "total": 1100}}}`),
	}}
	o := newTestOrchestrator(llm, catalog, newFakeSessions(), Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "confirm it", "")

	assert.Equal(t, StatusMissingInfo, resp.Status)
	assert.Nil(t, resp.SelectedPlan)
	assert.Nil(t, resp.VisualData)
	assert.Contains(t, resp.Message, "no longer available")
}

func TestRunEnrichmentStoreFaultKeepsPlan(t *testing.T) {
	catalog := &fakeCatalog{detailErr: errors.New("connection reset")}
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		textCompletion(`{"status": "plan_confirmed", "selected_plan": {"option_id": 1, "destination_id": 3, "hotel_id": 7, "total_cost": 1100, "days": 5, "cost_breakdown": {"flights": 200, "accommodation": 400, "daily_living": 500, "total": 1100}}}`),
	}}
	o := newTestOrchestrator(llm, catalog, newFakeSessions(), Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "confirm it", "")

	assert.Equal(t, StatusPlanConfirmed, resp.Status)
	assert.NotNil(t, resp.SelectedPlan)
	assert.Nil(t, resp.VisualData)
}

func TestRunUnknownToolContinues(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		toolCompletion("call_1", "fly_me_to_the_moon", `{}`),
		textCompletion(`{"status": "missing_info", "message": "I cannot do that, but I can plan a trip."}`),
	}}
	o := newTestOrchestrator(llm, &fakeCatalog{}, newFakeSessions(), Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "to the moon", "")

	assert.Equal(t, StatusMissingInfo, resp.Status)
	require.Len(t, llm.calls, 2)
	var sawError bool
	for _, m := range llm.calls[1].Messages {
		if m.Role == openai.ChatMessageRoleTool && m.ToolCallID == "call_1" {
			sawError = true
			assert.Contains(t, m.Content, "unknown tool")
		}
	}
	assert.True(t, sawError, "the error payload goes back to the model as a tool result")
}

func TestRunTextResponseFallback(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		textCompletion("Let me think about beaches for a moment."),
		textCompletion("Still thinking about beaches."),
	}}
	sessions := newFakeSessions()
	o := newTestOrchestrator(llm, &fakeCatalog{}, sessions, Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "hi", "")

	assert.Equal(t, StatusTextResponse, resp.Status)
	assert.Equal(t, "Let me think about beaches for a moment.", resp.Message)
	assert.Len(t, llm.calls, 2, "one repair round, then fall back")
	assert.Equal(t, 1, sessions.saves, "fallback turns are persisted too")
}

func TestRunRequirementsMergeAcrossTurns(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		textCompletion(`{"status": "gather_info", "message": "For how long?", "collected_requirements": {"budget": 2000}}`),
		textCompletion(`{"status": "gather_info", "message": "How many people?", "collected_requirements": {"budget": null, "days": 5}}`),
	}}
	sessions := newFakeSessions()
	o := newTestOrchestrator(llm, &fakeCatalog{}, sessions, Options{LegacyStatusMode: true})

	first := o.Run(context.Background(), "user-1", "budget is 2000", "")
	second := o.Run(context.Background(), "user-1", "5 days", first.SessionID)

	assert.Equal(t, StatusMissingInfo, second.Status)
	assert.Equal(t, 2000.0, second.CollectedRequirements["budget"], "null never erases a known requirement")
	assert.Equal(t, 5.0, second.CollectedRequirements["days"])
	assert.Equal(t, 1, sessions.created, "second turn resumes the same session")
	assert.Equal(t, 2, sessions.saves)
}

func TestRunSearchingFirstResponse(t *testing.T) {
	script := []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		toolCompletion("call_1", string(ToolSearchDestinationsAndHotels), `{"budget": 2000, "days": 5, "people": 2}`),
	}

	t.Run("canonical status", func(t *testing.T) {
		llm := &scriptedLLM{responses: script}
		sessions := newFakeSessions()
		o := newTestOrchestrator(llm, &fakeCatalog{}, sessions, Options{SearchingFirstResponse: true})

		resp := o.Run(context.Background(), "user-1", "find trips", "")

		assert.Equal(t, StatusSearching, resp.Status)
		assert.Len(t, llm.calls, 1, "the search itself is deferred")
		assert.Equal(t, 1, sessions.saves)

		var state struct {
			PendingToolCalls []ToolCall `json:"pending_tool_calls"`
		}
		require.NoError(t, json.Unmarshal(sessions.store["user-1/"+resp.SessionID].State, &state))
		require.Len(t, state.PendingToolCalls, 1)
		assert.Equal(t, string(ToolSearchDestinationsAndHotels), state.PendingToolCalls[0].Name)
	})

	t.Run("legacy status", func(t *testing.T) {
		llm := &scriptedLLM{responses: script}
		o := newTestOrchestrator(llm, &fakeCatalog{}, newFakeSessions(), Options{SearchingFirstResponse: true, LegacyStatusMode: true})

		resp := o.Run(context.Background(), "user-1", "find trips", "")

		assert.Equal(t, StatusMissingInfo, resp.Status)
	})
}

func TestRunValidationFailureDowngrades(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		textCompletion(`{"status": "options_presented", "message": "Here you go"}`),
	}}
	sessions := newFakeSessions()
	o := newTestOrchestrator(llm, &fakeCatalog{}, sessions, Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "show options", "")

	assert.Equal(t, StatusMissingInfo, resp.Status)
	assert.Nil(t, resp.Options)
	assert.Equal(t, 1, sessions.saves)
}

func TestRunPanicIsContained(t *testing.T) {
	llm := &scriptedLLM{responses: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			panic("boom")
		},
	}}
	o := newTestOrchestrator(llm, &fakeCatalog{}, newFakeSessions(), Options{LegacyStatusMode: true})

	resp := o.Run(context.Background(), "user-1", "hello", "")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "sess-1", resp.SessionID)
}
