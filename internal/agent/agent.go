package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tripwise/tripwise-backend/internal/repository"
)

// Options tune the orchestrator. Zero values fall back to the defaults the
// conversation contract was designed around.
type Options struct {
	Model          string
	MaxRetries     int
	RequestTimeout time.Duration
	MaxToolRounds  int
	// LegacyStatusMode folds older model status vocabulary (gather_info,
	// clarify) into the canonical contract.
	LegacyStatusMode bool
	// SearchingFirstResponse returns an early "searching" reply on the first
	// tool round and persists the pending calls for the client to resume.
	SearchingFirstResponse bool
}

// Orchestrator drives the per-turn conversation lifecycle: prompt the model,
// execute requested tools, feed results back, and reconcile the final reply
// with the structured response contract.
type Orchestrator struct {
	client   ChatCompleter
	catalog  repository.CatalogStore
	sessions repository.SessionStore
	log      *logrus.Logger

	model            string
	maxRetries       int
	backoffUnit      time.Duration
	requestTimeout   time.Duration
	maxToolRounds    int
	legacyStatusMode bool
	searchingFirst   bool
}

// NewOrchestrator creates a conversation orchestrator.
func NewOrchestrator(client ChatCompleter, catalog repository.CatalogStore, sessions repository.SessionStore, opts Options) *Orchestrator {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 4
	}

	return &Orchestrator{
		client:           client,
		catalog:          catalog,
		sessions:         sessions,
		log:              logger,
		model:            opts.Model,
		maxRetries:       opts.MaxRetries,
		backoffUnit:      time.Second,
		requestTimeout:   opts.RequestTimeout,
		maxToolRounds:    opts.MaxToolRounds,
		legacyStatusMode: opts.LegacyStatusMode,
		searchingFirst:   opts.SearchingFirstResponse,
	}
}

// sessionState is the JSON document stored per session: the requirements
// accumulator plus the full dialogue history.
type sessionState struct {
	Requirements     map[string]interface{}         `json:"requirements"`
	Messages         []openai.ChatCompletionMessage `json:"messages"`
	PendingToolCalls []ToolCall                     `json:"pending_tool_calls,omitempty"`
}

// Run executes one conversation turn and always returns a structured
// response; faults are converted to status=error at this boundary and never
// propagate to the caller.
func (o *Orchestrator) Run(ctx context.Context, owner, userInput, sessionID string) (resp *StructuredResponse) {
	var session *repository.ConversationSession

	defer func() {
		if r := recover(); r != nil {
			o.log.WithField("panic", r).Error("conversation turn panicked")
			resp = o.errorResponse(session, fmt.Errorf("unexpected error: %v", r))
		}
	}()

	session, err := o.loadOrCreateSession(ctx, sessionID, owner)
	if err != nil {
		return o.errorResponse(nil, err)
	}

	state := decodeSessionState(session.State)
	state.Messages = append(state.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userInput,
	})

	tools := ToolDefinitions()
	msg, err := o.complete(ctx, o.buildPrompt(state), tools)
	if err != nil {
		return o.errorResponse(session, err)
	}

	// Tool rounds. A repeated (name, arguments) signature means the model is
	// looping; finalize with its last message instead of burning rounds.
	seenSignatures := map[string]struct{}{}
	for round := 0; round < o.maxToolRounds; round++ {
		rawContent := msg.Content
		calls := ExtractToolCalls(&msg)
		if len(calls) == 0 {
			break
		}

		o.log.WithFields(logrus.Fields{
			"round":           round,
			"tool_count":      len(calls),
			"content_preview": preview(rawContent, 600),
		}).Info("model requested tool calls")

		sig := toolSignature(calls)
		if _, repeated := seenSignatures[sig]; repeated {
			o.log.Warn("tool loop repeating detected, stopping early")
			msg.Content = rawContent
			break
		}
		seenSignatures[sig] = struct{}{}

		if o.searchingFirst && round == 0 {
			return o.searchingResponse(ctx, session, state, msg, calls)
		}

		state.Messages = append(state.Messages, withToolCalls(msg, calls))

		for _, call := range calls {
			result, err := ExecuteToolCall(ctx, o.catalog, call)
			if err != nil {
				return o.errorResponse(session, err)
			}
			payload, err := json.Marshal(result)
			if err != nil {
				return o.errorResponse(session, err)
			}
			state.Messages = append(state.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(payload),
				Name:       call.Name,
				ToolCallID: call.ID,
			})
		}

		// Resubmit with tools attached: some models ignore the protocol and
		// emit the next tool call as text.
		msg, err = o.complete(ctx, o.buildPrompt(state), tools)
		if err != nil {
			return o.errorResponse(session, err)
		}
	}

	o.log.WithFields(logrus.Fields{
		"has_tool_calls":  len(msg.ToolCalls) > 0,
		"content_preview": preview(msg.Content, 600),
	}).Info("final model message")

	assistantText := msg.Content
	state.Messages = append(state.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: assistantText,
	})

	parsed := ExtractStructured(assistantText)
	if parsed == nil {
		parsed = o.repairViaModel(ctx, assistantText)
	}
	if parsed == nil {
		if err := o.persist(ctx, session, state); err != nil {
			return o.errorResponse(session, err)
		}
		return &StructuredResponse{
			Status:    StatusTextResponse,
			Message:   assistantText,
			SessionID: session.SessionID,
		}
	}

	incoming, _ := parsed["collected_requirements"].(map[string]interface{})
	state.Requirements = MergeRequirements(state.Requirements, incoming)

	out := responseFromParsed(parsed)
	out.Status = NormalizeStatus(out.Status, o.legacyStatusMode)
	out.CollectedRequirements = state.Requirements

	if err := o.persist(ctx, session, state); err != nil {
		return o.errorResponse(session, err)
	}
	out.SessionID = session.SessionID

	if err := out.Validate(); err != nil {
		o.log.WithError(err).Warn("model response failed contract validation, downgrading")
		out.Status = StatusMissingInfo
		out.Options = nil
		out.SelectedPlan = nil
		return out
	}

	if out.Status == StatusPlanConfirmed {
		o.enrichConfirmedPlan(ctx, out)
	}

	return out
}

// enrichConfirmedPlan attaches full destination and hotel records to a
// confirmed plan. A dangling reference downgrades the status instead of
// shipping a broken plan.
func (o *Orchestrator) enrichConfirmedPlan(ctx context.Context, resp *StructuredResponse) {
	plan := resp.SelectedPlan

	dest, destErr := o.catalog.GetDestination(ctx, plan.DestinationID)
	hotel, hotelErr := o.catalog.GetHotel(ctx, plan.HotelID)

	if errors.Is(destErr, repository.ErrNotFound) || errors.Is(hotelErr, repository.ErrNotFound) {
		o.log.WithFields(logrus.Fields{
			"destination_id": plan.DestinationID,
			"hotel_id":       plan.HotelID,
		}).Warn("confirmed plan references missing catalog records")
		resp.Status = StatusMissingInfo
		resp.Message = "The selected destination or hotel is no longer available. Let's pick another option."
		resp.SelectedPlan = nil
		return
	}
	if destErr != nil || hotelErr != nil {
		// Store fault, not a dangling reference: keep the plan, skip the
		// visual payload.
		o.log.WithError(firstErr(destErr, hotelErr)).Error("catalog lookup failed during plan enrichment")
		return
	}

	resp.VisualData = &VisualData{Destination: dest, Hotel: hotel}
}

// searchingResponse persists the pending tool calls and returns the early
// "searching" reply. The client resumes by re-invoking with the same
// session id.
func (o *Orchestrator) searchingResponse(ctx context.Context, session *repository.ConversationSession, state sessionState, msg openai.ChatCompletionMessage, calls []ToolCall) *StructuredResponse {
	state.Messages = append(state.Messages, withToolCalls(msg, calls))
	state.PendingToolCalls = calls
	if err := o.persist(ctx, session, state); err != nil {
		return o.errorResponse(session, err)
	}

	status := StatusSearching
	if o.legacyStatusMode {
		status = StatusMissingInfo
	}
	return &StructuredResponse{
		Status:                status,
		Message:               "Searching for the best options for you...",
		CollectedRequirements: state.Requirements,
		SessionID:             session.SessionID,
	}
}

// repairViaModel asks the model once to rewrite unparseable output as strict
// JSON. Returns nil when the repair round fails too.
func (o *Orchestrator) repairViaModel(ctx context.Context, badText string) map[string]interface{} {
	msg, err := o.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: repairPrompt},
		{Role: openai.ChatMessageRoleUser, Content: badText},
	}, nil)
	if err != nil {
		o.log.WithError(err).Warn("model-mediated JSON repair failed")
		return nil
	}
	return ExtractStructured(msg.Content)
}

// buildPrompt assembles the model submission: system instructions, the
// current requirements snapshot, then the dialogue history.
func (o *Orchestrator) buildPrompt(state sessionState) []openai.ChatCompletionMessage {
	snapshot, err := json.Marshal(state.Requirements)
	if err != nil {
		snapshot = []byte("{}")
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(state.Messages)+2)
	messages = append(messages,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: "collected_requirements (known so far) = " + string(snapshot)},
	)
	return append(messages, state.Messages...)
}

func (o *Orchestrator) loadOrCreateSession(ctx context.Context, sessionID, owner string) (*repository.ConversationSession, error) {
	if sessionID != "" {
		session, err := o.sessions.Load(ctx, sessionID, owner)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, repository.ErrSessionNotFound) {
			return nil, err
		}
		// Stale or foreign session id: start fresh rather than erroring.
	}
	return o.sessions.Create(ctx, owner)
}

func (o *Orchestrator) persist(ctx context.Context, session *repository.ConversationSession, state sessionState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	session.State = encoded
	session.UpdatedAt = time.Now()
	if err := o.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (o *Orchestrator) errorResponse(session *repository.ConversationSession, err error) *StructuredResponse {
	resp := &StructuredResponse{
		Status:  StatusError,
		Message: fmt.Sprintf("The planning service hit an error: %v", err),
	}
	if session != nil {
		resp.SessionID = session.SessionID
	}
	return resp
}

// responseFromParsed decodes the salvaged JSON object into the outward
// contract, tolerating missing or mistyped optional fields.
func responseFromParsed(parsed map[string]interface{}) *StructuredResponse {
	var out StructuredResponse
	encoded, err := json.Marshal(parsed)
	if err != nil {
		return &StructuredResponse{Status: StatusError, Message: "unreadable model response"}
	}
	if err := json.Unmarshal(encoded, &out); err != nil {
		status, _ := parsed["status"].(string)
		message, _ := parsed["message"].(string)
		return &StructuredResponse{Status: status, Message: message}
	}
	return &out
}

func decodeSessionState(raw json.RawMessage) sessionState {
	state := sessionState{Requirements: map[string]interface{}{}}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &state)
	}
	if state.Requirements == nil {
		state.Requirements = map[string]interface{}{}
	}
	return state
}

// toolSignature builds a deterministic key over the ordered (name,
// arguments) pairs of a tool round, used for repetition detection.
func toolSignature(calls []ToolCall) string {
	type pair struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}
	pairs := make([]pair, len(calls))
	for i, c := range calls {
		pairs[i] = pair{Name: c.Name, Arguments: string(c.Arguments)}
	}
	encoded, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Sprintf("%v", pairs)
	}
	return string(encoded)
}

// withToolCalls ensures the assistant message carries its tool calls in the
// native encoding before it enters the history, including calls that were
// recovered from inline markers.
func withToolCalls(msg openai.ChatCompletionMessage, calls []ToolCall) openai.ChatCompletionMessage {
	if len(msg.ToolCalls) > 0 {
		return msg
	}
	msg.ToolCalls = make([]openai.ToolCall, len(calls))
	for i, c := range calls {
		msg.ToolCalls[i] = openai.ToolCall{
			ID:   c.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      c.Name,
				Arguments: string(c.Arguments),
			},
		}
	}
	return msg
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
