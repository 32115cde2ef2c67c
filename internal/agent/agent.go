// Package agent implements the conversation orchestrator: stored history
// plus the new user message go to the model, tool calls are satisfied from
// the registry, and the final reply is committed back to history.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldlab/sportsdesk/internal/history"
	"github.com/fieldlab/sportsdesk/internal/llm"
	"github.com/fieldlab/sportsdesk/internal/tools"
)

// fallbackReply is returned when the model produces no usable text.
const fallbackReply = "I was unable to generate a response."

// maxToolRounds bounds the tool-calling loop for one turn.
const maxToolRounds = 8

const systemPrompt = `You are a sports data analyst with access to four data sources:

1. **Retail Stores (feature layer)** — Global retail store locations.
   Tools: describe_retail_stores, query_retail_stores

2. **Sports Events (feature layer)** — Hosted sports events layer.
   Tools: describe_events_layer, query_events_layer

3. **Athletes (CSV)** — Sponsored athletes with home city coordinates.
   Tool: query_athletes  |  Fields: name, sport, country, home_city, home_lat, home_lon, team_club, specialty, category

4. **Sports Events (CSV)** — Upcoming sports events with venue coordinates.
   Tool: query_events_csv  |  Fields: event_name, sport, start_date, end_date, city, country, venue, lat, lon, region

When answering questions:
- Always use the correct tool for the data source being asked about.
- For schema questions, call describe_* tools first, then query.
- Cross-reference data sources when relevant (e.g. athletes near event locations).
- Present results as a clear markdown table when returning multiple records.
- Never fabricate data — if a query returns nothing, say so and suggest alternatives.
- Format numbers with commas. Use concise, professional language.`

// Agent orchestrates one conversation turn at a time.
type Agent struct {
	provider llm.Provider
	registry *tools.Registry
	history  *history.Store
	log      ConversationLogger
}

// New creates an Agent. logger may be nil to disable conversation logging.
func New(provider llm.Provider, registry *tools.Registry, store *history.Store, logger ConversationLogger) *Agent {
	if logger == nil {
		logger = noopConversationLogger{}
	}
	return &Agent{
		provider: provider,
		registry: registry,
		history:  store,
		log:      logger,
	}
}

// Respond runs one turn for the session and returns the reply text.
//
// The turn is committed to history only after a reply is obtained: any
// provider fault propagates as an error and leaves the stored history
// exactly as it was. Tool faults never surface here — each tool returns an
// error JSON payload the model consumes inside the loop.
func (a *Agent) Respond(ctx context.Context, sessionID, userText string) (string, error) {
	prior := a.history.Snapshot(sessionID)

	msgs := make([]llm.Message, 0, len(prior)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, m := range prior {
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userText})

	a.logEvent(sessionID, "user_message", userText, nil)

	reply := ""
	for round := 0; round < maxToolRounds; round++ {
		completion, err := a.provider.Complete(ctx, llm.Request{
			Messages: msgs,
			Tools:    a.registry.Tools(),
		})
		if err != nil {
			return "", fmt.Errorf("model invocation: %w", err)
		}

		if completion.Content != "" {
			reply = completion.Content
		}
		if len(completion.ToolCalls) == 0 {
			break
		}

		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, tc := range completion.ToolCalls {
			result := a.registry.Dispatch(ctx, tc.Name, tc.Arguments)
			slog.Info("Tool invoked",
				"session_id", sessionID,
				"tool", tc.Name,
				"round", round,
				"result_length", len(result),
			)
			a.logEvent(sessionID, "tool_call", result, map[string]any{
				"tool":      tc.Name,
				"arguments": tc.Arguments,
			})
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
	}

	if reply == "" {
		reply = fallbackReply
	}

	a.history.RecordTurn(sessionID, userText, reply)
	a.logEvent(sessionID, "assistant_message", reply, nil)
	return reply, nil
}

// SessionCount reports how many sessions the store currently tracks.
func (a *Agent) SessionCount() int {
	return a.history.Len()
}

// ClearSession drops the session's stored history.
func (a *Agent) ClearSession(sessionID string) {
	a.history.Clear(sessionID)
}

func (a *Agent) logEvent(sessionID, eventType, content string, meta map[string]any) {
	a.log.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		EventType: eventType,
		Content:   content,
		Meta:      meta,
	})
}
