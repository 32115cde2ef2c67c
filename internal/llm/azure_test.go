package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fieldlab/sportsdesk/internal/tools"
)

func azureTestProvider(srvURL string) *AzureProvider {
	return NewAzureProvider(AzureConfig{
		Endpoint:   srvURL,
		Deployment: "gpt-4.1",
		APIVersion: "2024-10-21",
		APIKey:     "test-key",
	})
}

func TestAzureCompleteSendsDeploymentRequest(t *testing.T) {
	t.Parallel()

	var gotPath, gotAPIKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAPIKey = r.Header.Get("api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "There are 12 stores."}}]}`))
	}))
	defer srv.Close()

	completion, err := azureTestProvider(srv.URL).Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a data analyst."},
			{Role: RoleUser, Content: "How many stores?"},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completion.Content != "There are 12 stores." {
		t.Errorf("unexpected content %q", completion.Content)
	}
	if gotPath != "/openai/deployments/gpt-4.1/chat/completions?api-version=2024-10-21" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("expected api-key header, got %q", gotAPIKey)
	}
	msgs := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages on the wire, got %d", len(msgs))
	}
	if gotBody["stream"] != false {
		t.Errorf("streaming must be disabled, got %v", gotBody["stream"])
	}
}

func TestAzureCompleteDecodesToolCalls(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "query_athletes", "arguments": "{\"filter_sport\": \"soccer\"}"}
			}]
		}}]}`))
	}))
	defer srv.Close()

	completion, err := azureTestProvider(srv.URL).Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "soccer athletes?"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(completion.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(completion.ToolCalls))
	}
	tc := completion.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "query_athletes" {
		t.Errorf("unexpected tool call %+v", tc)
	}
	if !strings.Contains(tc.Arguments, "soccer") {
		t.Errorf("unexpected arguments %q", tc.Arguments)
	}
}

func TestAzureCompleteSerializesToolSpecs(t *testing.T) {
	t.Parallel()

	var gotBody struct {
		Tools []struct {
			Type     string `json:"type"`
			Function struct {
				Name       string `json:"name"`
				Parameters struct {
					Type       string                    `json:"type"`
					Properties map[string]map[string]any `json:"properties"`
				} `json:"parameters"`
			} `json:"function"`
		} `json:"tools"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	_, err := azureTestProvider(srv.URL).Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Tools: []*tools.Tool{{
			Name:        "query_athletes",
			Description: "Search athletes.",
			Params: []tools.Param{
				{Name: "filter_sport", Type: tools.TypeString, Description: "sport filter"},
				{Name: "max_results", Type: tools.TypeInteger, Description: "cap"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(gotBody.Tools) != 1 {
		t.Fatalf("expected 1 tool spec, got %d", len(gotBody.Tools))
	}
	spec := gotBody.Tools[0]
	if spec.Type != "function" || spec.Function.Name != "query_athletes" {
		t.Errorf("unexpected tool spec %+v", spec)
	}
	if spec.Function.Parameters.Properties["max_results"]["type"] != "integer" {
		t.Errorf("unexpected parameter schema %+v", spec.Function.Parameters.Properties)
	}
}

func TestAzureCompleteRoundTripsToolResults(t *testing.T) {
	t.Parallel()

	var gotMessages []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, m := range body["messages"].([]any) {
			gotMessages = append(gotMessages, m.(map[string]any))
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "2 athletes found."}}]}`))
	}))
	defer srv.Close()

	_, err := azureTestProvider(srv.URL).Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleUser, Content: "soccer athletes?"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "query_athletes", Arguments: `{"filter_sport":"soccer"}`}}},
			{Role: RoleTool, ToolCallID: "call_1", Content: `{"count": 2}`},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(gotMessages) != 3 {
		t.Fatalf("expected 3 wire messages, got %d", len(gotMessages))
	}
	assistant := gotMessages[1]
	if assistant["tool_calls"] == nil {
		t.Errorf("assistant message lost its tool calls: %+v", assistant)
	}
	toolMsg := gotMessages[2]
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "call_1" {
		t.Errorf("unexpected tool message %+v", toolMsg)
	}
}

func TestAzureCompleteSurfacesHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"code": "401", "message": "bad key"}}`))
	}))
	defer srv.Close()

	_, err := azureTestProvider(srv.URL).Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestAzureCompleteNoChoicesIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := azureTestProvider(srv.URL).Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
