package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fieldlab/sportsdesk/internal/tools"
)

// AzureProvider talks to an Azure OpenAI chat-completions deployment.
type AzureProvider struct {
	endpoint   string
	deployment string
	apiVersion string
	apiKey     string
	httpClient *http.Client
}

// AzureConfig configures the Azure OpenAI provider.
type AzureConfig struct {
	Endpoint   string
	Deployment string
	APIVersion string
	APIKey     string
}

// NewAzureProvider creates a provider for the given deployment.
func NewAzureProvider(cfg AzureConfig) *AzureProvider {
	return &AzureProvider{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type azureMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	ToolCalls  []azureToolCall `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type azureToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Function azureFunction `json:"function"`
}

type azureFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type azureToolSpec struct {
	Type     string            `json:"type"`
	Function azureFunctionSpec `json:"function"`
}

type azureFunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type azureChatRequest struct {
	Messages    []azureMessage  `json:"messages"`
	Tools       []azureToolSpec `json:"tools,omitempty"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream"`
}

type azureChatResponse struct {
	Choices []struct {
		Message azureMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Provider.
func (p *AzureProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	chatReq := azureChatRequest{
		Messages:    toAzureMessages(req.Messages),
		Tools:       toAzureToolSpecs(req.Tools),
		Temperature: 0,
		Stream:      false,
	}

	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, p.deployment, p.apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var chatResp azureChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("chat completion error %s: %s", chatResp.Error.Code, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	msg := chatResp.Choices[0].Message
	completion := &Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return completion, nil
}

func toAzureMessages(msgs []Message) []azureMessage {
	out := make([]azureMessage, 0, len(msgs))
	for _, m := range msgs {
		am := azureMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			am.ToolCalls = append(am.ToolCalls, azureToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: azureFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, am)
	}
	return out
}

func toAzureToolSpecs(ts []*tools.Tool) []azureToolSpec {
	specs := make([]azureToolSpec, 0, len(ts))
	for _, t := range ts {
		properties := make(map[string]any, len(t.Params))
		var required []string
		for _, p := range t.Params {
			properties[p.Name] = map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		params := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			params["required"] = required
		}
		specs = append(specs, azureToolSpec{
			Type: "function",
			Function: azureFunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return specs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
