package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/fieldlab/sportsdesk/internal/tools"
)

// GeminiProvider runs completions through the Gemini API with native
// function calling.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a provider for the given model.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	contents, system := toGeminiContents(req.Messages)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if decls := toGeminiDeclarations(req.Tools); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("generate content returned no candidates")
	}

	completion := &Completion{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			completion.Content += part.Text
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("marshal function call args: %w", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = part.FunctionCall.Name
			}
			completion.ToolCalls = append(completion.ToolCalls, ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}
	return completion, nil
}

// toGeminiContents maps provider messages to Gemini contents. The system
// prompt is returned separately because Gemini carries it as a
// SystemInstruction, not as a turn.
func toGeminiContents(msgs []Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	system := ""
	byID := make(map[string]string)

	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		case RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				byID[tc.ID] = tc.Name
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: args,
					},
				})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     byID[m.ToolCallID],
						Response: toResponseMap(m.Content),
					},
				}},
			})
		}
	}
	return contents, system
}

// toResponseMap shapes a tool's JSON output into the map the API expects.
func toResponseMap(raw string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err == nil {
		return m
	}
	return map[string]any{"result": raw}
}

func toGeminiDeclarations(ts []*tools.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(ts))
	for _, t := range ts {
		properties := make(map[string]*genai.Schema, len(t.Params))
		var required []string
		for _, p := range t.Params {
			properties[p.Name] = &genai.Schema{
				Type:        toGeminiType(p.Type),
				Description: p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(properties) > 0 {
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   required,
			}
		}
		decls = append(decls, decl)
	}
	return decls
}

func toGeminiType(t string) genai.Type {
	switch t {
	case tools.TypeInteger:
		return genai.TypeInteger
	default:
		return genai.TypeString
	}
}
