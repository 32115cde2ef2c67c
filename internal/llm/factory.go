package llm

import (
	"context"
	"fmt"

	"github.com/fieldlab/sportsdesk/internal/config"
)

// New builds the Provider selected by cfg.LLMProvider.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.LLMProvider {
	case "azure":
		return NewAzureProvider(AzureConfig{
			Endpoint:   cfg.AzureEndpoint,
			Deployment: cfg.AzureDeployment,
			APIVersion: cfg.AzureAPIVersion,
			APIKey:     cfg.OpenAIAPIKey,
		}), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
