// Package config provides application configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, parsed from environment
// variables. Load a .env file first (cmd/server does) if one exists.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8000"`
	AppTitle string `env:"APP_TITLE" envDefault:"Sports Data Agent"`
	Debug    bool   `env:"DEBUG" envDefault:"false"`

	// Language model provider: "azure" or "gemini".
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"azure"`

	// Azure OpenAI
	AzureEndpoint   string `env:"AZURE_API_BASE"`
	AzureDeployment string `env:"AZURE_API_DEPLOYMENT" envDefault:"gpt-4.1"`
	AzureAPIVersion string `env:"AZURE_API_VERSION" envDefault:"2024-10-21"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`

	// Gemini
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// Feature services. An empty ARCGIS_API_KEY means anonymous access,
	// which works for public layers only.
	ArcGISAPIKey   string `env:"ARCGIS_API_KEY"`
	StoresLayerURL string `env:"STORES_LAYER_URL" envDefault:"https://services2.arcgis.com/cPVqgcKAQtE6xCja/arcgis/rest/services/Retail_Story/FeatureServer/1"`
	EventsLayerURL string `env:"EVENTS_LAYER_URL" envDefault:"https://services2.arcgis.com/cPVqgcKAQtE6xCja/arcgis/rest/services/Retail_Story/FeatureServer/10"`

	// Local datasets
	AthletesCSVPath string `env:"ATHLETES_CSV_PATH" envDefault:"./data/athletes.csv"`
	EventsCSVPath   string `env:"EVENTS_CSV_PATH" envDefault:"./data/events.csv"`

	// Landing page served at "/" when the file exists.
	IndexHTMLPath string `env:"INDEX_HTML_PATH" envDefault:"./web/index.html"`

	// Session history
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	SessionCapacity int           `env:"SESSION_CAPACITY" envDefault:"500"`

	// Conversation log
	ConversationLog ConversationLogConfig
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool   `env:"CONVERSATION_LOG_ENABLED" envDefault:"false"`
	Dir       string `env:"CONVERSATION_LOG_DIR" envDefault:"./data/logs/conversations"`
	QueueSize int    `env:"CONVERSATION_LOG_QUEUE_SIZE" envDefault:"1000"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.LLMProvider {
	case "azure":
		if c.AzureEndpoint == "" {
			return fmt.Errorf("AZURE_API_BASE cannot be empty when LLM_PROVIDER is azure")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY cannot be empty when LLM_PROVIDER is gemini")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be \"azure\" or \"gemini\", got %q", c.LLMProvider)
	}
	if c.StoresLayerURL == "" {
		return fmt.Errorf("STORES_LAYER_URL cannot be empty")
	}
	if c.EventsLayerURL == "" {
		return fmt.Errorf("EVENTS_LAYER_URL cannot be empty")
	}
	if c.AthletesCSVPath == "" {
		return fmt.Errorf("ATHLETES_CSV_PATH cannot be empty")
	}
	if c.EventsCSVPath == "" {
		return fmt.Errorf("EVENTS_CSV_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.SessionCapacity <= 0 {
		return fmt.Errorf("SESSION_CAPACITY must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}
