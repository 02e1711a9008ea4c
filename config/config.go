package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string              `mapstructure:"port"`
	AIProvider          string              `mapstructure:"ai_provider"` // openai or gemini
	AIEndpoint          string              `mapstructure:"ai_endpoint"`
	Model               string              `mapstructure:"model"`
	EmbeddingModel      string              `mapstructure:"embedding_model"`
	OpenAIAPIKey        string              `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKeys       []string            `mapstructure:"gemini_api_keys"`
	WeaviateStoreConfig WeaviateStoreConfig `mapstructure:"weaviate_store_config"`
	SearchConfig        SearchConfig        `mapstructure:"search_config"`
	RerankConfig        RerankConfig        `mapstructure:"rerank_config"`
	SyncConfig          SyncConfig          `mapstructure:"sync_config"`
	WebSearchConfig     WebSearchConfig     `mapstructure:"web_search_config"`
	MaxContextTurns     int                 `mapstructure:"max_context_turns"`
	AgentTimeoutSec     int                 `mapstructure:"agent_timeout_sec"`
}

type WeaviateStoreConfig struct {
	Host         string       `mapstructure:"host"`
	APIKey       string       `mapstructure:"WEAVIATE_APIKEY"` // Changed to match env var
	Text2Vec     string       `mapstructure:"text2vec"`
	ModuleConfig ModuleConfig `mapstructure:"module_config"`
}

type ModuleConfig map[string]interface{}

type SearchConfig struct {
	TopK            int     `mapstructure:"top_k"`
	OverfetchFactor int     `mapstructure:"overfetch_factor"`
	DefaultAlpha    float64 `mapstructure:"default_alpha"`
	LexicalAlpha    float64 `mapstructure:"lexical_alpha"`
	SemanticAlpha   float64 `mapstructure:"semantic_alpha"`
	CallTimeoutSec  int     `mapstructure:"call_timeout_sec"`
}

type RerankConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"VOYAGE_API_KEY"`
	Model    string `mapstructure:"model"`
}

type SyncConfig struct {
	DropboxToken  string   `mapstructure:"DROPBOX_TOKEN"`
	DropboxRoot   string   `mapstructure:"dropbox_root"`
	VaultPath     string   `mapstructure:"vault_path"`
	VaultIgnore   []string `mapstructure:"vault_ignore"`
	MaxChunkSize  int      `mapstructure:"max_chunk_size"`
	OverlapSize   int      `mapstructure:"overlap_size"`
	RetryAttempts int      `mapstructure:"retry_attempts"`
	RetryBaseMs   int      `mapstructure:"retry_base_ms"`
}

type WebSearchConfig struct {
	APIKey   string `mapstructure:"GOOGLE_SEARCH_API_KEY"`
	EngineID string `mapstructure:"search_engine_id"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set up Viper to read from config file
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set up Viper to read from environment variables
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Bind environment variables
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("WEAVIATE_APIKEY")
	v.BindEnv("VOYAGE_API_KEY")
	v.BindEnv("DROPBOX_TOKEN")
	v.BindEnv("GOOGLE_SEARCH_API_KEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.SearchConfig.TopK == 0 {
		c.SearchConfig.TopK = 5
	}
	if c.SearchConfig.OverfetchFactor == 0 {
		c.SearchConfig.OverfetchFactor = 4
	}
	if c.SearchConfig.DefaultAlpha == 0 {
		c.SearchConfig.DefaultAlpha = 0.5
	}
	if c.SearchConfig.LexicalAlpha == 0 {
		c.SearchConfig.LexicalAlpha = 0.3
	}
	if c.SearchConfig.SemanticAlpha == 0 {
		c.SearchConfig.SemanticAlpha = 0.7
	}
	if c.SearchConfig.CallTimeoutSec == 0 {
		c.SearchConfig.CallTimeoutSec = 15
	}
	if c.SyncConfig.MaxChunkSize == 0 {
		c.SyncConfig.MaxChunkSize = 1000
	}
	if c.SyncConfig.OverlapSize == 0 {
		c.SyncConfig.OverlapSize = 100
	}
	if c.SyncConfig.RetryAttempts == 0 {
		c.SyncConfig.RetryAttempts = 3
	}
	if c.SyncConfig.RetryBaseMs == 0 {
		c.SyncConfig.RetryBaseMs = 500
	}
	if c.MaxContextTurns == 0 {
		c.MaxContextTurns = 8
	}
	if c.AgentTimeoutSec == 0 {
		c.AgentTimeoutSec = 30
	}
}
