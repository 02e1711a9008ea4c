package cmd

import (
	"errors"
	"time"

	"github.com/northbuild/north-be/config"
	"github.com/northbuild/north-be/connector"
	"github.com/northbuild/north-be/database"
	"github.com/northbuild/north-be/repository"
	"github.com/northbuild/north-be/service"
	"github.com/northbuild/north-be/types"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = "config/config.yaml"
	}
	return config.LoadConfig(path)
}

func newAIService(cfg *config.Config) (service.AIService, error) {
	if cfg.AIProvider == "gemini" {
		return service.NewGeminiService(cfg.GeminiAPIKeys, cfg.Model, cfg.EmbeddingModel)
	}
	return service.NewOpenAIService(cfg.AIEndpoint, cfg.OpenAIAPIKey, cfg.Model, cfg.EmbeddingModel), nil
}

func newSources(cfg *config.Config) []connector.Source {
	var sources []connector.Source
	if cfg.SyncConfig.VaultPath != "" {
		sources = append(sources, connector.NewVaultSource(cfg.SyncConfig.VaultPath, cfg.SyncConfig.VaultIgnore))
	}
	if cfg.SyncConfig.DropboxToken != "" {
		sources = append(sources, connector.NewDropboxSource(cfg.SyncConfig.DropboxToken, cfg.SyncConfig.DropboxRoot))
	}
	return sources
}

func newSyncService(cfg *config.Config, store *database.WeaviateStore, aiService service.AIService, cursors repository.CursorRepo) (*service.SyncService, error) {
	sources := newSources(cfg)
	if len(sources) == 0 {
		return nil, errors.New("no sources configured: set vault_path or DROPBOX_TOKEN")
	}
	documentService := service.NewDocumentService(types.DocumentServiceConfig{
		MaxChunkSize: cfg.SyncConfig.MaxChunkSize,
		OverlapSize:  cfg.SyncConfig.OverlapSize,
	})
	// With a server-side vectorizer configured, Weaviate embeds on
	// insert and the client never calls the embedding API.
	var embedder service.AIService
	if cfg.WeaviateStoreConfig.Text2Vec == "" {
		embedder = aiService
	}
	return service.NewSyncService(sources, store, cursors, documentService, embedder, cfg.SyncConfig), nil
}

func agentTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.AgentTimeoutSec) * time.Second
}
