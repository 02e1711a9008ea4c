package cmd

import (
	"context"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/northbuild/north-be/database"
	"github.com/northbuild/north-be/handler"
	"github.com/northbuild/north-be/middleware"
	"github.com/northbuild/north-be/repository"
	"github.com/northbuild/north-be/service"
)

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the query server",
	Long:  `Starts the HTTP server that answers queries over the indexed sources`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		weaviateDb, err := database.NewWeaviateStore(cfg.WeaviateStoreConfig)
		if err != nil {
			log.Fatalf("Failed to connect to Weaviate database: %v", err)
		}

		aiService, err := newAIService(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize AI provider: %v", err)
		}

		mongoClient := database.DefaultMongoClient
		if err := mongoClient.Ping(context.Background(), nil); err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		mongoDb := mongoClient.Database("north")

		// init repo
		userRepo := repository.NewUserRepo(mongoDb.Collection("users"))
		cursorRepo := repository.NewCursorRepo(mongoDb.Collection("cursors"))
		conversationRepo := repository.NewConversationRepo(mongoDb.Collection("conversations"))

		// init services
		userService := service.NewUserService(userRepo)
		var reranker service.Reranker
		if cfg.RerankConfig.APIKey != "" {
			reranker = service.NewVoyageReranker(cfg.RerankConfig.Endpoint, cfg.RerankConfig.APIKey, cfg.RerankConfig.Model)
		}
		searchService := service.NewSearchService(weaviateDb, aiService, reranker, cfg.SearchConfig)
		syncService, err := newSyncService(cfg, weaviateDb, aiService, cursorRepo)
		if err != nil {
			log.Fatalf("Failed to initialize sync: %v", err)
		}

		agents := []service.Agent{
			service.NewKnowledgeBaseAgent(searchService, aiService),
			service.NewDocumentAgent(searchService, aiService),
		}
		if cfg.WebSearchConfig.APIKey != "" {
			webAgent, err := service.NewWebSearchAgent(context.Background(), cfg.WebSearchConfig.APIKey, cfg.WebSearchConfig.EngineID)
			if err != nil {
				log.Fatalf("Failed to initialize web search: %v", err)
			}
			agents = append(agents, webAgent)
		}

		contextService := service.NewContextService(cfg.MaxContextTurns)
		orchestrator := service.NewOrchestratorService(aiService, agents, contextService, conversationRepo, agentTimeout(cfg))
		wsService := service.NewWebSocketService(orchestrator)

		// Initialize handlers
		corsHandler := handler.NewCorsHandler()
		loginHandler := handler.NewLoginHandler(userService)
		queryHandler := handler.NewQueryHandler(orchestrator)
		searchHandler := handler.NewSearchHandler(searchService)
		syncHandler := handler.NewSyncHandler(syncService)
		wsHandler := handler.NewWebSocketHandler(wsService)

		// Keep the vault index fresh while the server runs.
		if cfg.SyncConfig.VaultPath != "" {
			go func() {
				if err := syncService.Watch(context.Background()); err != nil {
					log.Println("vault watch stopped:", err)
				}
			}()
		}

		mux := http.NewServeMux()
		mux.Handle("/api/v1/login", loginHandler.HandleLogin())
		mux.Handle("/api/v1/query", middleware.AuthMiddleware(queryHandler.HandleQuery()))
		mux.Handle("/api/v1/context", middleware.AuthMiddleware(queryHandler.HandleClearContext()))
		mux.Handle("/api/v1/search", middleware.AuthMiddleware(searchHandler.HandleSearch()))
		mux.Handle("/ws/query", middleware.AuthMiddleware(wsHandler.HandleQuery()))
		mux.Handle("/api/v1/admin/sync", middleware.AdminAuthMiddleware(syncHandler.HandleSync()))
		mux.Handle("/api/v1/admin/reindex", middleware.AdminAuthMiddleware(syncHandler.HandleReindex()))
		mux.Handle("/api/v1/admin/sync/status", middleware.AdminAuthMiddleware(syncHandler.HandleStatus()))

		addr := ":" + cfg.Port
		log.Println("Listening on", addr)
		if err := http.ListenAndServe(addr, corsHandler.CorsMiddleware(mux)); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}
