package bootstrap

import (
	"log"
	"os"

	"ai-docqa-be/internal/config"
	"ai-docqa-be/internal/controller"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/service"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/embedding/jina"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/llm/factory"
	"ai-docqa-be/pkg/retrieval/coordinator"
	"ai-docqa-be/pkg/retrieval/pool"
	"ai-docqa-be/pkg/retrieval/session"
	"ai-docqa-be/pkg/retrieval/tool"
	"ai-docqa-be/pkg/vectorstore"

	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	RetrievalController controller.IRetrievalController

	// Exposed for tooling and tests
	RetrievalService service.IRetrievalService
	Pool             *pool.Pool
	Logger           logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	coreLogger := log.New(os.Stdout, "[retrieval] ", log.LstdFlags)

	// 2. Embedding Provider based on Config
	var embeddingProvider embedding.EmbeddingProvider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	case "jina":
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaApiKey)
		log.Printf("[INFO] Using Embedding Provider: JINA")
	default:
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiApiKey)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	// 3. LLM Provider
	apiKey := cfg.Ai.HuggingFaceApiKey
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.LLMBaseURL, apiKey)
	if err != nil {
		log.Panicf("Unable to initialize LLM provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	inferencer := llm.NewSessionClient(llmProvider)

	// 4. Retrieval Core
	storeFactory := vectorstore.NewFactory(db, embeddingProvider)
	documentPool := pool.New(storeFactory, coreLogger)

	registry := tool.NewRegistry()
	runner := session.NewRunner(registry, inferencer, documentPool, session.Config{
		HistoryWindow: cfg.Retrieval.HistoryWindow,
		TopK:          cfg.Retrieval.TopK,
	}, coreLogger)

	coord := coordinator.New(runner, documentPool, coreLogger)

	// 5. Services
	retrievalService := service.NewRetrievalService(runner, coord, documentPool, cfg, sysLogger)

	// 6. Controllers
	return &Container{
		RetrievalController: controller.NewRetrievalController(retrievalService, sysLogger),
		RetrievalService:    retrievalService,
		Pool:                documentPool,
		Logger:              sysLogger,
	}
}
