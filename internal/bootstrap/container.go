package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/controller"
	"ai-tutoring-be/internal/handler"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/pkg/mailer"
	"ai-tutoring-be/internal/pkg/serverutils"
	"ai-tutoring-be/internal/repository/memory"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/internal/service"
	"ai-tutoring-be/internal/websocket"
	"ai-tutoring-be/pkg/ai/diagnostic"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/ai/generation"
	"ai-tutoring-be/pkg/ai/tutor"
	"ai-tutoring-be/pkg/database"
	embedfactory "ai-tutoring-be/pkg/embedding/factory"
	"ai-tutoring-be/pkg/events"
	"ai-tutoring-be/pkg/llm/factory"
	pktNats "ai-tutoring-be/pkg/nats"
	"ai-tutoring-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const GenerationJobsTopic = "generation_jobs"

type Container struct {
	// Controllers
	GeneratorController controller.IGeneratorController
	TutorController     controller.ITutorController
	AnalyticsController controller.IAnalyticsController
	HealthController    controller.IHealthController

	// Background workers, run by main
	ConsumerService service.IConsumerService

	// WebSockets
	JobEventsHandler *handler.JobEventsHandler
	WebSocketHub     *websocket.Hub

	Logger  logger.ILogger
	closers []func()
}

// NewContainer wires the application. Missing AI settings do not fail
// startup: the affected gateways report not-configured per request.
func NewContainer(ctx context.Context, cfg *config.Config, log logger.ILogger) (*Container, error) {
	// 1. Persistence
	var db *gorm.DB
	var uowFactory unitofwork.RepositoryFactory
	if cfg.Database.Connection != "" {
		var err error
		db, err = database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		uowFactory = unitofwork.NewRepositoryFactory(db)
	} else {
		log.Warn("Bootstrap", "DB_CONNECTION_STRING not set, using in-memory repositories", nil)
		uowFactory = unitofwork.NewMemoryRepositoryFactory(memory.NewStore())
	}

	c := &Container{Logger: log}

	// 2. AI gateways
	retrievalGateway, err := NewRetrieval(cfg, db, log)
	if err != nil {
		return nil, err
	}

	provider, providerErr := factory.NewLLMProvider(ctx, factory.ProviderConfig{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  llmBaseURL(cfg),
		APIKey:   llmKey(cfg),
	})
	if providerErr != nil {
		log.Warn("Bootstrap", "LLM provider not configured", map[string]interface{}{"error": providerErr.Error()})
	} else {
		log.Info("Bootstrap", "LLM provider ready", map[string]interface{}{"provider": provider.Name(), "model": cfg.Ai.LLMModel})
	}

	tuning := cfg.Tuning
	modelGateway := gateway.NewModelGateway(provider, providerErr, gateway.RetryPolicy{
		MaxAttempts: tuning.Model.MaxAttempts,
		InitialWait: tuning.Model.InitialWait(),
		MaxWait:     tuning.Model.MaxWait(),
		Multiplier:  tuning.Model.Multiplier,
	}, tuning.Model.RequestsPerMinute, log)

	// 3. Infrastructure
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Warn("Bootstrap", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Bootstrap", "Failed to connect to Redis, job events stay local", map[string]interface{}{"error": err.Error()})
			_ = rdb.Close()
			rdb = nil
		} else {
			c.closers = append(c.closers, func() { _ = rdb.Close() })
		}
	}
	hub := websocket.NewHub(rdb, log)

	var eventPublisher events.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(ctx, cfg.App.NatsURL)
		if err != nil {
			log.Warn("Bootstrap", "Failed to connect to NATS, domain events are dropped", map[string]interface{}{"error": err.Error()})
		} else {
			eventPublisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.App.ReviewBaseURL,
		log,
	)

	// 4. Services
	tracker := service.NewJobTracker(uowFactory, hub)
	pipeline := generation.NewPipeline(modelGateway, retrievalGateway, tracker, tuning, log)
	engine := tutor.NewEngine(modelGateway, retrievalGateway, tuning, log)
	analyzer := diagnostic.NewAnalyzer(modelGateway, tuning, log)

	publisherService := service.NewPublisherService(GenerationJobsTopic, pubSub)
	generatorService := service.NewGeneratorService(
		uowFactory,
		publisherService,
		eventPublisher,
		hub,
		modelGateway,
		retrievalGateway,
		cfg.App.ReviewerEmail,
		log,
	)
	consumerService := service.NewConsumerService(
		pubSub,
		GenerationJobsTopic,
		cfg.App.QueueWorkers,
		uowFactory,
		pipeline,
		emailService,
		eventPublisher,
		log,
	)
	tutorService := service.NewTutorService(uowFactory, engine, modelGateway, eventPublisher, log)
	analyticsService := service.NewAnalyticsService(uowFactory, analyzer, modelGateway, eventPublisher, log)

	// 5. Controllers
	guard := serverutils.NewJwtMiddleware(cfg.App.JwtSecret)
	if cfg.App.JwtSecret == "" {
		log.Warn("Bootstrap", "JWT_SECRET not set, API routes are unauthenticated", nil)
	}

	c.GeneratorController = controller.NewGeneratorController(generatorService, guard)
	c.TutorController = controller.NewTutorController(tutorService, guard)
	c.AnalyticsController = controller.NewAnalyticsController(analyticsService, guard)
	c.HealthController = controller.NewHealthController(cfg)
	c.JobEventsHandler = handler.NewJobEventsHandler(generatorService, hub, guard, log)
	c.ConsumerService = consumerService
	c.WebSocketHub = hub

	if missing := cfg.Readiness(); len(missing) > 0 {
		log.Warn("Bootstrap", "AI endpoints degraded", map[string]interface{}{"missing": missing})
	}
	return c, nil
}

// NewRetrieval builds the retrieval gateway from the embedding and vector
// store settings. db is reused for pgvector when VECTOR_STORE_URL does not
// carry its own DSN.
func NewRetrieval(cfg *config.Config, db *gorm.DB, log logger.ILogger) (gateway.RetrievalGateway, error) {
	store, err := newVectorStore(cfg, db)
	if err != nil {
		return nil, err
	}

	embedder, embedderErr := embedfactory.NewEmbeddingProvider(embedfactory.ProviderConfig{
		Provider: cfg.Ai.EmbeddingProvider,
		Model:    cfg.Ai.EmbeddingModel,
		BaseURL:  cfg.Ai.OllamaBaseURL,
		APIKey:   embeddingKey(cfg),
	})
	if embedderErr != nil {
		log.Warn("Bootstrap", "Embedding provider not configured", map[string]interface{}{"error": embedderErr.Error()})
	}

	return gateway.NewRetrievalGateway(store, embedder, embedderErr, gateway.RetrievalOptions{
		MinScore: cfg.Tuning.Retrieval.MinScore,
		CacheTTL: cfg.Tuning.Retrieval.CacheTTL(),
	}, log), nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newVectorStore(cfg *config.Config, db *gorm.DB) (vectorstore.Store, error) {
	url := cfg.Ai.VectorStoreURL
	switch {
	case url == "":
		return nil, nil
	case strings.HasPrefix(url, "memory://"):
		return vectorstore.NewMemoryStore(), nil
	case strings.HasPrefix(url, "postgres"):
		vdb, err := database.NewGormDBFromDSN(url)
		if err != nil {
			return nil, fmt.Errorf("connect vector store: %w", err)
		}
		return vectorstore.NewPgVectorStore(vdb), nil
	case db != nil:
		return vectorstore.NewPgVectorStore(db), nil
	default:
		// pgvector without a database: the retrieval gateway reports it as missing config.
		return nil, nil
	}
}

func llmKey(cfg *config.Config) string {
	switch cfg.Ai.LLMProvider {
	case "openai":
		return cfg.Ai.OpenAIKey
	case "anthropic":
		return cfg.Ai.AnthropicKey
	case "gemini":
		return cfg.Ai.GeminiKey
	case "huggingface":
		return cfg.Ai.HuggingFaceKey
	}
	return ""
}

func llmBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMBaseURL != "" {
		return cfg.Ai.LLMBaseURL
	}
	if cfg.Ai.LLMProvider == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return ""
}

func embeddingKey(cfg *config.Config) string {
	switch cfg.Ai.EmbeddingProvider {
	case "gemini":
		return cfg.Ai.GeminiKey
	case "jina":
		return cfg.Ai.JinaKey
	}
	return ""
}
