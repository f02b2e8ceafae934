package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Otel     OtelConfig
	Ai       AIConfig
	Tuning   Tuning
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	JwtSecret          string
	NatsURL            string
	RedisURL           string
	ReviewerEmail      string
	ReviewBaseURL      string
	QueueWorkers       int
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type OtelConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type AIConfig struct {
	LLMProvider    string // "ollama", "openai", "anthropic", "gemini", "huggingface"
	LLMModel       string
	LLMBaseURL     string
	OpenAIKey      string
	AnthropicKey   string
	GeminiKey      string
	HuggingFaceKey string

	EmbeddingProvider string // "ollama", "gemini", "jina", "hashing"
	EmbeddingModel    string
	OllamaBaseURL     string
	JinaKey           string

	// VectorStoreURL selects the similarity store: "memory://" keeps chunks
	// in-process, a postgres DSN or "pgvector" uses the relational database.
	VectorStoreURL string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	tuning, err := LoadTuning(getEnv("TUNING_FILE", ""))
	if err != nil {
		log.Printf("Warning: tuning file ignored: %v", err)
		tuning = DefaultTuning()
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			ReviewerEmail:      getEnv("REVIEWER_EMAIL", ""),
			ReviewBaseURL:      getEnv("REVIEW_BASE_URL", "http://localhost:5173/review"),
			QueueWorkers:       getEnvAsInt("GENERATION_WORKERS", 4),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Tutoring Core"),
		},
		Otel: OtelConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-tutoring-be"),
		},
		Ai: AIConfig{
			LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", "ollama")),
			LLMModel:       getEnv("LLM_MODEL", ""),
			LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			GeminiKey:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFaceKey: getEnv("HUGGINGFACE_API_KEY", ""),

			EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", "ollama")),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			JinaKey:           getEnv("JINA_API_KEY", ""),

			VectorStoreURL: getEnv("VECTOR_STORE_URL", ""),
		},
		Tuning: tuning,
	}
}

// Readiness lists the required settings that are missing. An empty result
// means every AI endpoint can be served.
func (c *Config) Readiness() []string {
	var missing []string
	missing = append(missing, c.LLMMissing()...)
	missing = append(missing, c.RetrievalMissing()...)
	return missing
}

// LLMMissing lists missing settings for the selected text-generation provider.
func (c *Config) LLMMissing() []string {
	switch c.Ai.LLMProvider {
	case "openai":
		return requireEnv("OPENAI_API_KEY", c.Ai.OpenAIKey)
	case "anthropic":
		return requireEnv("ANTHROPIC_API_KEY", c.Ai.AnthropicKey)
	case "gemini":
		return requireEnv("GOOGLE_GEMINI_API_KEY", c.Ai.GeminiKey)
	case "huggingface":
		return requireEnv("HUGGINGFACE_API_KEY", c.Ai.HuggingFaceKey)
	case "ollama":
		return requireEnv("OLLAMA_BASE_URL", c.Ai.OllamaBaseURL)
	case "":
		return []string{"LLM_PROVIDER"}
	default:
		return []string{"LLM_PROVIDER (unsupported: " + c.Ai.LLMProvider + ")"}
	}
}

// RetrievalMissing lists missing settings for embeddings and the vector store.
func (c *Config) RetrievalMissing() []string {
	var missing []string
	switch c.Ai.EmbeddingProvider {
	case "gemini":
		missing = append(missing, requireEnv("GOOGLE_GEMINI_API_KEY", c.Ai.GeminiKey)...)
	case "jina":
		missing = append(missing, requireEnv("JINA_API_KEY", c.Ai.JinaKey)...)
	case "ollama":
		missing = append(missing, requireEnv("OLLAMA_BASE_URL", c.Ai.OllamaBaseURL)...)
	case "hashing":
	default:
		missing = append(missing, "EMBEDDING_PROVIDER")
	}

	if c.Ai.VectorStoreURL == "" {
		missing = append(missing, "VECTOR_STORE_URL")
	} else if c.UsesPgVector() && c.Database.Connection == "" && !strings.HasPrefix(c.Ai.VectorStoreURL, "postgres") {
		missing = append(missing, "DB_CONNECTION_STRING")
	}
	return missing
}

func (c *Config) UsesPgVector() bool {
	return c.Ai.VectorStoreURL != "" && !strings.HasPrefix(c.Ai.VectorStoreURL, "memory://")
}

func requireEnv(name, value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{name}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
