package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"turion-be/pkg/lifecycle"
	"turion-be/pkg/llm/factory"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Ai       AIConfig
	Projects ProjectsConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	// Connection is a postgres DSN or a sqlite://path URL.
	Connection string
	LogLevel   string
}

type JWTConfig struct {
	Secret string
}

type AIConfig struct {
	PrimaryProvider  string
	FallbackProvider string
	Providers        factory.Settings
}

type ProjectsConfig struct {
	Dir             string
	PreviewDomain   string
	PortStart       int
	PortEnd         int
	ScaffoldTimeout time.Duration
	StopTimeout     time.Duration
}

type JobsConfig struct {
	SummarizeTopic string
}

func (c ProjectsConfig) PortRange() lifecycle.PortRange {
	return lifecycle.PortRange{Start: c.PortStart, End: c.PortEnd}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "logs/notification.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", "sqlite://turion.db"),
			LogLevel:   getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			PrimaryProvider:  getEnv("LLM_PROVIDER", "openai"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", "anthropic"),
			Providers: factory.Settings{
				OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
				OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
				AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
				AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
				GeminiKey:        getEnv("GOOGLE_GEMINI_API_KEY", ""),
				GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
				XAIKey:           getEnv("XAI_API_KEY", ""),
				XAIModel:         getEnv("XAI_MODEL", "grok-beta"),
				HuggingFaceKey:   getEnv("HUGGINGFACE_API_KEY", ""),
				HuggingFaceModel: getEnv("HUGGINGFACE_MODEL", "meta-llama/Llama-3.1-8B-Instruct"),
				OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
				OllamaModel:      getEnv("OLLAMA_MODEL", "llama3"),
			},
		},
		Projects: ProjectsConfig{
			Dir:             getEnv("PROJECTS_DIR", "./projects"),
			PreviewDomain:   getEnv("PREVIEW_DOMAIN", "preview.localhost"),
			PortStart:       getEnvAsInt("PROJECT_PORT_START", lifecycle.DefaultPortStart),
			PortEnd:         getEnvAsInt("PROJECT_PORT_END", lifecycle.DefaultPortEnd),
			ScaffoldTimeout: getEnvAsDuration("SCAFFOLD_TIMEOUT", 5*time.Minute),
			StopTimeout:     getEnvAsDuration("STOP_TIMEOUT", 10*time.Second),
		},
		Jobs: JobsConfig{
			SummarizeTopic: getEnv("SUMMARIZE_TOPIC_NAME", "SUMMARIZE_CONVERSATION"),
		},
	}
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
