package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendMongo  = "mongo"
	BackendDynamo = "dynamodb"
)

// Config holds all server configuration
type Config struct {
	Port            int
	TwilioPort      int    // Port for Twilio server (used when ServerType is "both")
	ServerType      string // "websocket", "twilio", or "both"
	Env             string
	LogLevel        string
	RedisURL        string
	RedisPassword   string
	MaxSessions     int
	SessionTimeout  time.Duration
	GeminiAPIKey    string
	AllowedOrigins  []string
	KeepAlivePeriod time.Duration
	MaxBufferSize   int // Maximum audio buffer size in bytes per session

	Store     StoreConfig
	Knowledge KnowledgeConfig
	ChatModel string
}

// StoreConfig selects and configures the booking backend.
type StoreConfig struct {
	Backend       string // "mongo" or "dynamodb"
	DailyCapacity int    // confirmed bookings allowed per date

	MongoURI      string
	MongoDatabase string

	AWSRegion        string
	DynamoEndpoint   string
	BookingsTable    string
	PendingTable     string
	CustomersTable   string
	ApprovalQueueURL string
}

// KnowledgeConfig configures policy search.
type KnowledgeConfig struct {
	Collection     string
	IndexName      string
	EmbeddingModel string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:            8080,
		TwilioPort:      8081,
		ServerType:      "websocket",
		Env:             "development",
		LogLevel:        "info",
		RedisURL:        "localhost:6379",
		MaxSessions:     100,
		SessionTimeout:  30 * time.Minute,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: 30 * time.Second,
		MaxBufferSize:   5 * 1024 * 1024, // 5MB default
		ChatModel:       "gemini-2.5-flash",
		Store: StoreConfig{
			Backend:        BackendMongo,
			DailyCapacity:  2,
			MongoDatabase:  "dealership_core",
			AWSRegion:      "us-east-1",
			BookingsTable:  "bookings",
			PendingTable:   "pending_requests",
			CustomersTable: "customers",
		},
		Knowledge: KnowledgeConfig{
			Collection:     "knowledge",
			IndexName:      "knowledge_vector_index",
			EmbeddingModel: "text-embedding-004",
		},
	}

	// Required: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &config.Port},
		{"TWILIO_PORT", &config.TwilioPort},
		{"MAX_SESSIONS", &config.MaxSessions},
		{"MAX_BUFFER_SIZE", &config.MaxBufferSize},
		{"DAILY_CAPACITY", &config.Store.DailyCapacity},
	}
	for _, v := range ints {
		if err := intFromEnv(v.key, v.dst); err != nil {
			return nil, err
		}
	}

	// SESSION_TIMEOUT is in minutes, KEEPALIVE_PERIOD in seconds
	if err := durationFromEnv("SESSION_TIMEOUT", time.Minute, &config.SessionTimeout); err != nil {
		return nil, err
	}
	if err := durationFromEnv("KEEPALIVE_PERIOD", time.Second, &config.KeepAlivePeriod); err != nil {
		return nil, err
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"ENV", &config.Env},
		{"LOG_LEVEL", &config.LogLevel},
		{"REDIS_URL", &config.RedisURL},
		{"REDIS_PASSWORD", &config.RedisPassword},
		{"CHAT_MODEL", &config.ChatModel},
		{"MONGO_URI", &config.Store.MongoURI},
		{"MONGO_DATABASE", &config.Store.MongoDatabase},
		{"AWS_REGION", &config.Store.AWSRegion},
		{"DYNAMODB_ENDPOINT", &config.Store.DynamoEndpoint},
		{"BOOKINGS_TABLE", &config.Store.BookingsTable},
		{"PENDING_TABLE", &config.Store.PendingTable},
		{"CUSTOMERS_TABLE", &config.Store.CustomersTable},
		{"APPROVAL_QUEUE_URL", &config.Store.ApprovalQueueURL},
		{"KNOWLEDGE_COLLECTION", &config.Knowledge.Collection},
		{"KNOWLEDGE_INDEX", &config.Knowledge.IndexName},
		{"EMBEDDING_MODEL", &config.Knowledge.EmbeddingModel},
	}
	for _, v := range strs {
		if s := os.Getenv(v.key); s != "" {
			*v.dst = s
		}
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: SERVER_TYPE ("websocket", "twilio", or "both")
	if serverType := os.Getenv("SERVER_TYPE"); serverType != "" {
		switch serverType {
		case "websocket", "twilio", "both":
			config.ServerType = serverType
		default:
			return nil, fmt.Errorf("invalid SERVER_TYPE: must be 'websocket', 'twilio', or 'both'")
		}
	}

	if backend := os.Getenv("STORE_BACKEND"); backend != "" {
		switch backend {
		case BackendMongo, BackendDynamo:
			config.Store.Backend = backend
		default:
			return nil, fmt.Errorf("invalid STORE_BACKEND: must be '%s' or '%s'", BackendMongo, BackendDynamo)
		}
	}

	if config.Store.DailyCapacity < 1 {
		return nil, fmt.Errorf("invalid DAILY_CAPACITY: must be at least 1")
	}

	return config, nil
}

// IsProduction reports whether the service runs with production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func intFromEnv(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func durationFromEnv(key string, unit time.Duration, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = time.Duration(n) * unit
	return nil
}
