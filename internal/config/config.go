package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	Logging   LoggingConfig
	EventBus  EventBusConfig
	Signing   SigningConfig
	Ledger    LedgerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Documents DocumentConfig
	Tracing   TracingConfig
	Invoice   InvoiceConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

type WorkerConfig struct {
	PoolSize   int
	MaxRetries int
}

type LoggingConfig struct {
	Level string
}

type EventBusConfig struct {
	ChannelBufferSize int
}

type SigningConfig struct {
	Timeout        time.Duration
	MirrorNodeURL  string
	KeyCacheTTL    time.Duration
	StaticKeys     map[string]string
	NodeAccountID  string
	TxValidFor     time.Duration
	MaxFeeTinybars int64
}

type LedgerConfig struct {
	GatewayURL      string
	APIKey          string
	Network         string
	OperatorAccount string
	CallTimeout     time.Duration
	MaxAttempts     int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	NFTTokenID      string
	TopicID         string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type RedisConfig struct {
	URL          string
	Stream       string
	StreamMaxLen int64
}

type DocumentConfig struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

type InvoiceConfig struct {
	OverdueSweepSchedule string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Worker: WorkerConfig{
			PoolSize:   getIntEnv("WORKER_POOL_SIZE", 10),
			MaxRetries: getIntEnv("MAX_RETRIES", 5),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		EventBus: EventBusConfig{
			ChannelBufferSize: getIntEnv("EVENT_CHANNEL_BUFFER_SIZE", 1000),
		},
		Signing: SigningConfig{
			Timeout:        getDurationEnv("SIGNING_TIMEOUT", 45*time.Second),
			MirrorNodeURL:  getEnv("MIRROR_NODE_URL", ""),
			KeyCacheTTL:    getDurationEnv("KEY_CACHE_TTL", 5*time.Minute),
			StaticKeys:     getMapEnv("SIGNER_PUBLIC_KEYS"),
			NodeAccountID:  getEnv("NODE_ACCOUNT_ID", "0.0.3"),
			TxValidFor:     getDurationEnv("TX_VALID_DURATION", 120*time.Second),
			MaxFeeTinybars: int64(getIntEnv("TX_MAX_FEE_TINYBARS", 2_000_000_000)),
		},
		Ledger: LedgerConfig{
			GatewayURL:      getEnv("LEDGER_GATEWAY_URL", ""),
			APIKey:          getEnv("LEDGER_API_KEY", ""),
			Network:         getEnv("LEDGER_NETWORK", "testnet"),
			OperatorAccount: getEnv("OPERATOR_ACCOUNT_ID", "0.0.2"),
			CallTimeout:     getDurationEnv("LEDGER_CALL_TIMEOUT", 10*time.Second),
			MaxAttempts:     getIntEnv("LEDGER_MAX_ATTEMPTS", 3),
			RetryBaseDelay:  getDurationEnv("LEDGER_RETRY_BASE_DELAY", 500*time.Millisecond),
			RetryMaxDelay:   getDurationEnv("LEDGER_RETRY_MAX_DELAY", 10*time.Second),
			RateLimitRPS:    getFloatEnv("LEDGER_RATE_LIMIT_RPS", 10),
			RateLimitBurst:  getIntEnv("LEDGER_RATE_LIMIT_BURST", 20),
			NFTTokenID:      getEnv("NFT_TOKEN_ID", "0.0.5005"),
			TopicID:         getEnv("TOPIC_ID", "0.0.6006"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			Stream:       getEnv("REDIS_PROOF_STREAM", "proofs"),
			StreamMaxLen: int64(getIntEnv("REDIS_STREAM_MAXLEN", 100000)),
		},
		Documents: DocumentConfig{
			Bucket:   getEnv("S3_BUCKET", ""),
			Region:   getEnv("S3_REGION", "us-east-1"),
			Endpoint: getEnv("S3_ENDPOINT", ""),
			Prefix:   getEnv("S3_PREFIX", "invoices/"),
		},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_ENDPOINT", ""),
			Insecure:    getBoolEnv("OTEL_INSECURE", true),
			SampleRatio: getFloatEnv("OTEL_SAMPLE_RATIO", 1.0),
		},
		Invoice: InvoiceConfig{
			OverdueSweepSchedule: getEnv("OVERDUE_SWEEP_SCHEDULE", "@every 1h"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getFloatEnv(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %g", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getBoolEnv(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// getMapEnv reads "k1=v1,k2=v2". Malformed pairs are skipped.
func getMapEnv(key string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		result[k] = v
	}
	return result
}
