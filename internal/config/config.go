package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Search         SearchConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Codec          CodecConfig
	Logging        LoggingConfig
	FilterPreset   FilterPresetConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
	RateLimit      RateLimitConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

// SearchConfig holds the numeric tunables named in spec.md section 6.
type SearchConfig struct {
	SendEmptyDelayMs            int `mapstructure:"send_empty_delay_ms"`
	SseEventSearchStep          int `mapstructure:"sse_event_search_step"`
	EventSearchChunkSize        int `mapstructure:"event_search_chunk_size"`
	KeepAliveTimeoutMs          int `mapstructure:"keep_alive_timeout_ms"`
	EventSearchGapMs            int `mapstructure:"event_search_gap_ms"`
	DbRetryDelayMs              int `mapstructure:"db_retry_delay_ms"`
	DbRetryMaxAttempts          int `mapstructure:"db_retry_max_attempts"`
	SseSearchDelayMs            int `mapstructure:"sse_search_delay_ms"`
	EventSearchPipelineBuffer   int `mapstructure:"event_search_pipeline_buffer"`
	MessageSearchPipelineBuffer int `mapstructure:"message_search_pipeline_buffer"`
	MessageFlowCapacity         int `mapstructure:"message_flow_capacity"`
	MaxMessagesLimit            int `mapstructure:"max_messages_limit"`
	DefaultLookupLimitDays      int `mapstructure:"default_lookup_limit_days"`
	DefaultLimitForParent       int `mapstructure:"default_limit_for_parent"`
	DefaultResultCountLimit     int `mapstructure:"default_result_count_limit"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// BrokerConfig backs the search-audit publisher (internal/audit) only;
// this service never consumes a domain topic.
type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	AuditTopic string   `mapstructure:"audit_topic"`
	DLQTopic   string   `mapstructure:"dlq_topic"`
}

// CodecConfig configures the external decoder RPC used by CodecBroker.
type CodecConfig struct {
	Address                string `mapstructure:"address"`
	ResponseTimeoutMs      int    `mapstructure:"response_timeout_ms"`
	PendingBatchLimit      int    `mapstructure:"pending_batch_limit"`
	UsePinAttributes       bool   `mapstructure:"use_pin_attributes"`
	RequestThreadPoolSize  int    `mapstructure:"request_thread_pool_size"`
	CallbackThreadPoolSize int    `mapstructure:"callback_thread_pool_size"`
	AdmissionPollMs        int    `mapstructure:"admission_poll_ms"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FilterPresetConfig configures the administrative named-preset layer
// (internal/filterpreset), additive on top of the closed-set FilterPipeline.
type FilterPresetConfig struct {
	Reload ReloadConfig `mapstructure:"reload"`
}

type ReloadConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
