package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateSearch(cfg.Search); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateCodec(cfg.Codec); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

// validateSearch enforces spec.md section 6: "All numeric, positive".
func validateSearch(cfg SearchConfig) error {
	positive := map[string]int{
		"search.send_empty_delay_ms":             cfg.SendEmptyDelayMs,
		"search.sse_event_search_step":           cfg.SseEventSearchStep,
		"search.event_search_chunk_size":         cfg.EventSearchChunkSize,
		"search.keep_alive_timeout_ms":           cfg.KeepAliveTimeoutMs,
		"search.event_search_gap_ms":             cfg.EventSearchGapMs,
		"search.db_retry_delay_ms":               cfg.DbRetryDelayMs,
		"search.db_retry_max_attempts":           cfg.DbRetryMaxAttempts,
		"search.sse_search_delay_ms":             cfg.SseSearchDelayMs,
		"search.event_search_pipeline_buffer":    cfg.EventSearchPipelineBuffer,
		"search.message_search_pipeline_buffer":  cfg.MessageSearchPipelineBuffer,
		"search.message_flow_capacity":           cfg.MessageFlowCapacity,
		"search.max_messages_limit":              cfg.MaxMessagesLimit,
		"search.default_lookup_limit_days":       cfg.DefaultLookupLimitDays,
		"search.default_limit_for_parent":        cfg.DefaultLimitForParent,
		"search.default_result_count_limit":      cfg.DefaultResultCountLimit,
	}
	for field, v := range positive {
		if v <= 0 {
			return &ValidationError{Field: field, Message: fmt.Sprintf("must be positive, got %d", v)}
		}
	}
	return nil
}

func validateCodec(cfg CodecConfig) error {
	if cfg.Address == "" {
		return &ValidationError{Field: "codec.address", Message: "codec transport address is required"}
	}
	if cfg.ResponseTimeoutMs <= 0 {
		return &ValidationError{Field: "codec.response_timeout_ms", Message: "must be positive"}
	}
	if cfg.PendingBatchLimit <= 0 {
		return &ValidationError{Field: "codec.pending_batch_limit", Message: "must be positive"}
	}
	if cfg.RequestThreadPoolSize <= 0 {
		return &ValidationError{Field: "codec.request_thread_pool_size", Message: "must be positive"}
	}
	if cfg.CallbackThreadPoolSize <= 0 {
		return &ValidationError{Field: "codec.callback_thread_pool_size", Message: "must be positive"}
	}
	if cfg.AdmissionPollMs <= 0 {
		return &ValidationError{Field: "codec.admission_poll_ms", Message: "must be positive"}
	}
	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if err := validateMongoDB(cfg.MongoDB); err != nil {
		return err
	}

	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.TTLSeconds < 0 {
		return &ValidationError{
			Field:   "database.redis.ttl_seconds",
			Message: "TTL must be non-negative",
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}
