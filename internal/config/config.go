package config

import "time"

type Config struct {
	Env         string       `yaml:"env" env:"APP_ENV"`
	Port        int          `yaml:"port" env:"PORT"`
	DatabaseURL string       `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string       `yaml:"redis_url" env:"REDIS_URL"`
	Logger      LoggerConfig `yaml:"logger"`
	LogLevel    string       `yaml:"log_level" env:"LOG_LEVEL"`

	AdminJWTKey string `yaml:"admin_jwt_key" env:"ADMIN_JWT_KEY"`

	Reputation ReputationConfig `yaml:"reputation"`
	Engine     EngineConfig     `yaml:"engine"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	CORS       CORSConfig       `yaml:"cors"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Secrets    SecretsConfig    `yaml:"secrets"`
}

type LoggerConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// ReputationConfig controls the upstream IP lookup and the in-process
// reputation cache that shields it.
type ReputationConfig struct {
	LookupURL     string        `yaml:"lookup_url"`
	LookupToken   string        `yaml:"lookup_token" env:"REPUTATION_LOOKUP_TOKEN"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`

	CacheSize       int           `yaml:"cache_size"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`

	// Extra ASNs merged into the built-in carrier / datacenter sets.
	ExtraCarrierASNs    []int `yaml:"extra_carrier_asns"`
	ExtraDatacenterASNs []int `yaml:"extra_datacenter_asns"`
}

type EngineConfig struct {
	// Hard ceiling for one classification call, including the IP lookup.
	Deadline time.Duration `yaml:"deadline"`
}

type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RatePerInterval int           `yaml:"rate_per_interval"`
	Interval        time.Duration `yaml:"interval"`
	Burst           int           `yaml:"burst"`
	KeyPrefix       string        `yaml:"key_prefix"`
	BucketTTL       time.Duration `yaml:"bucket_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type TelemetryConfig struct {
	Kafka KafkaAuditConfig `yaml:"kafka"`
}

type KafkaAuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	TopicChecks   string        `yaml:"topic_checks"`
	BatchSize     int           `yaml:"batch_size"`
	FlushEvery    time.Duration `yaml:"flush_every"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	TLS           bool          `yaml:"tls"`
}

// SecretsConfig selects where secret-valued settings are resolved from at
// startup. Provider "" leaves values as loaded from YAML/env.
type SecretsConfig struct {
	Provider          string `yaml:"provider"` // "ssm" | "secretsmanager" | ""
	LookupTokenRef    string `yaml:"lookup_token_ref"`
	AdminJWTKeyRef    string `yaml:"admin_jwt_key_ref"`
	DecryptParameters bool   `yaml:"decrypt_parameters"`
}
