// Package config loads the store provisioner's configuration via Viper,
// merging config files, environment variables, and built-in defaults.
package config

// Config represents the provisioner's runtime configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Helm      HelmConfig      `mapstructure:"helm"`
	Kubectl   KubectlConfig   `mapstructure:"kubectl"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Server    ServerConfig    `mapstructure:"server"`
}

// AppConfig identifies the running process for logs and the admission API.
type AppConfig struct {
	Name               string `mapstructure:"name"`
	Environment        string `mapstructure:"environment"`
	LocalDomain        string `mapstructure:"local_domain"`
	DefaultStoreEngine string `mapstructure:"default_store_engine"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// WorkerConfig configures the job engine's polling and leasing behavior.
type WorkerConfig struct {
	ID              string `mapstructure:"id"`
	PollSeconds     int    `mapstructure:"poll_seconds"`
	LeaseSeconds    int    `mapstructure:"lease_seconds"`
	MaxConcurrency  int    `mapstructure:"max_concurrency"`
	MaxAttempts     int    `mapstructure:"max_attempts"`
	MaxActiveStores int    `mapstructure:"max_active_stores"`
}

// HelmConfig configures how the engine invokes the package manager binary.
type HelmConfig struct {
	Binary         string `mapstructure:"binary"`
	ChartPath      string `mapstructure:"chart_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// KubectlConfig configures how the engine invokes the cluster CLI binary.
type KubectlConfig struct {
	Binary               string `mapstructure:"binary"`
	DeleteTimeoutSeconds int    `mapstructure:"delete_timeout_seconds"`
}

// ReadinessConfig configures the HTTP readiness probe used after provisioning.
type ReadinessConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	PollSeconds    int `mapstructure:"poll_seconds"`
}

// RateLimitConfig configures the admission rate limiter.
type RateLimitConfig struct {
	WindowSeconds         int `mapstructure:"window_seconds"`
	CreateDeletePerWindow int `mapstructure:"create_delete_per_window"`
}

// ServerConfig configures the admission HTTP API.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}
