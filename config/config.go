package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Recording     RecordingConfig     `yaml:"recording"`
	Visualizer    VisualizerConfig    `yaml:"visualizer"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Orders        OrdersConfig        `yaml:"orders"`
	Feed          FeedConfig          `yaml:"feed"`
	Board         BoardConfig         `yaml:"board"`
	Events        EventsConfig        `yaml:"events"`
	Push          PushConfig          `yaml:"push"`
	WorkerPool    WorkerPoolConfig    `yaml:"worker_pool"`
	Archive       ArchiveConfig       `yaml:"archive"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                int     `yaml:"port"`
	RateLimitPerSec     float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst      int     `yaml:"rate_limit_burst"`
	TranscribePerSec    float64 `yaml:"transcribe_rate_limit_per_sec"`
	CacheTTLSeconds     int     `yaml:"cache_ttl_seconds"`
	ShutdownTimeoutSecs int     `yaml:"shutdown_timeout_seconds"`
	MaxUploadBytes      int64   `yaml:"max_upload_bytes"`
}

// CacheTTL returns the GET cache expiry.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stdout, stderr or a file path
}

// RecordingConfig holds the capture session settings.
type RecordingConfig struct {
	MaxDurationMs         int  `yaml:"max_duration_ms"`
	MinDurationMs         int  `yaml:"min_duration_ms"`
	SessionTimeoutSeconds int  `yaml:"session_timeout_seconds"`
	CleanupIntervalSecs   int  `yaml:"cleanup_interval_seconds"`
	SampleRate            int  `yaml:"sample_rate"`
	ChannelCount          int  `yaml:"channel_count"`
	EchoCancellation      bool `yaml:"echo_cancellation"`
	NoiseSuppression      bool `yaml:"noise_suppression"`
	AutoGainControl       bool `yaml:"auto_gain_control"`
	MaxBytes              int  `yaml:"max_bytes"`
}

// MaxDuration returns the auto-stop threshold.
func (r RecordingConfig) MaxDuration() time.Duration {
	return time.Duration(r.MaxDurationMs) * time.Millisecond
}

// MinDuration returns the shortest recording that is submitted.
func (r RecordingConfig) MinDuration() time.Duration {
	return time.Duration(r.MinDurationMs) * time.Millisecond
}

// SessionTimeout returns how long an idle session is kept.
func (r RecordingConfig) SessionTimeout() time.Duration {
	return time.Duration(r.SessionTimeoutSeconds) * time.Second
}

// CleanupInterval returns the period of the session sweeper.
func (r RecordingConfig) CleanupInterval() time.Duration {
	return time.Duration(r.CleanupIntervalSecs) * time.Second
}

// VisualizerConfig holds the FFT analyser settings.
type VisualizerConfig struct {
	FFTSize   int `yaml:"fft_size"`
	Bars      int `yaml:"bars"`
	MaxHeight int `yaml:"max_height"`
}

// TranscriptionConfig holds the speech-to-text settings.
type TranscriptionConfig struct {
	Provider       string `yaml:"provider"` // http or mock
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	MaxConcurrent  int    `yaml:"max_concurrent"`
	Format         string `yaml:"format"` // webm or wav
	Language       string `yaml:"language"`
}

// Timeout returns the per-request timeout.
func (t TranscriptionConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// OrdersConfig controls how transcripts become orders.
type OrdersConfig struct {
	Sink         string `yaml:"sink"` // store, pending or remote
	Mode         string `yaml:"mode"` // split or verbatim
	RemoteURL    string `yaml:"remote_url"`
	PendingPath  string `yaml:"pending_path"`
	RequireTable bool   `yaml:"require_table"`
	DefaultType  string `yaml:"default_type"`
}

// FeedConfig selects the order feed transport.
type FeedConfig struct {
	Transport       string `yaml:"transport"` // poll, storage, amqp or pgnotify
	IntervalSeconds int    `yaml:"interval_seconds"`
	Queue           string `yaml:"queue"`
}

// Interval returns the polling period.
func (f FeedConfig) Interval() time.Duration {
	return time.Duration(f.IntervalSeconds) * time.Second
}

// BoardConfig holds kitchen and expo view settings.
type BoardConfig struct {
	ExpoDeliveredWindowMinutes int `yaml:"expo_delivered_window_minutes"`
	ListLimit                  int `yaml:"list_limit"`
}

// ExpoDeliveredWindow returns how long delivered orders stay on the expo board.
func (b BoardConfig) ExpoDeliveredWindow() time.Duration {
	return time.Duration(b.ExpoDeliveredWindowMinutes) * time.Minute
}

// EventsConfig holds the order change publishers.
type EventsConfig struct {
	AMQP     AMQPConfig     `yaml:"amqp"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	PGNotify PGNotifyConfig `yaml:"pgnotify"`
}

// AMQPConfig configures the RabbitMQ publisher and consumer.
type AMQPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// PGNotifyConfig configures LISTEN/NOTIFY change events.
type PGNotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Channel string `yaml:"channel"`
}

// ArchiveConfig configures the S3 recording archive.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default filled in and no file behind it.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyEnv lets secrets and deployment endpoints come from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("TRANSCRIPTION_API_KEY"); v != "" {
		c.Transcription.APIKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		c.Push.PrivateKey = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		c.Events.AMQP.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 5
	}
	if c.Server.TranscribePerSec <= 0 {
		c.Server.TranscribePerSec = 1
	}
	if c.Server.CacheTTLSeconds <= 0 {
		c.Server.CacheTTLSeconds = 300
	}
	if c.Server.ShutdownTimeoutSecs <= 0 {
		c.Server.ShutdownTimeoutSecs = 5
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 10 << 20
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Recording.MaxDurationMs <= 0 {
		c.Recording.MaxDurationMs = 30000
	}
	if c.Recording.SessionTimeoutSeconds <= 0 {
		c.Recording.SessionTimeoutSeconds = 300
	}
	if c.Recording.CleanupIntervalSecs <= 0 {
		c.Recording.CleanupIntervalSecs = 30
	}
	if c.Recording.SampleRate <= 0 {
		c.Recording.SampleRate = 44100
	}
	if c.Recording.ChannelCount <= 0 {
		c.Recording.ChannelCount = 1
	}
	if c.Recording.MaxBytes <= 0 {
		c.Recording.MaxBytes = 8 << 20
	}
	// Constraint flags default to on; a YAML file that names none of them gets the browser defaults.
	if !c.Recording.EchoCancellation && !c.Recording.NoiseSuppression && !c.Recording.AutoGainControl {
		c.Recording.EchoCancellation = true
		c.Recording.NoiseSuppression = true
		c.Recording.AutoGainControl = true
	}

	if c.Visualizer.FFTSize <= 0 {
		c.Visualizer.FFTSize = 256
	}
	if c.Visualizer.Bars <= 0 {
		c.Visualizer.Bars = 32
	}
	if c.Visualizer.MaxHeight <= 0 {
		c.Visualizer.MaxHeight = 100
	}

	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "mock"
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = 30
	}
	if c.Transcription.MaxConcurrent <= 0 {
		c.Transcription.MaxConcurrent = 4
	}
	if c.Transcription.Format == "" {
		c.Transcription.Format = "webm"
	}

	if c.Orders.Sink == "" {
		c.Orders.Sink = "store"
	}
	if c.Orders.Mode == "" {
		c.Orders.Mode = "split"
	}
	if c.Orders.PendingPath == "" {
		c.Orders.PendingPath = "./data/pendingOrders.json"
	}
	if c.Orders.DefaultType == "" {
		c.Orders.DefaultType = "food"
	}

	if c.Feed.Transport == "" {
		c.Feed.Transport = "poll"
	}
	if c.Feed.IntervalSeconds <= 0 {
		c.Feed.IntervalSeconds = 5
	}
	if c.Feed.Queue == "" {
		c.Feed.Queue = "orders.feed"
	}

	if c.Board.ExpoDeliveredWindowMinutes <= 0 {
		c.Board.ExpoDeliveredWindowMinutes = 30
	}
	if c.Board.ListLimit <= 0 {
		c.Board.ListLimit = 200
	}

	if c.Events.AMQP.Exchange == "" {
		c.Events.AMQP.Exchange = "orders_topic"
	}
	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = "order-events"
	}
	if c.Events.PGNotify.Channel == "" {
		c.Events.PGNotify.Channel = "order_changes"
	}
	if c.Events.PGNotify.DSN == "" {
		c.Events.PGNotify.DSN = c.Database.DSN
	}

	if c.Push.TTL <= 0 {
		c.Push.TTL = 3600
	}

	if c.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		c.WorkerPool.Size = 1
	}

	if c.Archive.Prefix == "" {
		c.Archive.Prefix = "recordings"
	}
}

// Validate checks every section for values the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (or set DATABASE_URL)")
	}

	if c.Recording.MinDurationMs < 0 {
		return fmt.Errorf("recording.min_duration_ms cannot be negative")
	}
	if c.Recording.MinDurationMs >= c.Recording.MaxDurationMs {
		return fmt.Errorf("recording.min_duration_ms (%d) must be below max_duration_ms (%d)",
			c.Recording.MinDurationMs, c.Recording.MaxDurationMs)
	}

	if c.Visualizer.FFTSize&(c.Visualizer.FFTSize-1) != 0 {
		return fmt.Errorf("visualizer.fft_size must be a power of two, got %d", c.Visualizer.FFTSize)
	}
	if c.Visualizer.Bars > c.Visualizer.FFTSize/2 {
		return fmt.Errorf("visualizer.bars (%d) cannot exceed fft_size/2 (%d)", c.Visualizer.Bars, c.Visualizer.FFTSize/2)
	}

	switch c.Transcription.Provider {
	case "mock":
	case "http":
		if c.Transcription.Endpoint == "" {
			return fmt.Errorf("transcription.endpoint is required for the http provider")
		}
	default:
		return fmt.Errorf("transcription.provider must be http or mock, got %q", c.Transcription.Provider)
	}
	if c.Transcription.MaxRetries < 0 {
		return fmt.Errorf("transcription.max_retries cannot be negative")
	}
	switch c.Transcription.Format {
	case "webm", "wav":
	default:
		return fmt.Errorf("transcription.format must be webm or wav, got %q", c.Transcription.Format)
	}

	switch c.Orders.Sink {
	case "store", "pending":
	case "remote":
		if c.Orders.RemoteURL == "" {
			return fmt.Errorf("orders.remote_url is required for the remote sink")
		}
	default:
		return fmt.Errorf("orders.sink must be store, pending or remote, got %q", c.Orders.Sink)
	}
	switch c.Orders.Mode {
	case "split", "verbatim":
	default:
		return fmt.Errorf("orders.mode must be split or verbatim, got %q", c.Orders.Mode)
	}

	switch c.Feed.Transport {
	case "poll", "storage":
	case "amqp":
		if !c.Events.AMQP.Enabled {
			return fmt.Errorf("feed.transport amqp requires events.amqp.enabled")
		}
	case "pgnotify":
		if !c.Events.PGNotify.Enabled {
			return fmt.Errorf("feed.transport pgnotify requires events.pgnotify.enabled")
		}
	default:
		return fmt.Errorf("feed.transport must be poll, storage, amqp or pgnotify, got %q", c.Feed.Transport)
	}
	if c.Feed.IntervalSeconds < 1 || c.Feed.IntervalSeconds > 60 {
		return fmt.Errorf("feed.interval_seconds must be between 1 and 60, got %d", c.Feed.IntervalSeconds)
	}

	if c.Events.AMQP.Enabled && c.Events.AMQP.URL == "" {
		return fmt.Errorf("events.amqp.url is required when amqp is enabled (or set AMQP_URL)")
	}
	if c.Events.Kafka.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.kafka.brokers is required when kafka is enabled (or set KAFKA_BROKERS)")
	}
	if c.Archive.Enabled && (c.Archive.Bucket == "" || c.Archive.Region == "") {
		return fmt.Errorf("archive.bucket and archive.region are required when the archive is enabled")
	}
	return nil
}
