package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Logger      LoggerConfig     `yaml:"logger"`
	Engine      EngineConfig     `yaml:"engine"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Redis       RedisConfig      `yaml:"redis"`
	Analytics   AnalyticsConfig  `yaml:"analytics"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	CORS            bool          `yaml:"cors" default:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	RateLimit       float64       `yaml:"rate_limit" default:"20"`
	RateBurst       int           `yaml:"rate_burst" default:"40"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
	// Collect aggregates repeated warnings and errors and publishes them to Kafka.
	Collect         bool          `yaml:"collect"`
	CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	CollectMax      int           `yaml:"collect_max" default:"100"`
}

// EngineConfig drives the scanner and the scoring core.
type EngineConfig struct {
	Symbols            []string      `yaml:"symbols" validate:"required,min=1,dive,required"`
	Timeframes         []string      `yaml:"timeframes" default:"[\"M15\",\"H1\",\"H4\",\"D1\"]" validate:"min=1"`
	BarLimit           int           `yaml:"bar_limit" default:"300" validate:"gte=50,lte=5000"`
	MinBars            int           `yaml:"min_bars" default:"50" validate:"gte=1"`
	RegimeLookback     int           `yaml:"regime_lookback" default:"50" validate:"gte=1"`
	ScanInterval       time.Duration `yaml:"scan_interval" default:"1m"`
	ScanTimeout        time.Duration `yaml:"scan_timeout" default:"30s"`
	Workers            int           `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	CalibratorCapacity int           `yaml:"calibrator_capacity" default:"100" validate:"gte=10"`
	SignalExpiry       time.Duration `yaml:"signal_expiry" default:"4h"`
	Cooldown           time.Duration `yaml:"cooldown" default:"15m"`
	EmitBuffer         int           `yaml:"emit_buffer" default:"256" validate:"gte=1"`
	UsePatterns        bool          `yaml:"use_patterns" default:"true"`
	UseQualitative     bool          `yaml:"use_qualitative"`
	Weights            WeightsConfig `yaml:"weights"`
}

type WeightsConfig struct {
	Trend       float64 `yaml:"trend" default:"0.25" validate:"gte=0"`
	Momentum    float64 `yaml:"momentum" default:"0.20" validate:"gte=0"`
	Volatility  float64 `yaml:"volatility" default:"0.10" validate:"gte=0"`
	Volume      float64 `yaml:"volume" default:"0.10" validate:"gte=0"`
	Pattern     float64 `yaml:"pattern" default:"0.20" validate:"gte=0"`
	Qualitative float64 `yaml:"qualitative" default:"0.15" validate:"gte=0"`
}

func (w WeightsConfig) Sum() float64 {
	return w.Trend + w.Momentum + w.Volatility + w.Volume + w.Pattern + w.Qualitative
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled" default:"true"`
	Host             string        `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"finsignal"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled" default:"true"`
	Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
	SignalTopic  string   `yaml:"signal_topic" default:"finsignal.signals"`
	OutcomeTopic string   `yaml:"outcome_topic" default:"finsignal.outcomes"`
	LogTopic     string   `yaml:"log_topic" default:"finsignal.logs"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"finsignal-calibration"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"30s"`
	// SnapshotTTL bounds how long a persisted calibration window stays valid.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl" default:"168h"`
}

// AnalyticsConfig points at the external pattern and qualitative services.
type AnalyticsConfig struct {
	ServiceURL      string        `yaml:"service_url"`
	Timeout         time.Duration `yaml:"timeout" default:"3s"`
	Retries         int           `yaml:"retries" default:"2"`
	BreakerFailures uint32        `yaml:"breaker_failures" default:"5"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" default:"30s"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. Defaults are applied first so the file
// only needs to carry overrides.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes into a validated Config.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory, if present, is loaded first without
// replacing variables that are already set.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FINSIGNAL_SYMBOLS"); v != "" {
		c.Engine.Symbols = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("ANALYTICS_URL"); v != "" {
		c.Analytics.ServiceURL = v
	}
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if s := c.Engine.Weights.Sum(); math.Abs(s-1) > 0.01 {
		return fmt.Errorf("engine.weights must sum to 1.0, got %.4f", s)
	}
	if c.Engine.ScanTimeout > c.Engine.ScanInterval {
		return fmt.Errorf("engine.scan_timeout (%s) exceeds engine.scan_interval (%s)", c.Engine.ScanTimeout, c.Engine.ScanInterval)
	}
	if (c.Engine.UsePatterns || c.Engine.UseQualitative) && c.Analytics.ServiceURL == "" {
		return fmt.Errorf("analytics.service_url is required when patterns or qualitative analysis are enabled")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
