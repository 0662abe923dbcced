// Package config handles loading and validating the polyvoice configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the polyvoice daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Voices     VoicesConfig     `mapstructure:"voices"`
	Speech     SpeechConfig     `mapstructure:"speech"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// EngineConfig selects and configures the synthesis engine.
type EngineConfig struct {
	Backend string        `mapstructure:"backend"` // "noop" or "wyoming"
	Wyoming WyomingConfig `mapstructure:"wyoming"`
}

// WyomingConfig holds Piper Wyoming protocol settings.
//
// For a single Piper instance that serves all voices, set Endpoint.
// For per-language instances, set Endpoints which maps language tags to
// individual Wyoming TCP endpoints. Endpoints takes precedence and Endpoint
// is the fallback.
type WyomingConfig struct {
	Endpoint   string            `mapstructure:"endpoint"`    // default host:port
	Endpoints  map[string]string `mapstructure:"endpoints"`   // language tag -> host:port
	Output     string            `mapstructure:"output"`      // raw PCM output file, "-" for stdout, empty to discard
	SampleRate int               `mapstructure:"sample_rate"` // used for break silence until the server reports its rate
}

// VoicesConfig lists the voices known to the registry.
type VoicesConfig struct {
	Default   string            `mapstructure:"default"`   // default voice name
	Languages map[string]string `mapstructure:"languages"` // language tag -> voice name override
	List      []VoiceConfig     `mapstructure:"list"`
}

// VoiceConfig describes one voice. Zero parameters take engine defaults.
type VoiceConfig struct {
	Name     string `mapstructure:"name"`
	Language string `mapstructure:"language"`
	Variant  string `mapstructure:"variant"`
	Rate     int    `mapstructure:"rate"`
	Pitch    int    `mapstructure:"pitch"`
	Volume   int    `mapstructure:"volume"`
}

// SpeechConfig holds the initial values of the runtime speech settings.
type SpeechConfig struct {
	NumberLanguage            string `mapstructure:"number_language"`
	NumberMode                string `mapstructure:"number_mode"` // "value" or "number"
	ChineseSpace              int    `mapstructure:"chinese_space"`
	IgnoreCommaBetweenNumbers bool   `mapstructure:"ignore_comma_between_numbers"`
	IgnoreDocumentLanguage    bool   `mapstructure:"ignore_document_language"`
	UseRules                  bool   `mapstructure:"use_rules"`
	UnicodeDetection          bool   `mapstructure:"unicode_detection"`
	AfterSymbolDetection      bool   `mapstructure:"after_symbol_detection"`
	MaxChunkLength            int    `mapstructure:"max_chunk_length"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./polyvoice.yaml, ./configs/polyvoice.yaml, /etc/polyvoice/polyvoice.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("polyvoice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/polyvoice")
	}

	// Environment variables: POLYVOICE_SERVER_HEALTH_PORT, POLYVOICE_SPEECH_NUMBER_MODE, etc.
	v.SetEnvPrefix("POLYVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional, env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in endpoint fields (e.g., "${PIPER_HOST}")
	cfg.Engine.Wyoming.Endpoint = resolveEnvRef(cfg.Engine.Wyoming.Endpoint)
	for lang, ep := range cfg.Engine.Wyoming.Endpoints {
		cfg.Engine.Wyoming.Endpoints[lang] = resolveEnvRef(ep)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("engine.backend", "noop")
	v.SetDefault("engine.wyoming.endpoint", "localhost:10200")
	v.SetDefault("engine.wyoming.output", "")
	v.SetDefault("engine.wyoming.sample_rate", 22050)
	v.SetDefault("voices.default", "")
	v.SetDefault("speech.number_language", "default")
	v.SetDefault("speech.number_mode", "value")
	v.SetDefault("speech.chinese_space", 0)
	v.SetDefault("speech.ignore_comma_between_numbers", false)
	v.SetDefault("speech.ignore_document_language", false)
	v.SetDefault("speech.use_rules", true)
	v.SetDefault("speech.unicode_detection", true)
	v.SetDefault("speech.after_symbol_detection", false)
	v.SetDefault("speech.max_chunk_length", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks values that cannot be clamped into a sane range.
func (c *Config) Validate() error {
	switch c.Engine.Backend {
	case "noop", "wyoming":
	default:
		return fmt.Errorf("unknown engine backend %q", c.Engine.Backend)
	}
	switch c.Speech.NumberMode {
	case "value", "number":
	default:
		return fmt.Errorf("unknown number mode %q", c.Speech.NumberMode)
	}
	if c.Speech.ChineseSpace < 0 {
		return fmt.Errorf("speech.chinese_space must not be negative, got %d", c.Speech.ChineseSpace)
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
