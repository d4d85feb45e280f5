package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"shipclass/internal/coding"
	"shipclass/pkg/categorizer"
)

// Supported classifier providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Supported run-ledger drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// PricingInfo holds cost details per token for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

type Config struct {
	Database struct {
		Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Input struct {
		Path        string `mapstructure:"path"`         // source table for `run`
		Sheet       string `mapstructure:"sheet"`        // workbook sheet, first when empty
		ChunkSize   int    `mapstructure:"chunk_size"`   // rows per chunk file
		ChunkFolder string `mapstructure:"chunk_folder"` // where chunk files are written
	} `mapstructure:"input"`

	Output struct {
		Folder string `mapstructure:"folder"`
	} `mapstructure:"output"`

	Classifier struct {
		Provider       string               `mapstructure:"provider"` // "gemini" or "openai"
		Model          string               `mapstructure:"model"`
		GeminiApiKey   string               `mapstructure:"gemini_api_key"`
		OpenaiApiKey   string               `mapstructure:"openai_api_key"`
		BaseURL        string               `mapstructure:"base_url"` // OpenAI-compatible endpoint
		PromptTemplate string               `mapstructure:"prompt_template"`
		Columns        []categorizer.Column `mapstructure:"columns"`
		BatchSize      int                  `mapstructure:"batch_size"`
		Workers        int                  `mapstructure:"workers"`
		MaxAttempts    int                  `mapstructure:"max_attempts"`
		BaseDelayMs    int                  `mapstructure:"base_delay_ms"`
		Throttle       time.Duration        `mapstructure:"throttle"`
		Timeout        time.Duration        `mapstructure:"timeout"`
	} `mapstructure:"classifier"`

	Coding coding.Config `mapstructure:"coding"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Server struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token}
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`
}

// APIKey returns the key of the configured provider.
func (c *Config) APIKey() string {
	if c.Classifier.Provider == ProviderOpenAI {
		return c.Classifier.OpenaiApiKey
	}
	return c.Classifier.GeminiApiKey
}

// SetAPIKey stores key for the configured provider.
func (c *Config) SetAPIKey(key string) {
	if c.Classifier.Provider == ProviderOpenAI {
		c.Classifier.OpenaiApiKey = key
		return
	}
	c.Classifier.GeminiApiKey = key
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "shipclass.db")

	v.SetDefault("input.path", "parts.xlsx")
	v.SetDefault("input.sheet", "")
	v.SetDefault("input.chunk_size", 5000)
	v.SetDefault("input.chunk_folder", "chunks")
	v.SetDefault("output.folder", "classified_chunks")

	v.SetDefault("classifier.provider", ProviderGemini)
	v.SetDefault("classifier.model", "gemini-2.0-flash")
	v.SetDefault("classifier.gemini_api_key", "")
	v.SetDefault("classifier.openai_api_key", "")
	v.SetDefault("classifier.base_url", "")
	v.SetDefault("classifier.prompt_template", "")
	v.SetDefault("classifier.batch_size", 100)
	v.SetDefault("classifier.workers", 3)
	v.SetDefault("classifier.max_attempts", 1)
	v.SetDefault("classifier.base_delay_ms", 500)
	v.SetDefault("classifier.throttle", time.Second)
	v.SetDefault("classifier.timeout", 2*time.Minute)

	v.SetDefault("coding.type_ordinal_base", coding.DefaultTypeOrdinalBase)
	v.SetDefault("coding.sequence_base", coding.DefaultSequenceBase)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.queues", map[string]int{"default": 1})

	v.SetDefault("server.address", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads config.yaml from the working directory, or configFile when set.
// Environment variables override the file and defaults fill the rest.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".") // Look for config.yaml in the current directory
	}

	// --- Environment Variable Binding ---
	// classifier.batch_size -> SHIPCLASS_CLASSIFIER_BATCH_SIZE
	v.SetEnvPrefix("SHIPCLASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are also read from their conventional unprefixed names.
	v.BindEnv("classifier.gemini_api_key", "SHIPCLASS_CLASSIFIER_GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("classifier.openai_api_key", "SHIPCLASS_CLASSIFIER_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("database.dsn", "SHIPCLASS_DATABASE_DSN", "DATABASE_URL")
	// --- End Environment Variable Binding ---

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the config file doesn't exist, defaults and env vars still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if len(config.Classifier.Columns) == 0 {
		config.Classifier.Columns = categorizer.DefaultColumns
	}
	return &config, nil
}
