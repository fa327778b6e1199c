package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"deepdive/internal/llm"
	"deepdive/internal/quality"
	"deepdive/internal/sparring"
	"deepdive/internal/storage"
)

const (
	DefaultLLMProvider = llm.ProviderOpenAI
	DefaultHTTPAddr    = ":8080"
	DefaultLogLevel    = "info"
	DefaultCacheSize   = 256

	envPrefix  = "DEEPDIVE"
	configName = "deepdive"
)

type LLM struct {
	Provider      string
	Model         string
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
}

type Sparring struct {
	MaxAttempts     int
	BaseTemperature float64
	TemperatureStep float64
}

type Quality struct {
	MinRelevance       float64
	MaxRepetition      float64
	MinUserSignalRunes int
}

type Config struct {
	LLM      LLM
	Sparring Sparring
	Quality  Quality

	DBPath           string
	HTTPAddr         string
	AuthRequired     bool
	RewriteCacheSize int

	VKToken   string
	VKGroupID int

	LogLevel       string
	LogDevelopment bool
}

// Load reads configuration from defaults, an optional deepdive.yaml (or the
// file at path when given) and the environment. Environment variables use
// the DEEPDIVE_ prefix with dots replaced by underscores; the conventional
// OPENAI_API_KEY, GEMINI_API_KEY, DATABASE_PATH and VK_TOKEN names are also
// honoured.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range map[string][]string{
		"openai.api_key": {"DEEPDIVE_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"gemini.api_key": {"DEEPDIVE_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"llm.model":      {"DEEPDIVE_LLM_MODEL", "OPENAI_MODEL", "LLM_MODEL"},
		"db.path":        {"DEEPDIVE_DB_PATH", "DATABASE_PATH"},
		"vk.token":       {"DEEPDIVE_VK_TOKEN", "VK_TOKEN"},
		"vk.group_id":    {"DEEPDIVE_VK_GROUP_ID", "VK_GROUP_ID"},
	} {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.deepdive")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		LLM: LLM{
			Provider:      strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
			Model:         v.GetString("llm.model"),
			OpenAIKey:     v.GetString("openai.api_key"),
			OpenAIBaseURL: v.GetString("openai.base_url"),
			GeminiKey:     v.GetString("gemini.api_key"),
		},
		Sparring: Sparring{
			MaxAttempts:     v.GetInt("sparring.max_attempts"),
			BaseTemperature: v.GetFloat64("sparring.base_temperature"),
			TemperatureStep: v.GetFloat64("sparring.temperature_step"),
		},
		Quality: Quality{
			MinRelevance:       v.GetFloat64("quality.min_relevance"),
			MaxRepetition:      v.GetFloat64("quality.max_repetition"),
			MinUserSignalRunes: v.GetInt("quality.min_user_signal_runes"),
		},
		DBPath:           v.GetString("db.path"),
		HTTPAddr:         v.GetString("http.addr"),
		AuthRequired:     v.GetBool("auth.required"),
		RewriteCacheSize: v.GetInt("rewrite.cache_size"),
		VKToken:          v.GetString("vk.token"),
		VKGroupID:        v.GetInt("vk.group_id"),
		LogLevel:         v.GetString("log.level"),
		LogDevelopment:   v.GetBool("log.development"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("llm.model", "")
	v.SetDefault("openai.base_url", llm.DefaultOpenAIBaseURL)
	v.SetDefault("db.path", "")
	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("auth.required", false)
	v.SetDefault("rewrite.cache_size", DefaultCacheSize)
	v.SetDefault("sparring.max_attempts", sparring.DefaultMaxAttempts)
	v.SetDefault("sparring.base_temperature", sparring.DefaultBaseTemperature)
	v.SetDefault("sparring.temperature_step", sparring.DefaultTemperatureStep)
	v.SetDefault("quality.min_relevance", quality.DefaultMinRelevance)
	v.SetDefault("quality.max_repetition", quality.DefaultMaxRepetition)
	v.SetDefault("quality.min_user_signal_runes", quality.DefaultMinUserSignalRunes)
	v.SetDefault("vk.group_id", 0)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.development", false)
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case llm.ProviderOpenAI, llm.ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", llm.ProviderOpenAI, llm.ProviderGemini, c.LLM.Provider)
	}
	if c.Sparring.MaxAttempts < 1 {
		return fmt.Errorf("sparring.max_attempts must be at least 1, got %d", c.Sparring.MaxAttempts)
	}
	if c.Sparring.BaseTemperature < 0 || c.Sparring.TemperatureStep < 0 {
		return fmt.Errorf("sparring temperatures must not be negative")
	}
	if c.Quality.MinUserSignalRunes < 0 {
		return fmt.Errorf("quality.min_user_signal_runes must not be negative, got %d", c.Quality.MinUserSignalRunes)
	}
	for name, val := range map[string]float64{
		"quality.min_relevance":  c.Quality.MinRelevance,
		"quality.max_repetition": c.Quality.MaxRepetition,
	} {
		if val < 0 || val > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, val)
		}
	}
	return nil
}

// HasLLM reports whether the selected provider has a credential.
func (c *Config) HasLLM() bool {
	if c.LLM.Provider == llm.ProviderGemini {
		return c.LLM.GeminiKey != ""
	}
	return c.LLM.OpenAIKey != ""
}

func (c *Config) LLMSettings() llm.Settings {
	return llm.Settings{
		Provider:      c.LLM.Provider,
		Model:         c.LLM.Model,
		OpenAIKey:     c.LLM.OpenAIKey,
		OpenAIBaseURL: c.LLM.OpenAIBaseURL,
		GeminiKey:     c.LLM.GeminiKey,
	}
}

func (c *Config) SparringOptions() sparring.Options {
	opts := sparring.DefaultOptions()
	opts.MaxAttempts = c.Sparring.MaxAttempts
	opts.BaseTemperature = c.Sparring.BaseTemperature
	opts.TemperatureStep = c.Sparring.TemperatureStep
	opts.Thresholds.MinRelevance = c.Quality.MinRelevance
	opts.Thresholds.MaxRepetition = c.Quality.MaxRepetition
	opts.Thresholds.MinUserSignalRunes = c.Quality.MinUserSignalRunes
	return opts
}

func (c *Config) StorageConfig() storage.Config {
	return storage.Config{Path: c.DBPath, AuthRequired: c.AuthRequired}
}
