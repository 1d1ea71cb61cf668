package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/logger"
)

// Config is the process-wide configuration, built once at startup and
// injected into every component.
type Config struct {
	DB          string
	LLM         llm.Config
	Retriever   RetrieverConfig
	Redis       RedisConfig
	Analysis    AnalysisConfig
	Tutor       TutorConfig
	Attachments AttachmentsConfig
	Server      ServerConfig
	Log         logger.Config
}

// RetrieverConfig locates the passage index. An empty QdrantHost disables
// retrieval: every retrieval-path turn then falls back to a direct answer.
type RetrieverConfig struct {
	QdrantHost      string
	QdrantPort      int
	QdrantAPIKey    string
	QdrantTLS       bool
	Collection      string
	EmbeddingModel  string
	EmbeddingAPIKey string
	K               int
	Timeout         time.Duration
}

// RedisConfig enables the embedding cache and the HTTP turn lock when
// Address is set.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// AnalysisConfig holds the proficiency re-assessment cadence and the
// confidence a recommendation needs before it changes the level.
type AnalysisConfig struct {
	Days             int
	Turns            int
	PromoteThreshold float64
	DemoteThreshold  float64
}

// TutorConfig tunes the answer stages.
type TutorConfig struct {
	Temperature     float64
	HistoryMessages int
	MinPassageChars int
}

// AttachmentsConfig bounds uploads.
type AttachmentsConfig struct {
	MaxBytes int64
}

// ServerConfig configures the HTTP facade.
type ServerConfig struct {
	Address     string
	TurnTimeout time.Duration
}

const envPrefix = "DSATUTOR"

func setDefaults(v *viper.Viper) {
	d := llm.DefaultConfig()
	v.SetDefault("llm.timeout", d.Timeout)
	v.SetDefault("llm.retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", d.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", d.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", d.Retry.Multiplier)

	v.SetDefault("retriever.qdrant_port", 6334)
	v.SetDefault("retriever.collection", "dsa_corpus")
	v.SetDefault("retriever.embedding_model", "text-embedding-3-small")
	v.SetDefault("retriever.k", 10)
	v.SetDefault("retriever.timeout", 10*time.Second)

	v.SetDefault("redis.db", 0)

	v.SetDefault("analysis.days", 7)
	v.SetDefault("analysis.turns", 2)
	v.SetDefault("analysis.promote_threshold", 0.8)
	v.SetDefault("analysis.demote_threshold", 0.9)

	v.SetDefault("tutor.temperature", 0.0)
	v.SetDefault("tutor.history_messages", 10)
	v.SetDefault("tutor.min_passage_chars", 50)

	v.SetDefault("attachments.max_bytes", 5<<20)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.turn_timeout", 2*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "development")
}

// Load reads configuration from defaults, an optional YAML file and
// DSATUTOR_* environment variables, in increasing priority. When path is
// empty, dsatutor.yaml is looked up in the working directory and in
// $XDG_CONFIG_HOME/dsatutor; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("dsatutor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return fromViper(v), nil
}

func configDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "dsatutor")
}

func fromViper(v *viper.Viper) *Config {
	lc := llm.DefaultConfig()
	provider := strings.ToLower(v.GetString("llm.provider"))
	if provider != "" {
		lc.Provider = provider
	}
	lc = llm.DiscoverKeys(lc, provider != "")
	lc.SetModel(v.GetString("llm.model"))
	lc.SetAPIKey(v.GetString("llm.api_key"))
	if u := v.GetString("llm.base_url"); u != "" {
		lc.OpenAI.BaseURL = u
		lc.Anthropic.BaseURL = u
		lc.Gemini.BaseURL = u
		lc.OpenRouter.BaseURL = u
	}
	lc.OpenRouter.AppName = v.GetString("llm.openrouter.app_name")
	lc.OpenRouter.SiteURL = v.GetString("llm.openrouter.site_url")
	lc.Timeout = v.GetDuration("llm.timeout")
	lc.Retry = llm.RetryConfig{
		MaxAttempts: v.GetInt("llm.retry.max_attempts"),
		InitialWait: v.GetDuration("llm.retry.initial_wait"),
		MaxWait:     v.GetDuration("llm.retry.max_wait"),
		Multiplier:  v.GetFloat64("llm.retry.multiplier"),
	}

	embedKey := v.GetString("retriever.embedding_api_key")
	if embedKey == "" {
		embedKey = lc.OpenAI.APIKey
	}

	return &Config{
		DB:  v.GetString("db"),
		LLM: lc,
		Retriever: RetrieverConfig{
			QdrantHost:      v.GetString("retriever.qdrant_host"),
			QdrantPort:      v.GetInt("retriever.qdrant_port"),
			QdrantAPIKey:    v.GetString("retriever.qdrant_api_key"),
			QdrantTLS:       v.GetBool("retriever.qdrant_tls"),
			Collection:      v.GetString("retriever.collection"),
			EmbeddingModel:  v.GetString("retriever.embedding_model"),
			EmbeddingAPIKey: embedKey,
			K:               v.GetInt("retriever.k"),
			Timeout:         v.GetDuration("retriever.timeout"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Analysis: AnalysisConfig{
			Days:             v.GetInt("analysis.days"),
			Turns:            v.GetInt("analysis.turns"),
			PromoteThreshold: v.GetFloat64("analysis.promote_threshold"),
			DemoteThreshold:  v.GetFloat64("analysis.demote_threshold"),
		},
		Tutor: TutorConfig{
			Temperature:     v.GetFloat64("tutor.temperature"),
			HistoryMessages: v.GetInt("tutor.history_messages"),
			MinPassageChars: v.GetInt("tutor.min_passage_chars"),
		},
		Attachments: AttachmentsConfig{
			MaxBytes: v.GetInt64("attachments.max_bytes"),
		},
		Server: ServerConfig{
			Address:     v.GetString("server.address"),
			TurnTimeout: v.GetDuration("server.turn_timeout"),
		},
		Log: logger.Config{
			Level: v.GetString("log.level"),
			Env:   v.GetString("log.env"),
		},
	}
}

// Validate checks settings that would otherwise fail deep inside a turn.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	switch {
	case c.Analysis.Days <= 0:
		return fmt.Errorf("analysis.days must be positive, got %d", c.Analysis.Days)
	case c.Analysis.Turns <= 0:
		return fmt.Errorf("analysis.turns must be positive, got %d", c.Analysis.Turns)
	case c.Analysis.PromoteThreshold < 0 || c.Analysis.PromoteThreshold > 1:
		return fmt.Errorf("analysis.promote_threshold must be within [0,1], got %v", c.Analysis.PromoteThreshold)
	case c.Analysis.DemoteThreshold < 0 || c.Analysis.DemoteThreshold > 1:
		return fmt.Errorf("analysis.demote_threshold must be within [0,1], got %v", c.Analysis.DemoteThreshold)
	case c.Attachments.MaxBytes <= 0:
		return fmt.Errorf("attachments.max_bytes must be positive, got %d", c.Attachments.MaxBytes)
	case c.Retriever.K <= 0:
		return fmt.Errorf("retriever.k must be positive, got %d", c.Retriever.K)
	}
	return nil
}
