// Package config loads the process configuration from the environment, with
// optional .env support for local development.
package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the chatbot process needs to start.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Language model used by the classifier and the policy handler.
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel    string `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
	OpenAIBaseURL  string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-ada-002"`

	// Structured-query spaces.
	DatabricksWorkspace string        `envconfig:"DATABRICKS_WORKSPACE"`
	DatabricksToken     string        `envconfig:"DATABRICKS_TOKEN"`
	SalesSpaceID        string        `envconfig:"GENIE_SALES_SPACE_ID"`
	OperationsSpaceID   string        `envconfig:"GENIE_OPERATIONS_SPACE_ID"`
	GeniePollInterval   time.Duration `envconfig:"GENIE_POLL_INTERVAL" default:"2s"`
	GeniePollAttempts   int           `envconfig:"GENIE_POLL_MAX_ATTEMPTS" default:"15"`

	// Policy document corpus. Empty disables the retrieval backend.
	PolicyCorpusPath string `envconfig:"POLICY_CORPUS_PATH"`
	PolicyTopK       int    `envconfig:"POLICY_TOP_K" default:"4"`

	// Session persistence. Empty RedisAddr keeps sessions in memory.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Turn archive. Empty disables archiving.
	HistoryDBPath string `envconfig:"HISTORY_DB_PATH"`
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	// Missing .env is fine outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.DatabricksWorkspace == "" || c.DatabricksToken == "" {
		return errors.New("DATABRICKS_WORKSPACE and DATABRICKS_TOKEN are required")
	}
	if c.SalesSpaceID == "" || c.OperationsSpaceID == "" {
		return errors.New("GENIE_SALES_SPACE_ID and GENIE_OPERATIONS_SPACE_ID are required")
	}
	return nil
}
