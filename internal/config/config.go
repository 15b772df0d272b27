package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// Retrieval thresholds. Kept as explicit values (not package state) so
	// they can be varied per test and, eventually, per tenant.
	ThetaHigh float64 `envconfig:"THETA_HIGH" default:"0.82"`
	ThetaLow  float64 `envconfig:"THETA_LOW" default:"0.55"`
	DeltaMin  float64 `envconfig:"DELTA_MIN" default:"0.08"`

	// LexicalStrictAND switches the lexical channel from permissive OR
	// matching to AND-of-all-terms. OR is the safe default: strict AND
	// starves the pipeline of candidates on any phrasing mismatch.
	LexicalStrictAND bool `envconfig:"LEXICAL_STRICT_AND" default:"false"`

	CacheTTL       time.Duration `envconfig:"CACHE_TTL" default:"1h"`
	JudgeTimeout   time.Duration `envconfig:"JUDGE_TIMEOUT" default:"3s"`
	EmbedTimeout   time.Duration `envconfig:"EMBED_TIMEOUT" default:"2s"`
	JudgeRatePerS  float64       `envconfig:"JUDGE_RATE_PER_S" default:"10"`
	JudgeRateBurst int           `envconfig:"JUDGE_RATE_BURST" default:"20"`

	// Decision-log archive. Optional; disabled unless all S3 settings are set.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"faqline-decision-logs"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	ArchiveInterval time.Duration `envconfig:"ARCHIVE_INTERVAL" default:"15m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("FAQLINE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.ThetaLow < 0 || c.ThetaHigh > 1 || c.ThetaLow >= c.ThetaHigh {
		return fmt.Errorf("invalid thresholds: theta_low=%v theta_high=%v", c.ThetaLow, c.ThetaHigh)
	}
	if c.DeltaMin < 0 || c.DeltaMin > 1 {
		return fmt.Errorf("invalid delta_min: %v", c.DeltaMin)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
