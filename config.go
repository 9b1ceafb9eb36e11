package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	ProviderFormat string `yaml:"provider_format"` // optional explicit format override

	Background string   `yaml:"background"` // sample description embedded in every prompt
	TopGenes   int      `yaml:"top_genes"`
	PValCutoff float64  `yaml:"p_value_cutoff"`
	MinLog2FC  float64  `yaml:"min_log2_fc"`
	ExtraGenes []string `yaml:"extra_genes"`

	Workers               int     `yaml:"workers"`
	MaxRetries            int     `yaml:"max_retries"`
	RetryDelaySeconds     int     `yaml:"retry_delay_seconds"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	MaxTokens             int     `yaml:"max_tokens"`
	Temperature           float64 `yaml:"temperature"`
	ReasoningEffort       string  `yaml:"reasoning_effort"` // responses format only
	Verbosity             string  `yaml:"verbosity"`        // responses format only

	TranscriptPath string `yaml:"transcript_path"`
	Verbose        bool   `yaml:"verbose"`
}

const (
	defaultBaseURL        = "https://api.openai.com"
	defaultTopGenes       = 10
	defaultPValCutoff     = 0.05
	defaultMinLog2FC      = 0.25
	defaultWorkers        = 4
	defaultMaxRetries     = 3
	defaultRetryDelay     = 1
	defaultRequestTimeout = 120
	defaultMaxTokens      = 1024
)

func LoadConfig() Config {
	var cfg Config

	configPath := "smartanno.yaml"
	if envPath := os.Getenv("SMARTANNO_CONFIG"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.APIKey, "SMARTANNO_API_KEY")
	if cfg.APIKey == "" {
		envOverride(&cfg.APIKey, "OPENAI_API_KEY")
	}
	envOverride(&cfg.BaseURL, "SMARTANNO_BASE_URL")
	envOverride(&cfg.Model, "SMARTANNO_MODEL")
	envOverride(&cfg.ProviderFormat, "SMARTANNO_PROVIDER_FORMAT")
	envOverride(&cfg.Background, "SMARTANNO_BACKGROUND")
	envOverrideInt(&cfg.TopGenes, "SMARTANNO_TOP_GENES")
	envOverrideFloat(&cfg.PValCutoff, "SMARTANNO_P_VALUE_CUTOFF")
	envOverrideFloat(&cfg.MinLog2FC, "SMARTANNO_MIN_LOG2_FC")
	envOverrideInt(&cfg.Workers, "SMARTANNO_WORKERS")
	envOverrideInt(&cfg.MaxRetries, "SMARTANNO_MAX_RETRIES")
	envOverrideInt(&cfg.RetryDelaySeconds, "SMARTANNO_RETRY_DELAY_SECONDS")
	envOverrideInt(&cfg.RequestTimeoutSeconds, "SMARTANNO_REQUEST_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.MaxTokens, "SMARTANNO_MAX_TOKENS")
	envOverrideFloat(&cfg.Temperature, "SMARTANNO_TEMPERATURE")
	envOverride(&cfg.ReasoningEffort, "SMARTANNO_REASONING_EFFORT")
	envOverride(&cfg.Verbosity, "SMARTANNO_VERBOSITY")
	envOverride(&cfg.TranscriptPath, "SMARTANNO_TRANSCRIPT_PATH")

	if genes := os.Getenv("SMARTANNO_EXTRA_GENES"); genes != "" {
		cfg.ExtraGenes = nil
		for _, gene := range strings.Split(genes, ",") {
			gene = strings.TrimSpace(gene)
			if gene != "" {
				cfg.ExtraGenes = append(cfg.ExtraGenes, gene)
			}
		}
	}

	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills unset fields and repairs malformed values with a
// non-fatal warning. Only structurally invalid configuration (bad format
// override, no models) aborts a run, and that happens later, before any
// network activity.
func (cfg *Config) applyDefaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TopGenes <= 0 {
		if cfg.TopGenes < 0 {
			log.Printf("warning: top_genes %d is invalid, using default %d", cfg.TopGenes, defaultTopGenes)
		}
		cfg.TopGenes = defaultTopGenes
	}
	if cfg.PValCutoff <= 0 || cfg.PValCutoff > 1 {
		if cfg.PValCutoff != 0 {
			log.Printf("warning: p_value_cutoff %g is invalid, using default %g", cfg.PValCutoff, defaultPValCutoff)
		}
		cfg.PValCutoff = defaultPValCutoff
	}
	if cfg.MinLog2FC == 0 {
		cfg.MinLog2FC = defaultMinLog2FC
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelaySeconds <= 0 {
		cfg.RetryDelaySeconds = defaultRetryDelay
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = defaultRequestTimeout
	}
	// MaxTokens stays zero when unspecified: the chat builders substitute
	// their own default and the responses builder substitutes a larger one.
}

func (cfg Config) retryDelay() time.Duration {
	return time.Duration(cfg.RetryDelaySeconds) * time.Second
}

func (cfg Config) requestTimeout() time.Duration {
	return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Printf("warning: ignoring invalid %s '%s': %v", envKey, val, err)
			return
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Printf("warning: ignoring invalid %s '%s': %v", envKey, val, err)
			return
		}
		*field = parsed
	}
}
