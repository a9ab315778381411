// Package config merges a YAML file with a whitelisted set of environment
// variable overrides into one validated configuration tree (spec L0 Config
// Resolver), the way axonhub's conf package layers mergo + mapstructure over
// a YAML base.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/orbitgw/orbit/internal/log"
)

// HTTPConfig configures the HTTP/SSE front door (§4.1 / §6).
type HTTPConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	RequireAPIKey     bool          `yaml:"require_api_key"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ChatRequestTimeout time.Duration `yaml:"chat_request_timeout"`
	CORSEnabled       bool          `yaml:"cors_enabled"`
}

// SessionConfig configures the conversation history store (§4.8).
type SessionConfig struct {
	MaxHistoryMessages int    `yaml:"max_history_messages"` // default 20, loaded per turn
	MaxSessionMessages int    `yaml:"max_session_messages"` // prune threshold
	PruneOnRestart     string `yaml:"prune_on_restart"`     // "compact" | "leave" (open question, named option)
	Backend            string `yaml:"backend"`              // "memory" | "sqlite"; any other value uses memory
	DSN                string `yaml:"dsn"`
}

// KeyStoreConfig configures the API-key & prompt store (§4.2).
type KeyStoreConfig struct {
	Backend      string        `yaml:"backend"` // "memory" | "sqlite" | "redis"
	DSN          string        `yaml:"dsn"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	TokenPrefix  string        `yaml:"token_prefix"`
}

// SupervisorConfig configures the fault-tolerance layer (§4.6).
type SupervisorConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"` // F_open
	Window           time.Duration `yaml:"window"`
	Cooldown         time.Duration `yaml:"cooldown"`
	MaxRetries       int           `yaml:"max_retries"`
	BaseBackoff      time.Duration `yaml:"base_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
}

// PipelineConfig configures per-stage soft timeouts and defaults (§5).
type PipelineConfig struct {
	ModerationTimeout     time.Duration `yaml:"moderation_timeout"`
	RetrievalTimeout      time.Duration `yaml:"retrieval_timeout"`
	FirstTokenTimeout     time.Duration `yaml:"first_token_timeout"`
	InferenceTotalTimeout time.Duration `yaml:"inference_total_timeout"`
	CancelGracePeriod     time.Duration `yaml:"cancel_grace_period"`
	ReservedOutputTokens  int           `yaml:"reserved_output_tokens"`
	RefusalMessage        string        `yaml:"refusal_message"`
	StrictStartup         bool          `yaml:"strict_startup"` // exit(2) on unreachable critical dep
}

// AdminConfig configures the admin-plane JWT issuance (spec §6 /auth/*).
type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// SQLDatasourceSpec is a named SQL datasource an AdapterSpec's Datasource
// field references: dialect, connection string, and the closed-template
// query the sqlretriever compiles at startup (spec §9 design note).
type SQLDatasourceSpec struct {
	Name       string            `yaml:"name"`
	Dialect    string            `yaml:"dialect"` // "sqlite" | "postgres" | "mysql"
	DSN        string            `yaml:"dsn"`
	Query      string            `yaml:"query"`
	QueryParam string            `yaml:"query_param"`
	Schema     map[string]string `yaml:"schema"` // param name -> "string"|"int"|"float"
}

// VectorDatasourceSpec is a named vector datasource an AdapterSpec's
// Datasource field references. The concrete store is always ORBIT's own
// in-process MemStore (spec §1 Non-goals excludes the vector-DB drivers
// themselves); EmbeddingProvider selects how queries are embedded.
type VectorDatasourceSpec struct {
	Name              string `yaml:"name"`
	EmbeddingProvider string `yaml:"embedding_provider"`
}

// EmbeddingProviderSpec configures one embedding backend (spec §4.3 step 1).
type EmbeddingProviderSpec struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Config is the merged, validated tree the whole process is built from.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Session    SessionConfig    `yaml:"session"`
	KeyStore   KeyStoreConfig   `yaml:"key_store"`
	Admin      AdminConfig      `yaml:"admin"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Log        log.Config       `yaml:"log"`
	Adapters   []AdapterSpec    `yaml:"adapters"`
	Prompts    []PromptSpec     `yaml:"prompts"`
	Providers  []ProviderSpec   `yaml:"providers"`
	Moderators []ModeratorSpec  `yaml:"moderators"`

	SQLDatasources     []SQLDatasourceSpec     `yaml:"sql_datasources"`
	VectorDatasources  []VectorDatasourceSpec  `yaml:"vector_datasources"`
	EmbeddingProviders []EmbeddingProviderSpec `yaml:"embedding_providers"`
}

// AdapterSpec is the file-level shape of one Adapter (spec §3).
type AdapterSpec struct {
	Name                  string  `yaml:"name"`
	Kind                  string  `yaml:"kind"`
	Datasource            string  `yaml:"datasource"`
	AdapterFamily         string  `yaml:"adapter_family"`
	ImplementationRef     string  `yaml:"implementation_ref"`
	ConfidenceThreshold   float64 `yaml:"confidence_threshold"`
	MaxResults            int     `yaml:"max_results"`
	ReturnResults         int     `yaml:"return_results"`
	EmbeddingProvider     string  `yaml:"embedding_provider"`
	DistanceMapping       string  `yaml:"distance_mapping"`
	DistanceScalingFactor float64 `yaml:"distance_scaling_factor"`
	InferenceProvider     string  `yaml:"inference_provider"`
	DefaultPromptID       string  `yaml:"default_prompt_id"`
	DSN                   string  `yaml:"dsn"`
	Reranker              string  `yaml:"reranker"`
}

type PromptSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Text string `yaml:"text"`
}

// ProviderSpec configures one inference-client binding (spec §4.4).
type ProviderSpec struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // "openai" | "anthropic" | "ollama" | "llamacpp" | "vllm" | ...
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// ModeratorSpec configures one link of the moderator chain (spec §4.5).
type ModeratorSpec struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"` // "rule" | "openai_moderation" | "anthropic_classifier" | "llm_guard"
	BaseURL      string   `yaml:"base_url"`
	APIKey       string   `yaml:"api_key"`
	Threshold    float64  `yaml:"threshold"`
	BlockedTerms []string `yaml:"blocked_terms"`
}

// envOverrides is the whitelisted set of env vars spec §6 allows; anything
// else is ignored, never merged.
var envOverrides = map[string]func(*Config, string){
	"ORBIT_HTTP_PORT": func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = n
		}
	},
	"ORBIT_HTTP_HOST": func(c *Config, v string) { c.HTTP.Host = v },
	"ORBIT_SESSION_DSN": func(c *Config, v string) { c.Session.DSN = v },
	"ORBIT_KEYSTORE_DSN": func(c *Config, v string) { c.KeyStore.DSN = v },
	"ORBIT_REDIS_ADDR": func(c *Config, v string) {
		c.Session.DSN = v
		c.KeyStore.DSN = v
	},
	"ORBIT_MONGO_URI": func(c *Config, v string) { c.Session.DSN = v },
	"ORBIT_ELASTICSEARCH_URL": func(c *Config, v string) {},
}

// Load reads path (YAML), applies defaults, layers whitelisted env overrides
// on top with mergo, and validates the result. It never blocks on the
// network; retriever/provider datasource credentials resolve lazily.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}

		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}

		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("merge config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	for key, apply := range envOverrides {
		if v, ok := os.LookupEnv(key); ok {
			apply(cfg, v)
		}
	}
}

// Validate rejects configurations that are structurally unsound before the
// server ever binds a port: unknown adapter references, legacy
// collection-name bindings mixed with adapter bindings (spec §9), etc.
func Validate(cfg Config) error {
	var errs *multierror.Error

	seen := map[string]bool{}

	for _, a := range cfg.Adapters {
		if a.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("adapter with empty name"))
			continue
		}

		if seen[a.Name] {
			errs = multierror.Append(errs, fmt.Errorf("duplicate adapter name %q", a.Name))
		}

		seen[a.Name] = true

		if a.Kind != "retriever" && a.Kind != "passthrough" {
			errs = multierror.Append(errs, fmt.Errorf("adapter %q: unknown kind %q", a.Name, a.Kind))
		}

		if a.DistanceMapping != "" && a.DistanceMapping != "cosine" && a.DistanceMapping != "exponential" {
			errs = multierror.Append(errs, fmt.Errorf("adapter %q: unknown distance_mapping %q", a.Name, a.DistanceMapping))
		}
	}

	if cfg.HTTP.Port <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("http.port must be positive"))
	}

	sqlNames := map[string]bool{}
	for _, d := range cfg.SQLDatasources {
		sqlNames[d.Name] = true
	}

	vectorNames := map[string]bool{}
	for _, d := range cfg.VectorDatasources {
		vectorNames[d.Name] = true
	}

	for _, a := range cfg.Adapters {
		switch a.AdapterFamily {
		case "sql":
			if !sqlNames[a.Datasource] {
				errs = multierror.Append(errs, fmt.Errorf("adapter %q: no sql_datasources entry named %q", a.Name, a.Datasource))
			}
		case "vector":
			if !vectorNames[a.Datasource] {
				errs = multierror.Append(errs, fmt.Errorf("adapter %q: no vector_datasources entry named %q", a.Name, a.Datasource))
			}
		}
	}

	return errs.ErrorOrNil()
}

// Default returns the baseline configuration before file/env overrides.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			RequireAPIKey:      true,
			ReadTimeout:        30 * time.Second,
			RequestTimeout:     30 * time.Second,
			ChatRequestTimeout: 120 * time.Second,
			CORSEnabled:        false,
		},
		Session: SessionConfig{
			MaxHistoryMessages: 20,
			MaxSessionMessages: 200,
			PruneOnRestart:     "leave",
			Backend:            "memory",
		},
		KeyStore: KeyStoreConfig{
			Backend:     "memory",
			CacheTTL:    5 * time.Minute,
			TokenPrefix: "orbit_",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			Window:           time.Minute,
			Cooldown:         30 * time.Second,
			MaxRetries:       3,
			BaseBackoff:      200 * time.Millisecond,
			MaxBackoff:       5 * time.Second,
		},
		Pipeline: PipelineConfig{
			ModerationTimeout:     5 * time.Second,
			RetrievalTimeout:      10 * time.Second,
			FirstTokenTimeout:     15 * time.Second,
			InferenceTotalTimeout: 120 * time.Second,
			CancelGracePeriod:     2 * time.Second,
			ReservedOutputTokens:  512,
			RefusalMessage:        "I can't help with that request.",
			StrictStartup:         false,
		},
		Log: log.Config{
			Level:  "info",
			Format: "json",
		},
		Admin: AdminConfig{
			JWTSecret: "orbit-dev-secret",
			TokenTTL:  24 * time.Hour,
		},
	}
}

// DecodeMap is exposed for callers (e.g. admin endpoints) that need to
// decode an arbitrary map into a typed struct using the same mapstructure
// settings the file loader uses.
func DecodeMap(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}
