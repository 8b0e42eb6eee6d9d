// Package config loads the process configuration once at startup. Values
// come from defaults, an optional YAML file and the environment, in
// increasing precedence; an optional .env file is loaded into the
// environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Kocoro-lab/research-orchestrator/internal/agents"
	"github.com/Kocoro-lab/research-orchestrator/internal/edenlayer"
	"github.com/Kocoro-lab/research-orchestrator/internal/logging"
	"github.com/Kocoro-lab/research-orchestrator/internal/tracing"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// DefaultPath is read when neither the caller nor CONFIG_PATH names a file.
const DefaultPath = "config/research.yaml"

type Config struct {
	Server       ServerConfig        `mapstructure:"server"`
	Logging      logging.Config      `mapstructure:"logging"`
	AgentBaseURL string              `mapstructure:"agent_base_url"`
	AgentIDs     AgentIDs            `mapstructure:"agent_ids"`
	Research     ResearchConfig      `mapstructure:"research"`
	Workers      WorkersConfig       `mapstructure:"workers"`
	Search       agents.SearchConfig `mapstructure:"search"`
	Edenlayer    edenlayer.Config    `mapstructure:"edenlayer"`
	Temporal     TemporalConfig      `mapstructure:"temporal"`
	Redis        RedisConfig         `mapstructure:"redis"`
	Tracing      tracing.Config      `mapstructure:"tracing"`
	// Submitter selects the backend of /api/compose/submit: none,
	// edenlayer or temporal.
	Submitter string `mapstructure:"submitter"`
}

type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	HealthPort int    `mapstructure:"health_port"`
	APIKey     string `mapstructure:"api_key"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AgentIDs are the registry ids assigned by `research register`.
type AgentIDs struct {
	Orchestrator  string `mapstructure:"orchestrator"`
	WebSearch     string `mapstructure:"web_search"`
	DataAnalysis  string `mapstructure:"data_analysis"`
	Summarization string `mapstructure:"summarization"`
	Citation      string `mapstructure:"citation"`
}

// ByCapability maps the worker ids that are set.
func (a AgentIDs) ByCapability() map[workers.Capability]string {
	out := make(map[workers.Capability]string, 4)
	for c, id := range map[workers.Capability]string{
		workers.CapabilitySearch:          a.WebSearch,
		workers.CapabilityAnalyze:         a.DataAnalysis,
		workers.CapabilityGenerateSummary: a.Summarization,
		workers.CapabilityFormatCitations: a.Citation,
	} {
		if id != "" {
			out[c] = id
		}
	}
	return out
}

type ResearchConfig struct {
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	TemplateDir    string `mapstructure:"template_dir"`
	WatchTemplates bool   `mapstructure:"watch_templates"`
}

// WorkersConfig selects where capabilities run.
type WorkersConfig struct {
	Mode   string               `mapstructure:"mode"` // local | remote
	Remote workers.RemoteConfig `mapstructure:"remote"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// envBindings lists the environment variable of each key. Names without a
// prefix are the ones the agent registry deployment already uses.
var envBindings = map[string]string{
	"server.port":               "PORT",
	"server.health_port":        "HEALTH_PORT",
	"server.api_key":            "API_KEY",
	"logging.level":             "LOG_LEVEL",
	"logging.format":            "LOG_FORMAT",
	"agent_base_url":            "AGENT_BASE_URL",
	"agent_ids.orchestrator":    "ORCHESTRATOR_AGENT_ID",
	"agent_ids.web_search":      "WEB_SEARCH_AGENT_ID",
	"agent_ids.data_analysis":   "DATA_ANALYSIS_AGENT_ID",
	"agent_ids.summarization":   "SUMMARIZATION_AGENT_ID",
	"agent_ids.citation":        "CITATION_AGENT_ID",
	"research.max_concurrency":  "RESEARCH_MAX_CONCURRENCY",
	"research.template_dir":     "TEMPLATE_DIR",
	"research.watch_templates":  "WATCH_TEMPLATES",
	"workers.mode":              "WORKER_MODE",
	"workers.remote.base_url":   "WORKER_BASE_URL",
	"workers.remote.api_key":    "WORKER_API_KEY",
	"workers.remote.rate_limit": "WORKER_RATE_LIMIT",
	"search.provider":           "SEARCH_PROVIDER",
	"search.html.endpoint":      "SEARCH_HTML_ENDPOINT",
	"search.cache.backend":      "SEARCH_CACHE",
	"search.cache.ttl":          "SEARCH_CACHE_TTL",
	"edenlayer.api_url":         "EDENLAYER_API_URL",
	"edenlayer.api_key":         "EDENLAYER_API_KEY",
	"temporal.enabled":          "TEMPORAL_ENABLED",
	"temporal.host":             "TEMPORAL_HOST",
	"temporal.namespace":        "TEMPORAL_NAMESPACE",
	"temporal.task_queue":       "TEMPORAL_TASK_QUEUE",
	"redis.addr":                "REDIS_ADDR",
	"redis.password":            "REDIS_PASSWORD",
	"tracing.enabled":           "OTEL_ENABLED",
	"tracing.otlp_endpoint":     "OTEL_EXPORTER_OTLP_ENDPOINT",
	"tracing.service_name":      "OTEL_SERVICE_NAME",
	"submitter":                 "COMPOSE_SUBMITTER",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("agent_base_url", "http://localhost:8080")
	v.SetDefault("research.max_concurrency", 0)
	v.SetDefault("research.watch_templates", true)
	v.SetDefault("workers.mode", "local")
	v.SetDefault("workers.remote.timeout", 30*time.Second)
	v.SetDefault("workers.remote.rate_limit", 10.0)
	v.SetDefault("workers.remote.burst", 5)
	v.SetDefault("search.provider", "mock")
	v.SetDefault("search.html.endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.html.timeout", 15*time.Second)
	v.SetDefault("search.cache.backend", "none")
	v.SetDefault("search.cache.size", 256)
	v.SetDefault("search.cache.ttl", 15*time.Minute)
	v.SetDefault("edenlayer.api_url", edenlayer.DefaultAPIURL)
	v.SetDefault("edenlayer.timeout", 30*time.Second)
	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "research-orchestrator")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("tracing.service_name", "research-orchestrator")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("submitter", "none")
}

// Load builds the configuration. path overrides CONFIG_PATH; a missing
// file is not an error unless it was named explicitly.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Workers.Mode {
	case "local":
	case "remote":
		if c.Workers.Remote.BaseURL == "" && len(c.Workers.Remote.Endpoints) == 0 {
			errs = append(errs, errors.New("workers.mode remote needs workers.remote.base_url or endpoints"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown workers.mode %q", c.Workers.Mode))
	}
	switch strings.ToLower(c.Submitter) {
	case "none", "edenlayer":
	case "temporal":
		if !c.Temporal.Enabled {
			errs = append(errs, errors.New("submitter temporal needs temporal.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown submitter %q", c.Submitter))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	if c.Research.MaxConcurrency < 0 {
		errs = append(errs, errors.New("research.max_concurrency must not be negative"))
	}
	return errors.Join(errs...)
}
