// Package config loads the crawler configuration: a YAML file for per-source
// selectors and stage settings, with .env and environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/newsai/internal/article"
	"github.com/deusflow/newsai/internal/logger"
)

const DefaultPath = "configs/newsai.yaml"

// Config is the full runtime configuration.
type Config struct {
	Log        logger.Config           `yaml:"log"`
	Fetch      FetchConfig             `yaml:"fetch"`
	Extract    ExtractConfig           `yaml:"extract"`
	Summarize  SummarizeConfig         `yaml:"summarize"`
	Group      GroupConfig             `yaml:"group"`
	Storage    StorageConfig           `yaml:"storage"`
	Monitoring MonitoringConfig        `yaml:"monitoring"`
	Sources    map[string]SourceConfig `yaml:"sources"`
	Sections   []article.Section       `yaml:"sections"`
}

type FetchConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	UserAgents   []string      `yaml:"user_agents"`
}

type ExtractConfig struct {
	StaleAfter      time.Duration `yaml:"stale_after"`
	Tolerance       int           `yaml:"tolerance"`
	MinWords        int           `yaml:"min_words"`
	NonArticleTypes []string      `yaml:"non_article_types"`
	OrderSample     int           `yaml:"order_sample"`
	HeaderSelector  string        `yaml:"header_selector"`
}

type SummarizeConfig struct {
	Provider          string  `yaml:"provider"` // gemini | openai
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerMinute int     `yaml:"requests_per_minute"` // 0 = no quota
	MaxRequests       int     `yaml:"max_requests"`        // per run, 0 = unlimited
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`

	GeminiAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
}

type GroupConfig struct {
	MinSamples int        `yaml:"min_samples"`
	Grid       GridConfig `yaml:"grid"`
}

// GridConfig is the hyperparameter grid searched by the grouper.
type GridConfig struct {
	Components []int     `yaml:"components"`
	Eps        []float64 `yaml:"eps"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // file | sqlite
	DataDir string `yaml:"data_dir"`
}

type MonitoringConfig struct {
	Addr     string `yaml:"addr"`
	Schedule string `yaml:"schedule"`
}

// SourceConfig holds the selectors for one news site.
type SourceConfig struct {
	LinkSelector    string   `yaml:"link_selector"`
	LinkPrefix      string   `yaml:"link_prefix"`
	TextSelector    string   `yaml:"text_selector"`
	HeaderSelector  string   `yaml:"header_selector"`
	ExcludePrefixes []string `yaml:"exclude_prefixes"`
	Feed            bool     `yaml:"feed"`
}

// ValidationError reports one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads .env files, the YAML file at path, fills defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()

	return cfg, cfg.Validate()
}

// Parse decodes YAML and fills defaults. It does not touch the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = 50
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = 10 << 20
	}
	if len(c.Fetch.UserAgents) == 0 {
		c.Fetch.UserAgents = slices.Clone(defaultUserAgents)
	}

	if c.Extract.StaleAfter <= 0 {
		c.Extract.StaleAfter = 24 * time.Hour
	}
	if c.Extract.Tolerance <= 0 {
		c.Extract.Tolerance = 4
	}
	if c.Extract.MinWords <= 0 {
		c.Extract.MinWords = 100
	}
	if c.Extract.NonArticleTypes == nil {
		c.Extract.NonArticleTypes = []string{"VideoObject", "LiveBlogPosting"}
	}
	if c.Extract.OrderSample <= 0 {
		c.Extract.OrderSample = 5
	}
	if c.Extract.HeaderSelector == "" {
		c.Extract.HeaderSelector = "script[type='application/ld+json']"
	}

	if c.Summarize.Provider == "" {
		c.Summarize.Provider = "gemini"
	}
	if c.Summarize.Model == "" {
		c.Summarize.Model = defaultModel(c.Summarize.Provider)
	}
	if c.Summarize.Concurrency <= 0 {
		c.Summarize.Concurrency = 5
	}
	if c.Summarize.Temperature == 0 {
		c.Summarize.Temperature = 0.5
	}
	if c.Summarize.MaxTokens <= 0 {
		c.Summarize.MaxTokens = 1000
	}

	if c.Group.MinSamples <= 0 {
		c.Group.MinSamples = 2
	}
	if len(c.Group.Grid.Components) == 0 {
		c.Group.Grid.Components = []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	}
	if len(c.Group.Grid.Eps) == 0 {
		c.Group.Grid.Eps = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}

	if c.Monitoring.Addr == "" {
		c.Monitoring.Addr = ":8080"
	}
	if c.Monitoring.Schedule == "" {
		c.Monitoring.Schedule = "0 */2 * * *"
	}
}

func (c *Config) applyEnv() {
	c.Summarize.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	c.Summarize.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	if p := os.Getenv("NEWSAI_PROVIDER"); p != "" && p != c.Summarize.Provider {
		c.Summarize.Provider = p
		c.Summarize.Model = getEnvOrDefault("NEWSAI_MODEL", defaultModel(p))
	} else {
		c.Summarize.Model = getEnvOrDefault("NEWSAI_MODEL", c.Summarize.Model)
	}

	c.Storage.DataDir = getEnvOrDefault("NEWSAI_DATA_DIR", c.Storage.DataDir)
	c.Storage.Backend = getEnvOrDefault("NEWSAI_STORAGE", c.Storage.Backend)
	c.Monitoring.Addr = getEnvOrDefault("NEWSAI_ADDR", c.Monitoring.Addr)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)

	if v := getEnvIntOrDefault("FETCH_CONCURRENCY", 0); v > 0 {
		c.Fetch.Concurrency = v
	}
	if v := getEnvIntOrDefault("SUMMARY_CONCURRENCY", 0); v > 0 {
		c.Summarize.Concurrency = v
	}
	if v := getEnvIntOrDefault("MAX_SUMMARY_REQUESTS", -1); v >= 0 {
		c.Summarize.MaxRequests = v
	}
	if v := os.Getenv("STALE_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Extract.StaleAfter = d
		}
	}

	if os.Getenv("DEBUG") == "true" {
		c.Log.Level = "debug"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func defaultModel(provider string) string {
	if provider == "openai" {
		return "gpt-3.5-turbo-0125"
	}
	return "gemini-1.5-flash"
}

// Validate checks structural consistency. API keys are checked when a
// summarization client is built, since crawl-only runs do not need them.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Sections) == 0 {
		errs = append(errs, &ValidationError{Field: "sections", Message: "at least one section is required"})
	}
	for i, s := range c.Sections {
		field := fmt.Sprintf("sections[%d]", i)
		if s.URL == "" {
			errs = append(errs, &ValidationError{Field: field + ".url", Message: "is required"})
		}
		src, ok := c.Sources[s.Source]
		if !ok {
			errs = append(errs, &ValidationError{Field: field + ".source", Message: fmt.Sprintf("unknown source %q", s.Source)})
			continue
		}
		if !src.Feed && src.LinkSelector == "" {
			errs = append(errs, &ValidationError{Field: "sources." + s.Source + ".link_selector", Message: "is required for html sources"})
		}
	}

	switch c.Summarize.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, &ValidationError{Field: "summarize.provider", Message: "must be one of: gemini, openai"})
	}
	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, &ValidationError{Field: "storage.backend", Message: "must be one of: file, sqlite"})
	}

	for _, n := range c.Group.Grid.Components {
		if n < 1 {
			errs = append(errs, &ValidationError{Field: "group.grid.components", Message: "values must be positive"})
			break
		}
	}
	for _, e := range c.Group.Grid.Eps {
		if e <= 0 {
			errs = append(errs, &ValidationError{Field: "group.grid.eps", Message: "values must be positive"})
			break
		}
	}

	return errors.Join(errs...)
}

// Source returns the selector config for name.
func (c *Config) Source(name string) (SourceConfig, bool) {
	s, ok := c.Sources[name]
	if ok && s.HeaderSelector == "" {
		s.HeaderSelector = c.Extract.HeaderSelector
	}
	return s, ok
}

// SourceNames returns the configured source names in section order.
func (c *Config) SourceNames() []string {
	var names []string
	for _, s := range c.Sections {
		if !slices.Contains(names, s.Source) {
			names = append(names, s.Source)
		}
	}
	return names
}


var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/86.0.4240.93 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.82 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:86.0) Gecko/20100101 Firefox/86.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.82 Safari/537.36 Edg/89.0.774.57",
	"Mozilla/5.0 (Linux; Android 10; SM-G960F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.152 Mobile Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 14_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (X11; Linux x86_64; rv:86.0) Gecko/20100101 Firefox/86.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/62.0.3202.94 Safari/537.36 OPR/49.0.2725.64",
}
