package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Discovery  DiscoveryConfig  `yaml:"discovery" json:"discovery" jsonschema:"description=Listing discovery configuration"`
	Browser    BrowserConfig    `yaml:"browser" json:"browser" jsonschema:"description=Page fetching configuration"`
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Profile field extraction configuration"`
	Job        JobConfig        `yaml:"job" json:"job" jsonschema:"description=Batching and retry configuration shared by both stages"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint" jsonschema:"description=Checkpoint storage configuration"`
	LLM        LLMConfig        `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for profile scoring"`
	Rubric     RubricConfig     `yaml:"rubric" json:"rubric" jsonschema:"description=Evaluation rubric files"`

	Server struct {
		Listen    string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
		ViewerDir string        `yaml:"viewer_dir" json:"viewer_dir" jsonschema:"description=Directory with static viewer files (optional)"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Metrics struct {
		Listen string `yaml:"listen" json:"listen" jsonschema:"description=Listen address for metrics while scrape or score runs (optional)"`
	} `yaml:"metrics" json:"metrics" jsonschema:"description=Metrics configuration"`
}

// DiscoveryConfig holds listing walk settings
type DiscoveryConfig struct {
	RootURL       string   `yaml:"root_url" json:"root_url" jsonschema:"description=Listing root URL, page 1"`
	MaxPages      int      `yaml:"max_pages" json:"max_pages" jsonschema:"default=10,minimum=1,description=Maximum number of listing pages to walk"`
	PageFormat    string   `yaml:"page_format" json:"page_format" jsonschema:"default=%s?page=%d,description=Format for page URLs, gets root URL and page number"`
	LinkSelectors []string `yaml:"link_selectors" json:"link_selectors" jsonschema:"description=CSS selectors of profile links on a listing page"`
	LinkPattern   string   `yaml:"link_pattern" json:"link_pattern" jsonschema:"description=Regular expression profile links must match (optional)"`
}

// BrowserConfig holds page fetching settings
type BrowserConfig struct {
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Mozilla/5.0 (compatible; Profscout/1.0),description=User agent for HTTP requests"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Page load timeout"`
	Sessions  int           `yaml:"sessions" json:"sessions" jsonschema:"default=5,minimum=1,description=Maximum concurrently open browsing sessions"`
	RateLimit float64       `yaml:"rate_limit" json:"rate_limit" jsonschema:"default=0,description=Maximum page requests per second, 0 disables pacing"`
}

// FieldSelectors lists CSS selectors tried in order for each profile field
type FieldSelectors struct {
	Name          []string `yaml:"name" json:"name" jsonschema:"description=Selectors for the profile name"`
	Rating        []string `yaml:"rating" json:"rating" jsonschema:"description=Selectors for the numeric rating"`
	ReviewCount   []string `yaml:"review_count" json:"review_count" jsonschema:"description=Selectors for the review count"`
	About         []string `yaml:"about" json:"about" jsonschema:"description=Selectors for the about text"`
	ExtendedAbout []string `yaml:"extended_about" json:"extended_about" jsonschema:"description=Selectors for the extended about text"`
	Avatar        []string `yaml:"avatar" json:"avatar" jsonschema:"description=Selectors for the avatar image"`
}

// ExtractionConfig holds profile extraction settings
type ExtractionConfig struct {
	Selectors      FieldSelectors `yaml:"selectors" json:"selectors" jsonschema:"description=Field selectors"`
	RevealSelector string         `yaml:"reveal_selector" json:"reveal_selector" jsonschema:"description=Selector of the element revealing extended text (optional)"`
	RevealAttr     string         `yaml:"reveal_attr" json:"reveal_attr" jsonschema:"default=href,description=Attribute of the reveal element holding the URL of extended text"`
	RevealTimeout  time.Duration  `yaml:"reveal_timeout" json:"reveal_timeout" jsonschema:"default=5s,description=Bounded wait for revealed extended text"`
	NoReadability  bool           `yaml:"no_readability" json:"no_readability" jsonschema:"default=false,description=Disable readability extraction as the last fallback for about text"`
	MinTextLength  int            `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=40,description=Minimum length of readability fallback text"`
}

// JobConfig holds batching and retry settings
type JobConfig struct {
	BatchSize   int           `yaml:"batch_size" json:"batch_size" jsonschema:"default=10,minimum=1,description=Items per checkpointed batch"`
	Concurrency int           `yaml:"concurrency" json:"concurrency" jsonschema:"default=3,minimum=1,description=Maximum items in flight"`
	Stagger     time.Duration `yaml:"stagger" json:"stagger" jsonschema:"default=200ms,description=Start delay increment per position in a chunk"`
	ChunkDelay  time.Duration `yaml:"chunk_delay" json:"chunk_delay" jsonschema:"default=1s,description=Delay between chunks"`
	BatchDelay  time.Duration `yaml:"batch_delay" json:"batch_delay" jsonschema:"default=2s,description=Delay between checkpointed batches"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries" jsonschema:"default=0,minimum=0,description=Retries after the first failed attempt"`
	RetryDelay  time.Duration `yaml:"retry_delay" json:"retry_delay" jsonschema:"default=2s,description=Fixed delay between attempts"`
	RetryFailed bool          `yaml:"retry_failed" json:"retry_failed" jsonschema:"default=false,description=Reprocess failed records found in the checkpoint"`
}

// CheckpointConfig holds checkpoint storage settings
type CheckpointConfig struct {
	Driver     string `yaml:"driver" json:"driver" jsonschema:"default=file,enum=file,enum=sqlite,enum=s3,description=Checkpoint backend"`
	Dir        string `yaml:"dir" json:"dir" jsonschema:"default=data,description=Directory for file checkpoints"`
	DSN        string `yaml:"dsn" json:"dsn" jsonschema:"description=SQLite DSN for the sqlite driver"`
	Profiles   string `yaml:"profiles" json:"profiles" jsonschema:"default=profiles.json,description=Snapshot name of extracted profiles"`
	Scores     string `yaml:"scores" json:"scores" jsonschema:"default=scores.json,description=Snapshot name of scores"`
	S3Endpoint string `yaml:"s3_endpoint" json:"s3_endpoint" jsonschema:"description=S3-compatible endpoint for the s3 driver"`
	S3Region   string `yaml:"s3_region" json:"s3_region" jsonschema:"default=us-east-1,description=Region for the s3 driver"`
	S3Bucket   string `yaml:"s3_bucket" json:"s3_bucket" jsonschema:"description=Bucket for the s3 driver"`
	S3Prefix   string `yaml:"s3_prefix" json:"s3_prefix" jsonschema:"description=Object key prefix for the s3 driver"`
	S3Key      string `yaml:"s3_access_key" json:"s3_access_key" jsonschema:"description=Access key for the s3 driver"`
	S3Secret   string `yaml:"s3_secret_key" json:"s3_secret_key" jsonschema:"description=Secret key for the s3 driver"`
	S3Secure   bool   `yaml:"s3_secure" json:"s3_secure" jsonschema:"description=Use TLS for the s3 driver"`
}

// LLMConfig holds LLM configuration for profile scoring
type LLMConfig struct {
	Endpoint       string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey         string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model          string        `yaml:"model" json:"model" jsonschema:"default=gpt-4o-mini,description=Model name"`
	Temperature    float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.2,description=Temperature for response generation"`
	MaxTokens      int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=1200,description=Maximum tokens in response"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	SystemPrompt   string        `yaml:"system_prompt" json:"system_prompt" jsonschema:"description=System prompt for the LLM (optional)"`
	ResponseFormat string        `yaml:"response_format" json:"response_format" jsonschema:"default=text,enum=text,enum=json_object,enum=json_schema,description=Response format requested from the model"`
	MaxTextLength  int           `yaml:"max_text_length" json:"max_text_length" jsonschema:"default=6000,description=Profile text is truncated to this many characters"`
}

// RubricConfig points to the evaluation rubric files, YAML or JSON
type RubricConfig struct {
	PatientProfile string `yaml:"patient_profile" json:"patient_profile" jsonschema:"description=File with the patient profile"`
	Criteria       string `yaml:"criteria" json:"criteria" jsonschema:"description=File with evaluation criteria"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	// discovery
	if c.Discovery.MaxPages == 0 {
		c.Discovery.MaxPages = 10
	}
	if c.Discovery.PageFormat == "" {
		c.Discovery.PageFormat = "%s?page=%d"
	}
	if len(c.Discovery.LinkSelectors) == 0 {
		c.Discovery.LinkSelectors = []string{"a[href]"}
	}

	// browser
	if c.Browser.UserAgent == "" {
		c.Browser.UserAgent = "Mozilla/5.0 (compatible; Profscout/1.0)"
	}
	if c.Browser.Timeout == 0 {
		c.Browser.Timeout = 30 * time.Second
	}
	if c.Browser.Sessions == 0 {
		c.Browser.Sessions = 5
	}

	// extraction
	if c.Extraction.RevealAttr == "" {
		c.Extraction.RevealAttr = "href"
	}
	if c.Extraction.RevealTimeout == 0 {
		c.Extraction.RevealTimeout = 5 * time.Second
	}
	if c.Extraction.MinTextLength == 0 {
		c.Extraction.MinTextLength = 40
	}

	// job
	if c.Job.BatchSize == 0 {
		c.Job.BatchSize = 10
	}
	if c.Job.Concurrency == 0 {
		c.Job.Concurrency = 3
	}
	if c.Job.Stagger == 0 {
		c.Job.Stagger = 200 * time.Millisecond
	}
	if c.Job.ChunkDelay == 0 {
		c.Job.ChunkDelay = time.Second
	}
	if c.Job.BatchDelay == 0 {
		c.Job.BatchDelay = 2 * time.Second
	}
	if c.Job.RetryDelay == 0 {
		c.Job.RetryDelay = 2 * time.Second
	}

	// checkpoint
	if c.Checkpoint.Driver == "" {
		c.Checkpoint.Driver = "file"
	}
	if c.Checkpoint.Dir == "" {
		c.Checkpoint.Dir = "data"
	}
	if c.Checkpoint.DSN == "" {
		c.Checkpoint.DSN = "file:profscout.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Checkpoint.Profiles == "" {
		c.Checkpoint.Profiles = "profiles.json"
	}
	if c.Checkpoint.Scores == "" {
		c.Checkpoint.Scores = "scores.json"
	}

	// llm
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.2
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1200
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.LLM.ResponseFormat == "" {
		c.LLM.ResponseFormat = "text"
	}
	if c.LLM.MaxTextLength == 0 {
		c.LLM.MaxTextLength = 6000
	}

	// server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Discovery.MaxPages < 1 {
		return fmt.Errorf("discovery.max_pages must be at least 1")
	}
	if strings.Count(cfg.Discovery.PageFormat, "%") != 2 {
		return fmt.Errorf("discovery.page_format must contain root and page verbs, got %q", cfg.Discovery.PageFormat)
	}
	if cfg.Discovery.LinkPattern != "" {
		if _, err := regexp.Compile(cfg.Discovery.LinkPattern); err != nil {
			return fmt.Errorf("discovery.link_pattern: %w", err)
		}
	}

	if cfg.Browser.Sessions < 1 {
		return fmt.Errorf("browser.sessions must be at least 1")
	}
	if cfg.Browser.Timeout < time.Second {
		return fmt.Errorf("browser.timeout must be at least 1 second")
	}
	if cfg.Browser.RateLimit < 0 {
		return fmt.Errorf("browser.rate_limit must be non-negative")
	}

	if cfg.Job.BatchSize < 1 {
		return fmt.Errorf("job.batch_size must be at least 1")
	}
	if cfg.Job.Concurrency < 1 {
		return fmt.Errorf("job.concurrency must be at least 1")
	}
	if cfg.Job.MaxRetries < 0 {
		return fmt.Errorf("job.max_retries must be non-negative")
	}

	switch cfg.Checkpoint.Driver {
	case "file", "sqlite":
	case "s3":
		if cfg.Checkpoint.S3Endpoint == "" || cfg.Checkpoint.S3Bucket == "" {
			return fmt.Errorf("checkpoint.s3_endpoint and checkpoint.s3_bucket are required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown checkpoint.driver %q", cfg.Checkpoint.Driver)
	}

	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	switch cfg.LLM.ResponseFormat {
	case "text", "json_object", "json_schema":
	default:
		return fmt.Errorf("unknown llm.response_format %q", cfg.LLM.ResponseFormat)
	}

	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
