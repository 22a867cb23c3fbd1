package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port string `toml:"port"`
	Mode string `toml:"mode"` // "dev" or "prod", drives logger setup
}

type GraphConfig struct {
	// Backend selects the Graph Store implementation: "memory" or "memgraph".
	Backend      string `toml:"backend"`
	URI          string `toml:"uri"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	VisitCeiling int    `toml:"visit_ceiling"`
	MaxHopsCap   int    `toml:"max_hops_cap"`
}

type PassageConfig struct {
	Path string `toml:"path"`
}

type OntologyConfig struct {
	Path string `toml:"path"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type IngestConfig struct {
	// SourceDir and SourceURLs are re-scraped every cycle.
	SourceDir           string   `toml:"source_dir"`
	SourceURLs          []string `toml:"source_urls"`
	AliasMatchThreshold float64  `toml:"alias_match_threshold"`
	RuleConfidence      float64  `toml:"rule_confidence"`
	TableConfidence     float64  `toml:"table_confidence"`
	CorroborationBonus  float64  `toml:"corroboration_bonus"`
	MaxConfidence       float64  `toml:"max_confidence"`
	Parallelism         int      `toml:"parallelism"`
	RescrapeInterval    string   `toml:"rescrape_interval"`
	UseModelExtraction  bool     `toml:"use_model_extraction"`
}

type QueryConfig struct {
	TimeoutMS     int `toml:"timeout_ms"`
	FallbackLimit int `toml:"fallback_limit"`
}

type AnswerConfig struct {
	MinConfidence float64 `toml:"min_confidence"`
	UseGenerative bool    `toml:"use_generative"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Graph    GraphConfig    `toml:"graph"`
	Passages PassageConfig  `toml:"passages"`
	Ontology OntologyConfig `toml:"ontology"`
	LLM      LLMConfig      `toml:"llm"`
	Ingest   IngestConfig   `toml:"ingest"`
	Query    QueryConfig    `toml:"query"`
	Answer   AnswerConfig   `toml:"answer"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config usable without a file on disk, e.g. in tests and
// the CLI's memory-backend mode.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Graph.Backend == "" {
		c.Graph.Backend = "memory"
	}
	if c.Graph.VisitCeiling == 0 {
		c.Graph.VisitCeiling = 500
	}
	if c.Graph.MaxHopsCap == 0 {
		c.Graph.MaxHopsCap = 3
	}
	if c.Passages.Path == "" {
		c.Passages.Path = "drishti.db"
	}
	if c.Ingest.AliasMatchThreshold == 0 {
		c.Ingest.AliasMatchThreshold = 0.82
	}
	if c.Ingest.RuleConfidence == 0 {
		c.Ingest.RuleConfidence = 0.75
	}
	if c.Ingest.TableConfidence == 0 {
		c.Ingest.TableConfidence = 0.9
	}
	if c.Ingest.CorroborationBonus == 0 {
		c.Ingest.CorroborationBonus = 0.05
	}
	if c.Ingest.MaxConfidence == 0 {
		c.Ingest.MaxConfidence = 0.99
	}
	if c.Ingest.Parallelism == 0 {
		c.Ingest.Parallelism = 4
	}
	if c.Query.TimeoutMS == 0 {
		c.Query.TimeoutMS = 5000
	}
	if c.Query.FallbackLimit == 0 {
		c.Query.FallbackLimit = 3
	}
	if c.Answer.MinConfidence == 0 {
		c.Answer.MinConfidence = 0.5
	}
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Query.TimeoutMS) * time.Millisecond
}

func (c *Config) RescrapeInterval() time.Duration {
	d, err := time.ParseDuration(c.Ingest.RescrapeInterval)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}
