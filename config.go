package docgraph

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/docgraph/chunker"
	"github.com/brunobiangulo/docgraph/rag"
	"github.com/brunobiangulo/docgraph/store"
)

// Config holds all configuration for the docgraph engine.
type Config struct {
	// Extraction is the backend used to pull triplets out of chunks.
	Extraction LLMConfig `json:"extraction" yaml:"extraction"`
	// Answering is the backend used for document question answering.
	Answering LLMConfig `json:"answering" yaml:"answering"`

	Graph store.Config `json:"graph" yaml:"graph"`

	// Chunking, in characters.
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Graph building
	ExtractConcurrency  int `json:"extract_concurrency" yaml:"extract_concurrency"`     // parallel extraction calls
	ChunkTimeoutSeconds int `json:"chunk_timeout_seconds" yaml:"chunk_timeout_seconds"` // per-chunk extraction ceiling

	// RequestsPerSecond throttles each backend. Zero disables throttling.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// MaxContextChars bounds the document text sent with a question.
	// Zero disables the check.
	MaxContextChars int `json:"max_context_chars" yaml:"max_context_chars"`

	// MaxDocumentBytes rejects larger uploads. Zero disables the check.
	MaxDocumentBytes int64 `json:"max_document_bytes" yaml:"max_document_bytes"`
}

// LLMConfig configures a single generative backend endpoint.
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // groq, openai, openrouter, ollama, custom
	Model       string  `json:"model" yaml:"model"`
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	APIKey      string  `json:"api_key" yaml:"api_key"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// DefaultConfig returns a Config that talks to Groq and a local Neo4j.
// API keys are left empty; LoadConfig fills them from the environment.
func DefaultConfig() Config {
	return Config{
		Extraction: LLMConfig{
			Provider:    "groq",
			Model:       "qwen/qwen3-32b",
			Temperature: 0.2,
		},
		Answering: LLMConfig{
			Provider:    "groq",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.5,
		},
		Graph: store.Config{
			Backend: "neo4j",
			URI:     "bolt://localhost:7687",
			User:    "neo4j",
			Path:    "docgraph.db",
		},
		ChunkSize:           chunker.DefaultMaxSize,
		ChunkOverlap:        chunker.DefaultOverlap,
		ExtractConcurrency:  4,
		ChunkTimeoutSeconds: 90,
		MaxContextChars:     rag.DefaultMaxContextChars,
		MaxDocumentBytes:    32 << 20,
	}
}

// LoadConfig builds a Config from defaults, an optional .env file in the
// working directory, an optional YAML or JSON file at path, and environment
// variables, in increasing precedence. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ReadConfig is LoadConfig without validation, for callers that apply
// further overrides first.
func ReadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: loading .env: %v", ErrInvalidConfig, err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		// YAML is a superset of JSON, so one decoder serves both.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables. The unprefixed names are the
// ones the original web app read.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	var errs []error
	num := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			if err := set(strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %v", key, v, err))
			}
		}
	}
	intVar := func(dst *int) func(string) error {
		return func(s string) error {
			n, err := strconv.Atoi(s)
			*dst = n
			return err
		}
	}
	floatVar := func(dst *float64) func(string) error {
		return func(s string) error {
			f, err := strconv.ParseFloat(s, 64)
			*dst = f
			return err
		}
	}

	for _, side := range []struct {
		prefix string
		cfg    *LLMConfig
	}{
		{"DOCGRAPH_EXTRACTION_", &c.Extraction},
		{"DOCGRAPH_ANSWERING_", &c.Answering},
	} {
		str(&side.cfg.Provider, side.prefix+"PROVIDER")
		str(&side.cfg.Model, side.prefix+"MODEL")
		str(&side.cfg.BaseURL, side.prefix+"BASE_URL")
		str(&side.cfg.APIKey, side.prefix+"API_KEY")
		num(side.prefix+"TEMPERATURE", floatVar(&side.cfg.Temperature))
		if side.cfg.APIKey == "" {
			if k := providerKeyEnv(side.cfg.Provider); k != "" {
				str(&side.cfg.APIKey, k)
			}
		}
	}

	str(&c.Graph.Backend, "DOCGRAPH_GRAPH_BACKEND")
	str(&c.Graph.URI, "DOCGRAPH_NEO4J_URI", "NEO4J_URI")
	str(&c.Graph.User, "DOCGRAPH_NEO4J_USER", "NEO4J_USER")
	str(&c.Graph.Password, "DOCGRAPH_NEO4J_PASSWORD", "NEO4J_PASSWORD")
	str(&c.Graph.Database, "DOCGRAPH_NEO4J_DATABASE", "NEO4J_DATABASE")
	str(&c.Graph.Path, "DOCGRAPH_SQLITE_PATH")

	num("DOCGRAPH_CHUNK_SIZE", intVar(&c.ChunkSize))
	num("DOCGRAPH_CHUNK_OVERLAP", intVar(&c.ChunkOverlap))
	num("DOCGRAPH_EXTRACT_CONCURRENCY", intVar(&c.ExtractConcurrency))
	num("DOCGRAPH_CHUNK_TIMEOUT_SECONDS", intVar(&c.ChunkTimeoutSeconds))
	num("DOCGRAPH_REQUESTS_PER_SECOND", floatVar(&c.RequestsPerSecond))
	num("DOCGRAPH_MAX_CONTEXT_CHARS", intVar(&c.MaxContextChars))
	num("DOCGRAPH_MAX_DOCUMENT_BYTES", func(s string) error {
		n, err := strconv.ParseInt(s, 10, 64)
		c.MaxDocumentBytes = n
		return err
	})

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// providerKeyEnv names the conventional API key variable for a provider.
func providerKeyEnv(provider string) string {
	switch provider {
	case "groq":
		return "GROQ_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	}
	return ""
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	for _, side := range []struct {
		name string
		cfg  LLMConfig
	}{
		{"extraction", c.Extraction},
		{"answering", c.Answering},
	} {
		switch side.cfg.Provider {
		case "groq", "openai", "openrouter":
			if side.cfg.APIKey == "" {
				return invalid("%s.api_key is required for provider %q", side.name, side.cfg.Provider)
			}
		case "ollama":
		case "custom":
			if side.cfg.BaseURL == "" {
				return invalid("%s.base_url is required for provider \"custom\"", side.name)
			}
		case "":
			return invalid("%s.provider is required", side.name)
		default:
			return invalid("%s.provider %q is not supported", side.name, side.cfg.Provider)
		}
		if side.cfg.Model == "" {
			return invalid("%s.model is required", side.name)
		}
		if side.cfg.Temperature < 0 || side.cfg.Temperature > 2 {
			return invalid("%s.temperature %.2f is outside [0, 2]", side.name, side.cfg.Temperature)
		}
	}

	switch c.Graph.Backend {
	case "neo4j":
		if c.Graph.URI == "" {
			return invalid("graph.uri is required for the neo4j backend")
		}
	case "sqlite":
		if c.Graph.Path == "" {
			return invalid("graph.path is required for the sqlite backend")
		}
	case "memory":
	default:
		return invalid("graph.backend %q is not one of neo4j, sqlite, memory", c.Graph.Backend)
	}

	if c.ChunkSize <= 0 {
		return invalid("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return invalid("chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap)
	}
	if c.ExtractConcurrency < 0 {
		return invalid("extract_concurrency must not be negative")
	}
	if c.ChunkTimeoutSeconds < 0 {
		return invalid("chunk_timeout_seconds must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return invalid("requests_per_second must not be negative")
	}
	if c.MaxContextChars < 0 {
		return invalid("max_context_chars must not be negative")
	}
	if c.MaxDocumentBytes < 0 {
		return invalid("max_document_bytes must not be negative")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Extraction.APIKey = mask(c.Extraction.APIKey)
	c.Answering.APIKey = mask(c.Answering.APIKey)
	c.Graph.Password = mask(c.Graph.Password)
	return c
}
