// Package config loads ingestor settings from YAML, .env files and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, then INGESTOR_*
// environment variables (which a .env file may populate). Environment names
// are the dotted key upper-cased with dots replaced by underscores, so
// splitter.chunk_size is INGESTOR_SPLITTER_CHUNK_SIZE.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/ingestor/ai"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Vector store backends.
const (
	BackendBadger = "badger"
	BackendQdrant = "qdrant"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INGESTOR"

type Config struct {
	Collection  string            `mapstructure:"collection" yaml:"collection"`
	Splitter    SplitterConfig    `mapstructure:"splitter" yaml:"splitter"`
	Checkpoint  CheckpointConfig  `mapstructure:"checkpoint" yaml:"checkpoint"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store" yaml:"vector_store"`
	S3          S3Config          `mapstructure:"s3" yaml:"s3"`
	Ingest      IngestConfig      `mapstructure:"ingest" yaml:"ingest"`
	Search      SearchConfig      `mapstructure:"search" yaml:"search"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`

	v *viper.Viper
}

type SplitterConfig struct {
	Mode         string `mapstructure:"mode" yaml:"mode"` // "characters" or "tokens"
	ChunkSize    int    `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
}

// CheckpointConfig locates the document store holding checkpoint records.
type CheckpointConfig struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Path      string `mapstructure:"path" yaml:"path"`
}

type EmbeddingConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Host        string        `mapstructure:"host" yaml:"host"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BatchSize   int           `mapstructure:"batch_size" yaml:"batch_size"`
	PoolSize    int           `mapstructure:"pool_size" yaml:"pool_size"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

type VectorStoreConfig struct {
	Backend string       `mapstructure:"backend" yaml:"backend"`
	Qdrant  QdrantConfig `mapstructure:"qdrant" yaml:"qdrant"`
}

type QdrantConfig struct {
	Host   string `mapstructure:"host" yaml:"host"`
	Port   int    `mapstructure:"port" yaml:"port"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	UseTLS bool   `mapstructure:"use_tls" yaml:"use_tls"`
}

type S3Config struct {
	Region string `mapstructure:"region" yaml:"region"`
}

type IngestConfig struct {
	Extension  string `mapstructure:"extension" yaml:"extension"`
	ScratchDir string `mapstructure:"scratch_dir" yaml:"scratch_dir"`
}

type SearchConfig struct {
	MinScore float32 `mapstructure:"min_score" yaml:"min_score"`
	MaxHits  int     `mapstructure:"max_hits" yaml:"max_hits"`
}

type ServerConfig struct {
	Addr           string `mapstructure:"addr" yaml:"addr"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// setDefaults registers every key. Viper only consults the environment for
// keys it knows about, so keys without a meaningful default are set empty.
func setDefaults(v *viper.Viper) {
	embedding := ai.DefaultConfig()

	v.SetDefault("collection", "documents")

	v.SetDefault("splitter.mode", "characters")
	v.SetDefault("splitter.chunk_size", 512)
	v.SetDefault("splitter.chunk_overlap", 128)

	v.SetDefault("checkpoint.namespace", "default")
	v.SetDefault("checkpoint.path", "data")

	v.SetDefault("embedding.provider", embedding.Provider)
	v.SetDefault("embedding.host", embedding.Host)
	v.SetDefault("embedding.model", embedding.Model)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.batch_size", embedding.BatchSize)
	v.SetDefault("embedding.pool_size", 0)
	v.SetDefault("embedding.max_attempts", 3)
	v.SetDefault("embedding.retry_delay", 500*time.Millisecond)

	v.SetDefault("vector_store.backend", BackendBadger)
	v.SetDefault("vector_store.qdrant.host", "localhost")
	v.SetDefault("vector_store.qdrant.port", 6334)
	v.SetDefault("vector_store.qdrant.api_key", "")
	v.SetDefault("vector_store.qdrant.use_tls", false)

	v.SetDefault("s3.region", "")

	v.SetDefault("ingest.extension", ".pdf")
	v.SetDefault("ingest.scratch_dir", "")

	v.SetDefault("search.min_score", 0.3)
	v.SetDefault("search.max_hits", 5)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_bytes", int64(64<<20))
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.v = v
	return &cfg, nil
}

// Default returns the built-in configuration. The environment is not consulted.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		// defaults are literals of the right types
		panic(err)
	}
	return cfg
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return unmarshal(v)
}

// LoadDotEnv loads variables from .env files into the process environment.
// Existing variables win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// AIConfig returns the embedding settings as an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(c.Embedding.Provider),
		ai.WithHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithBatchSize(c.Embedding.BatchSize),
	)
}

// Validate checks invariants across sections.
func (c *Config) Validate() error {
	if c.Collection == "" || strings.Contains(c.Collection, ":") {
		return fmt.Errorf("config: invalid collection %q", c.Collection)
	}
	if c.Checkpoint.Namespace == "" || strings.Contains(c.Checkpoint.Namespace, ":") {
		return fmt.Errorf("config: invalid checkpoint namespace %q", c.Checkpoint.Namespace)
	}
	if c.Checkpoint.Path == "" {
		return errors.New("config: checkpoint.path is required")
	}
	switch c.Splitter.Mode {
	case "characters", "tokens":
	default:
		return fmt.Errorf("config: unknown splitter mode %q", c.Splitter.Mode)
	}
	if c.Splitter.ChunkSize <= 0 {
		return errors.New("config: splitter.chunk_size must be positive")
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return errors.New("config: splitter.chunk_overlap must be at least 0 and less than chunk_size")
	}
	if c.Embedding.MaxAttempts < 1 {
		return errors.New("config: embedding.max_attempts must be at least 1")
	}
	if err := c.AIConfig().Validate(); err != nil {
		return err
	}
	switch c.VectorStore.Backend {
	case BackendBadger:
	case BackendQdrant:
		if c.VectorStore.Qdrant.Host == "" || c.VectorStore.Qdrant.Port <= 0 {
			return errors.New("config: vector_store.qdrant host and port are required")
		}
	default:
		return fmt.Errorf("config: unknown vector store backend %q", c.VectorStore.Backend)
	}
	if c.Search.MaxHits < 1 {
		return errors.New("config: search.max_hits must be at least 1")
	}
	return nil
}

// Get looks up a dotted key such as "splitter.chunk_size" in the sources
// the Config was loaded from, returning def when no source sets it.
// Values keep the type their source gave them; environment values are strings.
// Changes made to the struct after loading are not visible here.
func (c *Config) Get(key string, def any) any {
	if c.v == nil || !c.v.IsSet(key) {
		return def
	}
	return c.v.Get(key)
}

const redacted = "********"

// YAML renders the effective configuration with API keys masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	out.v = nil
	if out.Embedding.APIKey != "" {
		out.Embedding.APIKey = redacted
	}
	if out.VectorStore.Qdrant.APIKey != "" {
		out.VectorStore.Qdrant.APIKey = redacted
	}
	return yaml.Marshal(&out)
}
