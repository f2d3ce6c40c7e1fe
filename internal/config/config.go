package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	VectorDB VectorDBConfig `yaml:"vector_db"`
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	InferLLM LLMConfig      `yaml:"infer_llm"`
	RAG      RAGConfig      `yaml:"rag"`
}

type VectorDBConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key"`
	Dimensions    int    `yaml:"dimensions"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

type RAGConfig struct {
	DataDir          string        `yaml:"data_dir"`
	ChunkSize        int           `yaml:"chunk_size"`
	ChunkOverlap     int           `yaml:"chunk_overlap"`
	BatchSize        int           `yaml:"batch_size"`
	MaxFileSize      int64         `yaml:"max_file_size"`
	MinQualityScore  float64       `yaml:"min_quality_score"`
	MinSimilarity    float64       `yaml:"min_similarity"`
	DefaultLimit     int           `yaml:"default_limit"`
	MaxLimit         int           `yaml:"max_limit"`
	ContextMaxTokens int           `yaml:"context_max_tokens"`
	QueryTimeout     time.Duration `yaml:"query_timeout"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in the zero-valued knobs.
func (c *Config) ApplyDefaults() {
	if c.VectorDB.Path == "" {
		c.VectorDB.Path = "./chromemdb"
	}
	if c.VectorDB.Collection == "" {
		c.VectorDB.Collection = "lesson_materials"
	}
	if c.VectorDB.Dimensions == 0 {
		c.VectorDB.Dimensions = 384
	}
	if c.RAG.DataDir == "" {
		c.RAG.DataDir = "./rag_data/chunks"
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 1000
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 500
	}
	if c.RAG.BatchSize == 0 {
		c.RAG.BatchSize = 100
	}
	if c.RAG.MaxFileSize == 0 {
		c.RAG.MaxFileSize = 10 * 1024 * 1024
	}
	if c.RAG.MinQualityScore == 0 {
		c.RAG.MinQualityScore = 0.3
	}
	if c.RAG.MinSimilarity == 0 {
		c.RAG.MinSimilarity = 0.3
	}
	if c.RAG.DefaultLimit == 0 {
		c.RAG.DefaultLimit = 5
	}
	if c.RAG.MaxLimit == 0 {
		c.RAG.MaxLimit = 20
	}
	if c.RAG.ContextMaxTokens == 0 {
		c.RAG.ContextMaxTokens = 2000
	}
	if c.RAG.QueryTimeout == 0 {
		c.RAG.QueryTimeout = 30 * time.Second
	}
}

// Default returns a config with every default applied, for callers that run
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
