package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // postgres | mysql
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	OpenAI struct {
		BaseURL        string `yaml:"baseURL"` // empty means the public API
		ChatModel      string `yaml:"chatModel"`
		EmbeddingModel string `yaml:"embeddingModel"`
		EmbeddingDim   int    `yaml:"embeddingDim"`
	} `yaml:"openai"`

	Retrieval struct {
		FraudPatterns     int `yaml:"fraudPatterns"`
		Compliance        int `yaml:"compliance"`
		RiskHeuristics    int `yaml:"riskHeuristics"`
		CategoryTimeoutMS int `yaml:"categoryTimeoutMs"`
		ContextBudget     int `yaml:"contextBudget"`
	} `yaml:"retrieval"`

	Status struct {
		LowMax    int `yaml:"lowMax"`
		MediumMax int `yaml:"mediumMax"`
	} `yaml:"status"`

	Audit struct {
		Enabled         bool   `yaml:"enabled"`
		BaseURL         string `yaml:"baseUrl"`
		CreateTimeoutMS int    `yaml:"createTimeoutMs"`
	} `yaml:"audit"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Knowledge struct {
		Dir string `yaml:"dir"`
	} `yaml:"knowledge"`
}

// Load reads the YAML config file and applies defaults. Secrets (the
// OpenAI and audit API keys) come from the environment, never the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.OpenAI.EmbeddingDim == 0 {
		c.OpenAI.EmbeddingDim = 1536
	}
	if c.Retrieval.FraudPatterns == 0 {
		c.Retrieval.FraudPatterns = 3
	}
	if c.Retrieval.Compliance == 0 {
		c.Retrieval.Compliance = 2
	}
	if c.Retrieval.RiskHeuristics == 0 {
		c.Retrieval.RiskHeuristics = 2
	}
	if c.Retrieval.CategoryTimeoutMS == 0 {
		c.Retrieval.CategoryTimeoutMS = 5000
	}
	if c.Retrieval.ContextBudget == 0 {
		c.Retrieval.ContextBudget = 12000
	}
	if c.Status.LowMax == 0 {
		c.Status.LowMax = 30
	}
	if c.Status.MediumMax == 0 {
		c.Status.MediumMax = 50
	}
	if c.Audit.CreateTimeoutMS == 0 {
		c.Audit.CreateTimeoutMS = 2000
	}
	if c.Knowledge.Dir == "" {
		c.Knowledge.Dir = "knowledge"
	}
}

// OpenAIKey reads the provider secret from the environment.
func OpenAIKey() string { return os.Getenv("OPENAI_API_KEY") }

// AuditKey reads the audit service secret from the environment.
func AuditKey() string { return os.Getenv("BACKBOARD_API_KEY") }

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// MySQLDSN builds the go-sql-driver connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}
