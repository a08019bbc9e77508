package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database     DatabaseConfig     `json:"database"`
	Port         int                `json:"port"`
	HTTP         HTTPConfig         `json:"http"`
	LogConfig    logger.LogConfig   `json:"log_config"`
	Github       GithubConfig       `json:"github"`
	Embedding    EmbeddingConfig    `json:"embedding"`
	Chunker      ChunkerConfig      `json:"chunker"`
	Search       SearchConfig       `json:"search"`
	Sync         SyncConfig         `json:"sync"`
	ArchiveCache *FileStoreConfig   `json:"archive_cache"`
	CacheCleanup CacheCleanupConfig `json:"cache_cleanup"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type HTTPConfig struct {
	CORSOrigins     []string `json:"cors_origins"`
	SyncRateLimitMs int      `json:"sync_rate_limit_ms"`
}

type GithubConfig struct {
	Token          string         `json:"token"`
	APIBaseURL     string         `json:"api_base_url"`
	RawBaseURL     string         `json:"raw_base_url"`
	ArchiveBaseURL string         `json:"archive_base_url"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	Archive        ArchiveConfig  `json:"archive"`
	Tree           TreeConfig     `json:"tree"`
	Contents       ContentsConfig `json:"contents"`
}

type ArchiveConfig struct {
	Enabled  *bool `json:"enabled"`
	Priority int   `json:"priority"`
	MaxBytes int64 `json:"max_bytes"`
}

type TreeConfig struct {
	Enabled  *bool `json:"enabled"`
	Priority int   `json:"priority"`
}

type ContentsConfig struct {
	Enabled            *bool `json:"enabled"`
	Priority           int   `json:"priority"`
	DelayMs            int   `json:"delay_ms"`
	MaxRequestsPerSync int   `json:"max_requests_per_sync"`
	RetryCount         int   `json:"retry_count"`
	RetryDelayMs       int   `json:"retry_delay_ms"`
	RateLimitWaitMs    int   `json:"rate_limit_wait_ms"`
}

type EmbeddingConfig struct {
	Providers     []EmbeddingProviderConfig `json:"providers"`
	Dimensions    int                       `json:"dimensions"`
	BatchSize     int                       `json:"batch_size"`
	LruSize       int                       `json:"lru_size"`
	LruTTLSeconds int                       `json:"lru_ttl_seconds"`
	DBCache       bool                      `json:"db_cache"`
}

type EmbeddingProviderConfig struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type ChunkerConfig struct {
	MaxChunkChars int `json:"max_chunk_chars"`
	OverlapChars  int `json:"overlap_chars"`
}

type SearchConfig struct {
	RRFK                float64 `json:"rrf_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	DefaultLimit        int     `json:"default_limit"`
	HNSWEFSearch        int     `json:"hnsw_ef_search"`
	HNSWIterativeScan   string  `json:"hnsw_iterative_scan"`
}

type SyncConfig struct {
	Workers         int          `json:"workers"`
	QueueSize       int          `json:"queue_size"`
	ScheduleEnabled bool         `json:"schedule_enabled"`
	Cron            string       `json:"cron"`
	Targets         []SyncTarget `json:"targets"`
}

type SyncTarget struct {
	VersionID string `json:"version_id"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	DocsPath  string `json:"docs_path"`
	Ref       string `json:"ref"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type CacheCleanupConfig struct {
	Cron            string `json:"cron"`
	MaxAgeDays      int    `json:"max_age_days"`
	SyncHistoryDays int    `json:"sync_history_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.HTTP.SyncRateLimitMs < 0 {
		c.HTTP.SyncRateLimitMs = 0
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if len(c.Embedding.Providers) == 0 {
		return fmt.Errorf("embedding.providers is required")
	}
	for i, p := range c.Embedding.Providers {
		if strings.TrimSpace(p.Provider) == "" || strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("embedding.providers[%d] provider/model are required", i)
		}
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	c.applyGithubDefaults()
	if c.Search.RRFK <= 0 {
		c.Search.RRFK = 60
	}
	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search.similarity_threshold must be within [0, 1]")
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.HNSWEFSearch < 0 || c.Search.HNSWEFSearch > 1000 {
		return fmt.Errorf("search.hnsw_ef_search must be within [0, 1000]")
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 2
	}
	if c.Sync.QueueSize <= 0 {
		c.Sync.QueueSize = 16
	}
	if c.Sync.Cron == "" {
		c.Sync.Cron = "0 2 * * *"
	}
	for i, t := range c.Sync.Targets {
		if t.VersionID == "" || t.Owner == "" || t.Repo == "" || t.Ref == "" {
			return fmt.Errorf("sync.targets[%d] version_id/owner/repo/ref are required", i)
		}
		if t.DocsPath == "" {
			c.Sync.Targets[i].DocsPath = "docs"
		}
	}
	if c.ArchiveCache != nil && c.ArchiveCache.Type == "" {
		c.ArchiveCache.Type = "local"
	}
	if c.CacheCleanup.Cron == "" {
		c.CacheCleanup.Cron = "30 3 * * *"
	}
	if c.CacheCleanup.MaxAgeDays <= 0 {
		c.CacheCleanup.MaxAgeDays = 30
	}
	if c.CacheCleanup.SyncHistoryDays <= 0 {
		c.CacheCleanup.SyncHistoryDays = 90
	}
	return nil
}

func (c *Config) applyGithubDefaults() {
	g := &c.Github
	if g.APIBaseURL == "" {
		g.APIBaseURL = "https://api.github.com"
	}
	if g.RawBaseURL == "" {
		g.RawBaseURL = "https://raw.githubusercontent.com"
	}
	if g.ArchiveBaseURL == "" {
		g.ArchiveBaseURL = "https://github.com"
	}
	if g.TimeoutSeconds <= 0 {
		g.TimeoutSeconds = 30
	}
	if g.Archive.Priority == 0 {
		g.Archive.Priority = 1
	}
	if g.Archive.MaxBytes <= 0 {
		g.Archive.MaxBytes = 100 << 20
	}
	if g.Tree.Priority == 0 {
		g.Tree.Priority = 2
	}
	if g.Contents.Priority == 0 {
		g.Contents.Priority = 3
	}
	if g.Contents.DelayMs < 0 {
		g.Contents.DelayMs = 0
	}
	if g.Contents.MaxRequestsPerSync <= 0 {
		g.Contents.MaxRequestsPerSync = 500
	}
	if g.Contents.RetryCount <= 0 {
		g.Contents.RetryCount = 3
	}
	if g.Contents.RetryDelayMs <= 0 {
		g.Contents.RetryDelayMs = 1000
	}
	if g.Contents.RateLimitWaitMs <= 0 {
		g.Contents.RateLimitWaitMs = 60000
	}
}

// IsEnabled treats a missing flag as enabled.
func IsEnabled(flag *bool) bool {
	return flag == nil || *flag
}
