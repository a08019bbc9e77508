package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docindex/internal/ai"
	"github.com/xxxsen/docindex/internal/config"
	"github.com/xxxsen/docindex/internal/db"
	"github.com/xxxsen/docindex/internal/embedcache"
	"github.com/xxxsen/docindex/internal/filestore"
	"github.com/xxxsen/docindex/internal/github"
	"github.com/xxxsen/docindex/internal/local"
	"github.com/xxxsen/docindex/internal/parser"
	"github.com/xxxsen/docindex/internal/repo"
	"github.com/xxxsen/docindex/internal/service"
	"github.com/xxxsen/docindex/internal/vectorstore"
)

type app struct {
	db        *sql.DB
	syncRuns  *repo.SyncRunRepo
	cacheRepo *repo.EmbeddingCacheRepo
	syncSvc   *service.SyncService
	searchSvc *service.SearchService
}

// buildApp opens the database, applies migrations and wires the services.
func buildApp(cfg *config.Config) (*app, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn, cfg.Embedding.Dimensions); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	cacheRepo := repo.NewEmbeddingCacheRepo(conn)
	embedder, err := buildEmbedder(cfg.Embedding, cacheRepo)
	if err != nil {
		conn.Close()
		return nil, err
	}
	fetcher, err := buildFetcher(cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	docRepo := repo.NewDocumentRepo(conn)
	exampleRepo := repo.NewCodeExampleRepo(conn)
	runRepo := repo.NewSyncRunRepo(conn)
	store := vectorstore.NewPgVectorStore(conn, embedder, cfg.Embedding.Dimensions, cfg.Embedding.BatchSize)
	if err := store.SetHNSWTuning(cfg.Search.HNSWEFSearch, cfg.Search.HNSWIterativeScan); err != nil {
		conn.Close()
		return nil, err
	}
	chunker := ai.NewChunker(cfg.Chunker.MaxChunkChars, cfg.Chunker.OverlapChars)

	syncSvc := service.NewSyncService(conn, runRepo, docRepo, exampleRepo, store, fetcher,
		local.NewReader(0), parser.Default(), chunker, service.SyncOptions{
			Workers:   cfg.Sync.Workers,
			QueueSize: cfg.Sync.QueueSize,
		})
	searchSvc := service.NewSearchService(docRepo, store, exampleRepo, service.SearchOptions{
		RRFK:                cfg.Search.RRFK,
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		DefaultLimit:        cfg.Search.DefaultLimit,
	})
	return &app{
		db:        conn,
		syncRuns:  runRepo,
		cacheRepo: cacheRepo,
		syncSvc:   syncSvc,
		searchSvc: searchSvc,
	}, nil
}

func (a *app) Close() {
	a.syncSvc.Stop()
	if err := a.db.Close(); err != nil {
		logutil.GetLogger(context.Background()).Error("close db failed", zap.Error(err))
	}
}

// buildEmbedder chains providers in order, then the in-memory and database caches.
func buildEmbedder(cfg config.EmbeddingConfig, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(cfg.Providers))
	for i, p := range cfg.Providers {
		provider, err := ai.NewEmbedProvider(p.Provider, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedding provider %d: %w", i, err)
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = p.Provider + ":" + p.Model
		}
		entries = append(entries, ai.EmbedderEntry{Name: name, Embedder: ai.NewEmbedder(provider, p.Model)})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if embedder == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}
	if cfg.DBCache {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.LruSize, time.Duration(cfg.LruTTLSeconds)*time.Second)
	return embedder, nil
}

func buildFetcher(cfg *config.Config) (*github.ContentFetcher, error) {
	client := github.NewClient(cfg.Github)
	var strategies []github.Strategy
	if config.IsEnabled(cfg.Github.Archive.Enabled) {
		var cache github.ArchiveCache
		if cfg.ArchiveCache != nil {
			store, err := filestore.New(*cfg.ArchiveCache)
			if err != nil {
				return nil, fmt.Errorf("init archive cache: %w", err)
			}
			cache = github.NewStoreArchiveCache(store)
		}
		strategies = append(strategies, github.NewArchiveStrategy(client, cfg.Github.Archive.Priority, cfg.Github.Archive.MaxBytes, cache))
	}
	if config.IsEnabled(cfg.Github.Tree.Enabled) {
		strategies = append(strategies, github.NewTreeStrategy(client, cfg.Github.Tree.Priority))
	}
	if config.IsEnabled(cfg.Github.Contents.Enabled) {
		strategies = append(strategies, github.NewContentsStrategy(client, cfg.Github.Contents.Priority,
			github.ContentsOptionsFromConfig(cfg.Github.Contents)))
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one github fetch strategy must be enabled")
	}
	return github.NewContentFetcher(client, strategies...), nil
}
