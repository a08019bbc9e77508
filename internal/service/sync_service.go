package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docindex/internal/ai"
	"github.com/xxxsen/docindex/internal/local"
	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/parser"
	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
	"github.com/xxxsen/docindex/internal/pkg/timeutil"
	"github.com/xxxsen/docindex/internal/repo"
	"github.com/xxxsen/docindex/internal/vectorstore"
)

const interruptedRunMessage = "sync interrupted by restart"

type SourceFetcher interface {
	Fetch(ctx context.Context, owner, repo, docsPath, ref string) (*model.FetchResult, error)
	GetFileContent(ctx context.Context, res *model.FetchResult, owner, repo, path, ref string) (string, error)
}

type LocalReader interface {
	ReadDirectory(ctx context.Context, root, pattern string) ([]local.File, error)
}

type SyncOptions struct {
	Workers   int
	QueueSize int
}

// SyncService runs ingestion for one version at a time. Accepted runs are
// queued to a bounded worker pool and reported through a SyncFuture.
type SyncService struct {
	runs     syncRunStore
	index    documentIndex
	embedder textEmbedder
	fetcher  SourceFetcher
	local    LocalReader
	parsers  *parser.Registry
	chunker  *ai.Chunker
	opts     SyncOptions

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	queue    chan *syncJob
	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	startMu  sync.RWMutex
	started  bool
	stopping bool
}

func NewSyncService(db *sql.DB, runs *repo.SyncRunRepo, docs *repo.DocumentRepo, examples *repo.CodeExampleRepo,
	store *vectorstore.PgVectorStore, fetcher SourceFetcher, localReader LocalReader, parsers *parser.Registry,
	chunker *ai.Chunker, opts SyncOptions) *SyncService {
	index := &pgDocumentIndex{db: db, docs: docs, examples: examples, store: store}
	return newSyncService(runs, index, store, fetcher, localReader, parsers, chunker, opts)
}

func newSyncService(runs syncRunStore, index documentIndex, embedder textEmbedder, fetcher SourceFetcher,
	localReader LocalReader, parsers *parser.Registry, chunker *ai.Chunker, opts SyncOptions) *SyncService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	return &SyncService{
		runs:     runs,
		index:    index,
		embedder: embedder,
		fetcher:  fetcher,
		local:    localReader,
		parsers:  parsers,
		chunker:  chunker,
		opts:     opts,
		locks:    make(map[string]*sync.Mutex),
		queue:    make(chan *syncJob, opts.QueueSize),
	}
}

type syncJob struct {
	run    *model.SyncRun
	future *SyncFuture
	work   syncWork
}

// syncWork fills stats as it goes so counts survive a failed run.
type syncWork func(ctx context.Context, run *model.SyncRun, stats *fileStats) error

type fileStats struct {
	documents int
	chunks    int
	skipped   int
	failed    int
}

// RecoverInterrupted fails runs left active by a previous process so the
// single-flight guard does not block their versions forever.
func (s *SyncService) RecoverInterrupted(ctx context.Context) error {
	n, err := s.runs.FailActive(ctx, interruptedRunMessage, timeutil.NowUnixMilli())
	if err != nil {
		return fmt.Errorf("recover interrupted runs: %w", err)
	}
	if n > 0 {
		logutil.GetLogger(ctx).Warn("failed interrupted sync runs", zap.Int64("count", n))
	}
	return nil
}

// Start launches the workers.
func (s *SyncService) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return nil
	}
	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.started = true
	return nil
}

// Stop stops accepting runs and waits for queued and in-flight runs to finish.
func (s *SyncService) Stop() {
	s.startMu.Lock()
	if !s.started || s.stopping {
		s.startMu.Unlock()
		return
	}
	s.stopping = true
	close(s.queue)
	s.startMu.Unlock()
	s.wg.Wait()
	s.cancel()
}

func (s *SyncService) worker() {
	defer s.wg.Done()
	for job := range s.queue {
		s.execute(s.baseCtx, job)
	}
}

// SyncFromSource accepts a sync of a remote documentation tree. It returns
// ErrConflict when the version already has an active run.
func (s *SyncService) SyncFromSource(ctx context.Context, versionID string, src model.SourceDescriptor) (*SyncFuture, error) {
	versionID = strings.TrimSpace(versionID)
	if versionID == "" || src.Owner == "" || src.Repo == "" || src.Ref == "" {
		return nil, fmt.Errorf("version id, owner, repo and ref are required: %w", appErr.ErrInvalid)
	}
	label := fmt.Sprintf("github:%s/%s@%s:%s", src.Owner, src.Repo, src.Ref, src.DocsPath)
	return s.submit(ctx, versionID, label, func(ctx context.Context, run *model.SyncRun, stats *fileStats) error {
		return s.syncRemote(ctx, run, src, stats)
	})
}

// SyncFromLocal accepts a sync of a directory on this host.
func (s *SyncService) SyncFromLocal(ctx context.Context, versionID, rootDir, pattern string) (*SyncFuture, error) {
	versionID = strings.TrimSpace(versionID)
	if versionID == "" || strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("version id and root dir are required: %w", appErr.ErrInvalid)
	}
	if s.local == nil {
		return nil, fmt.Errorf("local sync is not configured: %w", appErr.ErrInvalid)
	}
	label := "local:" + rootDir
	if pattern != "" {
		label += ":" + pattern
	}
	return s.submit(ctx, versionID, label, func(ctx context.Context, run *model.SyncRun, stats *fileStats) error {
		return s.syncLocal(ctx, run, rootDir, pattern, stats)
	})
}

func (s *SyncService) GetSyncRun(ctx context.Context, id string) (*model.SyncRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErr.ErrNotFound
	}
	return s.runs.GetByID(ctx, id)
}

func (s *SyncService) LatestSyncRun(ctx context.Context, versionID string) (*model.SyncRun, error) {
	return s.runs.Latest(ctx, versionID)
}

func (s *SyncService) ListSyncRuns(ctx context.Context, versionID string, limit int) ([]*model.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runs.List(ctx, versionID, limit)
}

func (s *SyncService) versionLock(versionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[versionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[versionID] = l
	}
	return l
}

// submit performs the single-flight check and the PENDING insert under the
// version lock; the partial unique index on active runs covers other processes.
func (s *SyncService) submit(ctx context.Context, versionID, source string, work syncWork) (*SyncFuture, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("version_id", versionID), zap.String("source", source))
	lock := s.versionLock(versionID)
	lock.Lock()
	defer lock.Unlock()

	s.startMu.RLock()
	defer s.startMu.RUnlock()
	if !s.started || s.stopping {
		return nil, fmt.Errorf("sync service is not running: %w", appErr.ErrInternal)
	}

	run := &model.SyncRun{
		ID:        uuid.NewString(),
		VersionID: versionID,
		Status:    model.SyncStatusPending,
		Source:    source,
		StartedAt: timeutil.NowUnixMilli(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		if appErr.IsConflict(err) {
			logger.Info("sync rejected, version already has an active run")
			return nil, fmt.Errorf("version %s is already syncing: %w", versionID, appErr.ErrConflict)
		}
		return nil, err
	}
	future := newSyncFuture(run.ID)
	select {
	case s.queue <- &syncJob{run: run, future: future, work: work}:
	default:
		run.Status = model.SyncStatusFailed
		run.CompletedAt = timeutil.NowUnixMilli()
		run.ErrorMessage = "sync queue is full"
		if err := s.runs.Complete(ctx, run); err != nil {
			logger.Error("close rejected run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
		return nil, fmt.Errorf("sync queue is full: %w", appErr.ErrTooMany)
	}
	logger.Info("sync accepted", zap.String("run_id", run.ID))
	return future, nil
}

// execute drives one run to its terminal state. Exactly one terminal record
// is written whatever happens inside work.
func (s *SyncService) execute(ctx context.Context, job *syncJob) {
	run := job.run
	logger := logutil.GetLogger(ctx).With(zap.String("run_id", run.ID), zap.String("version_id", run.VersionID))

	var stats fileStats
	err := s.runs.MarkRunning(ctx, run.ID)
	if err == nil {
		run.Status = model.SyncStatusRunning
		logger.Info("sync started", zap.String("source", run.Source))
		err = s.runWork(ctx, job, &stats)
	} else {
		err = fmt.Errorf("mark running: %w", err)
	}

	run.CompletedAt = timeutil.NowUnixMilli()
	run.DocumentsProcessed = stats.documents
	run.ChunksCreated = stats.chunks
	if err != nil {
		run.Status = model.SyncStatusFailed
		run.ErrorMessage = err.Error()
		logger.Error("sync failed", zap.Error(err))
	} else {
		run.Status = model.SyncStatusSuccess
		logger.Info("sync finished",
			zap.Int("documents", stats.documents), zap.Int("chunks", stats.chunks),
			zap.Int("skipped", stats.skipped), zap.Int("failed", stats.failed))
	}
	if err := s.runs.Complete(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("write terminal sync state failed", zap.Error(err))
	}
	job.future.resolve(run)
}

// runWork turns a panic outside per file processing into a failed run.
func (s *SyncService) runWork(ctx context.Context, job *syncJob, stats *fileStats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
		}
	}()
	return job.work(ctx, job.run, stats)
}

func (s *SyncService) syncRemote(ctx context.Context, run *model.SyncRun, src model.SourceDescriptor, stats *fileStats) error {
	res, err := s.fetcher.Fetch(ctx, src.Owner, src.Repo, src.DocsPath, src.Ref)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("strategy", res.StrategyUsed))
	logger.Info("documentation listed", zap.Int("files", len(res.Files)))
	for _, file := range res.Files {
		if !file.IsFile() || !s.parsers.Supports(file.Path) {
			continue
		}
		content, err := s.fetcher.GetFileContent(ctx, res, src.Owner, src.Repo, file.Path, src.Ref)
		if err != nil {
			stats.failed++
			logger.Warn("download file failed", zap.String("path", file.Path), zap.Error(err))
			continue
		}
		s.ingest(ctx, run.VersionID, file.Path, content, stats)
	}
	return nil
}

func (s *SyncService) syncLocal(ctx context.Context, run *model.SyncRun, rootDir, pattern string, stats *fileStats) error {
	files, err := s.local.ReadDirectory(ctx, rootDir, pattern)
	if err != nil {
		return err
	}
	for _, f := range files {
		if !s.parsers.Supports(f.Path) {
			continue
		}
		s.ingest(ctx, run.VersionID, f.Path, f.Content, stats)
	}
	return nil
}

// ingest isolates per file failures, panics included, from the rest of the run.
func (s *SyncService) ingest(ctx context.Context, versionID, path, content string, stats *fileStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.failed++
			logutil.GetLogger(ctx).Error("process file panicked", zap.String("path", path), zap.Any("panic", r))
		}
	}()
	chunks, changed, err := s.ProcessFile(ctx, versionID, path, content)
	switch {
	case err != nil:
		stats.failed++
		logutil.GetLogger(ctx).Warn("process file failed", zap.String("path", path), zap.Error(err))
	case !changed:
		stats.skipped++
	default:
		stats.documents++
		stats.chunks += chunks
	}
}

// ProcessFile indexes one file of a version. Unchanged content is skipped; a
// changed document is replaced together with its chunks and code examples in
// one transaction. Embedding happens before the transaction opens.
func (s *SyncService) ProcessFile(ctx context.Context, versionID, path, content string) (int, bool, error) {
	hash := ContentHash(content)
	existing, err := s.index.GetByVersionAndPath(ctx, versionID, path)
	if err != nil && !errors.Is(err, appErr.ErrNotFound) {
		return 0, false, fmt.Errorf("load existing document: %w", err)
	}
	if existing != nil && existing.ContentHash == hash {
		return 0, false, nil
	}
	p, ok := s.parsers.Find(path)
	if !ok {
		return 0, false, nil
	}
	parsed, err := p.Parse(content, path)
	if err != nil {
		return 0, false, fmt.Errorf("parse: %w", err)
	}
	pieces := s.chunker.Chunk(parsed.Content)
	texts := make([]string, 0, len(pieces))
	for _, c := range pieces {
		texts = append(texts, c.Content)
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, false, fmt.Errorf("embed: %w", err)
	}

	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:          uuid.NewString(),
		VersionID:   versionID,
		Title:       parsed.Title,
		Path:        path,
		Content:     parsed.Content,
		ContentHash: hash,
		DocType:     p.DocType(),
		Ctime:       now,
		Mtime:       now,
	}
	if existing != nil {
		doc.Ctime = existing.Ctime
	}
	indexed := make([]*model.IndexedChunk, 0, len(pieces))
	for i, c := range pieces {
		indexed = append(indexed, &model.IndexedChunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Embedding:  vectors[i],
			TokenCount: c.TokenCount,
			Metadata: model.Metadata{
				model.MetaVersionID:     versionID,
				model.MetaDocumentID:    doc.ID,
				model.MetaChunkIndex:    c.Index,
				model.MetaTokenCount:    c.TokenCount,
				model.MetaDocumentTitle: doc.Title,
				model.MetaDocumentPath:  path,
			},
		})
	}
	examples := make([]*model.CodeExample, 0, len(parsed.CodeBlocks))
	for _, block := range parsed.CodeBlocks {
		if strings.TrimSpace(block.Code) == "" {
			continue
		}
		examples = append(examples, &model.CodeExample{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			Language:    block.Language,
			Code:        block.Code,
			Description: block.Description,
			Ctime:       now,
		})
	}

	if err := s.index.Replace(ctx, existing, doc, indexed, examples); err != nil {
		return 0, false, err
	}
	logutil.GetLogger(ctx).Debug("document indexed", zap.String("path", path),
		zap.Int("chunks", len(indexed)), zap.Int("code_examples", len(examples)), zap.Bool("replaced", existing != nil))
	return len(indexed), true, nil
}

func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
