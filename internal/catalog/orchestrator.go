package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/farxc/dsd_reconciler/internal/cache"
	"github.com/farxc/dsd_reconciler/internal/logger"
	"github.com/farxc/dsd_reconciler/internal/store"
)

type historyStore interface {
	InsertCatalogImport(ctx context.Context, record *store.CatalogImport) error
	UpdateImportStatus(ctx context.Context, id int64, status string, imported, skipped int) error
}

// Invalidator drops cached catalog lookups once new data is loaded.
type Invalidator interface {
	Invalidate(ctx context.Context) (int, error)
}

type ImportJob struct {
	Path    string
	Source  string
	Trigger string
	Attempt int
}

type ImportResult struct {
	Job    ImportJob
	ID     int64
	Result Result
	Error  error
}

// Orchestrator loads catalog files with a pool of workers, recording one
// catalog_imports row per file.
type Orchestrator struct {
	history     historyStore
	loader      *Loader
	locker      cache.Locker
	invalidator Invalidator
	appLogger   *logger.Logger
	readOpts    ReadOptions

	maxConcurrency int
	retryLimit     int
	retryDelay     time.Duration

	wg         sync.WaitGroup
	listenDone chan struct{}
	results    []ImportResult

	jobChan    chan ImportJob
	resultChan chan ImportResult
}

type OrchestratorConfig struct {
	Concurrency int
	RetryLimit  int
	RetryDelay  time.Duration
	ReadOptions ReadOptions
	Locker      cache.Locker
	Invalidator Invalidator
}

func NewOrchestrator(history historyStore, loader *Loader, appLogger *logger.Logger, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Locker == nil {
		cfg.Locker = cache.NopLocker{}
	}
	if appLogger == nil {
		appLogger = logger.Discard()
	}
	return &Orchestrator{
		history:        history,
		loader:         loader,
		locker:         cfg.Locker,
		invalidator:    cfg.Invalidator,
		appLogger:      appLogger,
		readOpts:       cfg.ReadOptions,
		maxConcurrency: cfg.Concurrency,
		retryLimit:     cfg.RetryLimit,
		retryDelay:     cfg.RetryDelay,
	}
}

// Run imports every job and returns one result per job. It holds the
// import lock for the source for the whole run.
func (o *Orchestrator) Run(ctx context.Context, source string, jobs []ImportJob) ([]ImportResult, error) {
	const component = "ORCHESTRATOR"

	if !ValidSource(source) {
		return nil, fmt.Errorf("invalid catalog source %q", source)
	}

	unlock, err := o.locker.Lock(ctx, "catalog-import:"+source)
	if errors.Is(err, cache.ErrLocked) {
		return nil, fmt.Errorf("another %s catalog import is running: %w", source, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take import lock: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			o.appLogger.Warn(component, "failed to release import lock: %v", err)
		}
	}()

	o.jobChan = make(chan ImportJob, len(jobs))
	o.resultChan = make(chan ImportResult, len(jobs))
	o.results = nil

	o.start(ctx)
	for _, job := range jobs {
		job.Source = source
		o.jobChan <- job
	}
	close(o.jobChan)
	results := o.wait()

	succeeded := 0
	for _, r := range results {
		if r.Error == nil {
			succeeded++
		}
	}
	if succeeded > 0 && o.invalidator != nil {
		if n, err := o.invalidator.Invalidate(ctx); err != nil {
			o.appLogger.Warn(component, "catalog cache invalidation failed: %v", err)
		} else {
			o.appLogger.Debug(component, "invalidated %d cached catalog lookups", n)
		}
	}

	o.appLogger.Info(component, "import run finished: source=%s files=%d succeeded=%d", source, len(jobs), succeeded)
	return results, nil
}

func (o *Orchestrator) start(ctx context.Context) {
	o.appLogger.Info("ORCHESTRATOR", "starting orchestrator: concurrency=%d", o.maxConcurrency)

	for i := 0; i < o.maxConcurrency; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}

	o.listenDone = make(chan struct{})
	go o.listenToResults()
}

func (o *Orchestrator) wait() []ImportResult {
	o.wg.Wait()
	close(o.resultChan)
	<-o.listenDone
	return o.results
}

func (o *Orchestrator) worker(ctx context.Context) {
	const component = "WORKER"
	defer o.wg.Done()

	for job := range o.jobChan {
		file := filepath.Base(job.Path)
		record := &store.CatalogImport{
			Source:      job.Source,
			SourceFile:  file,
			TriggerType: job.Trigger,
			Status:      store.ImportStatusInProgress,
		}
		if record.TriggerType == "" {
			record.TriggerType = store.TriggerTypeManual
		}

		if err := o.history.InsertCatalogImport(ctx, record); err != nil {
			o.appLogger.Error(component, "failed to create in_progress record: file=%s err=%v", file, err)
			o.resultChan <- ImportResult{Job: job, Error: err}
			continue
		}

		result := o.processWithRetry(ctx, job)
		result.ID = record.ID

		status := store.ImportStatusSuccess
		switch {
		case result.Error != nil:
			status = store.ImportStatusFailure
		case result.Result.Skipped > 0:
			status = store.ImportStatusPartial
		}

		if err := o.history.UpdateImportStatus(ctx, record.ID, status, result.Result.Imported, result.Result.Skipped); err != nil {
			o.appLogger.Error(component, "failed to update final status: id=%d status=%s err=%v", record.ID, status, err)
		}

		o.resultChan <- result
	}
}

func (o *Orchestrator) processWithRetry(ctx context.Context, job ImportJob) ImportResult {
	const component = "WORKER"

	for {
		job.Attempt++
		result := o.processFile(ctx, job)
		if result.Error == nil || job.Attempt >= o.retryLimit || !retryable(result.Error) || ctx.Err() != nil {
			return result
		}

		o.appLogger.Warn(component, "import failed, retrying: file=%s attempt=%d err=%v", job.Path, job.Attempt, result.Error)
		select {
		case <-ctx.Done():
			return ImportResult{Job: job, Error: ctx.Err()}
		case <-time.After(o.retryDelay * time.Duration(job.Attempt)):
		}
	}
}

func (o *Orchestrator) processFile(ctx context.Context, job ImportJob) ImportResult {
	records, err := ReadFile(job.Path, o.readOpts)
	if err != nil {
		return ImportResult{Job: job, Error: err}
	}

	res, err := o.loader.Load(ctx, job.Source, records)
	return ImportResult{Job: job, Result: res, Error: err}
}

// retryable excludes failures another attempt cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, ErrEmptyFile) && !errors.Is(err, context.Canceled)
}

func (o *Orchestrator) listenToResults() {
	const component = "ORCHESTRATOR-FEEDBACK"
	defer close(o.listenDone)

	for result := range o.resultChan {
		if result.Error != nil {
			o.appLogger.Error(component, "import failed: file=%s attempts=%d err=%v", result.Job.Path, result.Job.Attempt, result.Error)
		} else {
			o.appLogger.Info(component, "import completed: file=%s imported=%d skipped=%d",
				result.Job.Path, result.Result.Imported, result.Result.Skipped)
		}
		o.results = append(o.results, result)
	}
}
