package worker

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/jobs/runtime"
	"github.com/yungbote/nearby-backend/internal/observability"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type Config struct {
	Concurrency   int
	PollInterval  time.Duration
	DepthInterval time.Duration
}

// Worker is the polling pool. Each goroutine drains runnable rows until the
// queue is empty, then sleeps until the ticker or an enqueue wakes it.
type Worker struct {
	log  *logger.Logger
	exec *runtime.Executor
	repo repos.AnalysisJobRepo
	wake <-chan struct{}
	cfg  Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, exec *runtime.Executor, repo repos.AnalysisJobRepo, wake <-chan struct{}, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.DepthInterval <= 0 {
		cfg.DepthInterval = 15 * time.Second
	}
	return &Worker{
		log:  baseLog.With("component", "JobWorker"),
		exec: exec,
		repo: repo,
		wake: wake,
		cfg:  cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.depthLoop(ctx)
	}()
}

// Stop stops claiming and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
		case <-w.wake:
		}
		w.drain(ctx, workerID)
	}
}

func (w *Worker) drain(ctx context.Context, workerID int) {
	for ctx.Err() == nil {
		ran, err := w.exec.RunNext(ctx)
		if err != nil {
			w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
			return
		}
		if !ran {
			return
		}
	}
}

func (w *Worker) depthLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.DepthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts, err := w.repo.CountByStatus(dbctx.Context{Ctx: ctx})
			if err != nil {
				w.log.Debug("CountByStatus failed", "error", err)
				continue
			}
			observability.Current().SetQueueDepth(counts)
		}
	}
}
