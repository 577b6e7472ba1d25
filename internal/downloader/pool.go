package downloader

import (
	"context"
	"sync"

	"yggharvest/pkg/logger"
	"yggharvest/pkg/models"
)

// job is one entry bound for download. index ties the result back to the
// submission order.
type job struct {
	index int
	entry *models.Entry
	name  string
}

type jobResult struct {
	index  int
	result models.DownloadResult
}

type processFunc func(ctx context.Context, workerID int, j job) models.DownloadResult

// workerPool runs a fixed number of workers over a job queue. Every
// submitted job produces exactly one result, including after ctx is
// cancelled, so callers can always account for the whole batch.
type workerPool struct {
	numWorkers  int
	jobQueue    chan job
	resultQueue chan jobResult
	wg          sync.WaitGroup
	process     processFunc
	logger      logger.Logger
}

func newWorkerPool(numWorkers int, process processFunc, log logger.Logger) *workerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &workerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan job, numWorkers*2),
		resultQueue: make(chan jobResult, numWorkers),
		process:     process,
		logger:      log,
	}
}

func (wp *workerPool) Start(ctx context.Context) {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Submit blocks until a worker slot frees up in the queue.
func (wp *workerPool) Submit(j job) {
	wp.jobQueue <- j
}

// Stop closes the queue, waits for in-flight jobs and closes Results.
func (wp *workerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.logger.Debug("Worker pool stopped")
}

func (wp *workerPool) Results() <-chan jobResult {
	return wp.resultQueue
}

func (wp *workerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	for j := range wp.jobQueue {
		wp.resultQueue <- jobResult{index: j.index, result: wp.process(ctx, id, j)}
	}
}
