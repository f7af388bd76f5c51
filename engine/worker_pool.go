package engine

import (
	"context"
	"errors"
	"sync"
)

// DefaultWorkers is the number of workers used when a caller asks for none.
const DefaultWorkers = 8

// JobHandler is a function that processes a TransferJob.
type JobHandler func(context.Context, TransferJob) error

// WorkerPool manages a bounded, resizable set of workers processing jobs.
// A failing job never stops the others; every error is kept and reported by
// Wait once the job channel has been drained.
type WorkerPool struct {
	jobChan JobChannel
	handler JobHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	workers     map[int]chan struct{}
	workerCount int
	nextID      int
	wg          sync.WaitGroup

	errMu sync.Mutex
	errs  []error
}

// NewWorkerPool creates a new dynamic worker pool.
func NewWorkerPool(ctx context.Context, jobChan JobChannel, handler JobHandler) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		jobChan: jobChan,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[int]chan struct{}),
	}
}

// SetWorkerCount scales the number of workers up or down gracefully.
// Counts below one are raised to one.
func (p *WorkerPool) SetWorkerCount(count int) {
	if count < 1 {
		count = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for p.workerCount < count {
		p.addWorker()
	}

	for p.workerCount > count {
		p.removeWorker()
	}
}

// WorkerCount returns the current target number of workers.
func (p *WorkerPool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workerCount
}

func (p *WorkerPool) addWorker() {
	quitChan := make(chan struct{})
	id := p.nextID
	p.nextID++
	p.workers[id] = quitChan
	p.workerCount++
	p.wg.Add(1)

	go func(id int, quit chan struct{}) {
		defer p.wg.Done()
		for {
			// Prioritize quit and context cancellation checking
			select {
			case <-quit:
				return
			case <-p.ctx.Done():
				return
			default:
			}

			select {
			case <-quit:
				// Worker decommissioned gracefully
				return
			case <-p.ctx.Done():
				// Pool stopped, exit
				return
			case job, ok := <-p.jobChan:
				if !ok {
					// Job channel closed, exit
					return
				}
				if err := p.handler(p.ctx, job); err != nil {
					p.recordError(err)
				}
			}
		}
	}(id, quitChan)
}

func (p *WorkerPool) removeWorker() {
	// Find arbitrary worker to decommission
	for id, quit := range p.workers {
		close(quit) // Signal the worker to exit gracefully when it finishes current job
		delete(p.workers, id)
		p.workerCount--
		return // Remove only one
	}
}

func (p *WorkerPool) recordError(err error) {
	p.errMu.Lock()
	p.errs = append(p.errs, err)
	p.errMu.Unlock()
}

// Wait blocks until the job channel is closed and every queued job has been
// handled, then returns all job errors joined, or the context error if the
// pool was cancelled first.
func (p *WorkerPool) Wait() error {
	p.wg.Wait()
	// Workers only stop early when the context ends.
	ctxErr := p.ctx.Err()
	p.cancel()

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return errors.Join(append(p.errs, ctxErr)...)
}

// Stop initiates termination of all workers and waits for them to exit.
// Jobs currently running might be aborted since the context is cancelled.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Run feeds jobs to a pool of size workers and waits for all of them.
// produce must send jobs on the channel it is given and return; the channel
// is closed when it returns.
func Run(ctx context.Context, workers int, handler JobHandler, produce func(context.Context, JobChannel) error) error {
	if workers < 1 {
		workers = DefaultWorkers
	}

	jobChan := make(JobChannel, workers)
	pool := NewWorkerPool(ctx, jobChan, handler)
	pool.SetWorkerCount(workers)

	produceErr := produce(pool.ctx, jobChan)
	close(jobChan)

	return errors.Join(produceErr, pool.Wait())
}
