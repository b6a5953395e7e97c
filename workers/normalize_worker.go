package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/camden-git/titlesnap/logger"
	"github.com/camden-git/titlesnap/media"
)

var (
	ErrQueueFull   = errors.New("normalize queue is full")
	ErrPoolStopped = errors.New("normalize pool is stopped")
)

// Normalizer is the CPU-bound step the pool runs off the caller's goroutine.
type Normalizer interface {
	Normalize(raw []byte) (media.NormalizedImage, error)
}

type NormalizeJob struct {
	ID     string
	Raw    []byte
	ctx    context.Context
	result chan media.NormalizeResult
}

// NormalizePool runs image normalization on a fixed set of workers fed by a
// bounded queue.
type NormalizePool struct {
	JobQueue chan NormalizeJob
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	normalizer Normalizer
	log        *logger.Logger
	stopOnce   sync.Once
}

func NewNormalizePool(normalizer Normalizer, log *logger.Logger, queueSize, numWorkers int) *NormalizePool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	if log == nil {
		log = logger.Nop()
	}
	pool := &NormalizePool{
		JobQueue:   make(chan NormalizeJob, queueSize),
		StopChan:   make(chan struct{}),
		Pending:    make(map[string]bool),
		normalizer: normalizer,
		log:        log,
	}
	pool.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go pool.worker(i)
	}
	log.Info("started normalize workers", "workers", numWorkers, "queue_size", queueSize)
	return pool
}

func (p *NormalizePool) worker(id int) {
	defer p.Wg.Done()
	for {
		select {
		case job := <-p.JobQueue:
			p.process(id, job)
		case <-p.StopChan:
			p.log.Debug("normalize worker stopping", "worker", id)
			return
		}
	}
}

func (p *NormalizePool) process(id int, job NormalizeJob) {
	defer func() {
		p.Mutex.Lock()
		delete(p.Pending, job.ID)
		p.Mutex.Unlock()
	}()

	// the submitter already gave up; skip the work
	if err := job.ctx.Err(); err != nil {
		job.result <- media.NormalizeResult{Err: err}
		return
	}

	img, err := p.normalizer.Normalize(job.Raw)
	if err != nil {
		p.log.Warn("normalize failed", "worker", id, "job", job.ID, "error", err)
	} else {
		p.log.Debug("normalized image", "worker", id, "job", job.ID, "width", img.Width, "height", img.Height, "bytes", len(img.Data))
	}
	job.result <- media.NormalizeResult{Image: img, Err: err}
}

// Submit queues raw for normalization and waits for the result. it fails
// fast with ErrQueueFull instead of blocking when the queue is saturated.
func (p *NormalizePool) Submit(ctx context.Context, raw []byte) (media.NormalizedImage, error) {
	select {
	case <-p.StopChan:
		return media.NormalizedImage{}, ErrPoolStopped
	default:
	}

	job := NormalizeJob{
		ID:     uuid.NewString(),
		Raw:    raw,
		ctx:    ctx,
		result: make(chan media.NormalizeResult, 1),
	}

	p.Mutex.Lock()
	p.Pending[job.ID] = true
	p.Mutex.Unlock()

	select {
	case p.JobQueue <- job:
	default:
		p.Mutex.Lock()
		delete(p.Pending, job.ID)
		p.Mutex.Unlock()
		p.log.Warn("normalize queue full, rejecting job", "job", job.ID)
		return media.NormalizedImage{}, ErrQueueFull
	}

	select {
	case res := <-job.result:
		return res.Image, res.Err
	case <-ctx.Done():
		return media.NormalizedImage{}, ctx.Err()
	case <-p.StopChan:
		return media.NormalizedImage{}, ErrPoolStopped
	}
}

// PendingCount is the number of queued or running jobs.
func (p *NormalizePool) PendingCount() int {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	return len(p.Pending)
}

func (p *NormalizePool) Stop() {
	p.stopOnce.Do(func() {
		p.log.Info("stopping normalize workers")
		close(p.StopChan)
		p.Wg.Wait()
		p.log.Info("all normalize workers stopped")
	})
}
