// cmd/delivery-worker/worker.go
package main

import (
	"context"
	"log"
	"sync"
	"time"
)

// Worker drives the delivery generation loop
type Worker struct {
	db            *DB
	executor      *Executor
	config        *WorkerConfig
	logger        *log.Logger
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.RWMutex
	lastRun       *time.Time
	nextRun       *time.Time
	processedLast int
	lastResult    *BatchResult
}

// NewWorker creates a new worker instance
func NewWorker(db *DB, executor *Executor, config *WorkerConfig, logger *log.Logger) *Worker {
	return &Worker{
		db:       db,
		executor: executor,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the worker background processing
func (w *Worker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Printf("Starting worker with tick interval: %v, batch size: %d",
		w.config.TickInterval, w.config.BatchSize)

	w.wg.Add(1)
	go w.run()
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.logger.Println("Stopping worker, waiting for current batch to complete...")
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Println("Worker stopped")
}

// run is the main worker loop
func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.TickInterval)
	defer ticker.Stop()

	next := time.Now().Add(w.config.TickInterval)
	w.mu.Lock()
	w.nextRun = &next
	w.mu.Unlock()

	for {
		select {
		case <-w.stopCh:
			w.logger.Println("Worker received stop signal")
			return
		case <-ticker.C:
			if w.config.Enabled {
				w.tick()
			}

			next := time.Now().Add(w.config.TickInterval)
			w.mu.Lock()
			w.nextRun = &next
			w.mu.Unlock()
		}
	}
}

// tick executes one delivery generation cycle
func (w *Worker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now()
	w.mu.Lock()
	w.lastRun = &now
	w.mu.Unlock()

	subscriptions, err := w.db.GetSubscriptionsDue(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Printf("Error getting due subscriptions: %v", err)
	}

	retries, err := w.db.GetDueRetries(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Printf("Error getting due retries: %v", err)
	}

	total := len(subscriptions) + len(retries)
	w.mu.Lock()
	w.processedLast = total
	w.mu.Unlock()

	if total == 0 {
		return
	}

	w.logger.Printf("Worker tick: %d subscriptions due, %d retries due",
		len(subscriptions), len(retries))

	combined := &BatchResult{}

	if len(subscriptions) > 0 {
		r := w.executor.ExecuteBatch(ctx, subscriptions)
		w.logger.Printf("Deliveries completed: processed=%d, successful=%d, failed=%d",
			r.Processed, r.Successful, r.Failed)
		combined.merge(r)
	}

	if len(retries) > 0 {
		r := w.executor.ExecuteRetryBatch(ctx, retries)
		w.logger.Printf("Retries completed: processed=%d, successful=%d, failed=%d",
			r.Processed, r.Successful, r.Failed)
		combined.merge(r)
	}

	w.mu.Lock()
	w.lastResult = combined
	w.mu.Unlock()
}

func (r *BatchResult) merge(other *BatchResult) {
	r.Processed += other.Processed
	r.Successful += other.Successful
	r.Failed += other.Failed
	r.Deliveries = append(r.Deliveries, other.Deliveries...)
	r.Duration += other.Duration
}

// Status returns the current worker status
func (w *Worker) Status() *WorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	pending := 0
	if w.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if count, err := w.db.CountPendingRetries(ctx); err == nil {
			pending = count
		}
	}

	return &WorkerStatus{
		Running:        w.running,
		LastRun:        w.lastRun,
		NextRun:        w.nextRun,
		ProcessedLast:  w.processedLast,
		PendingRetries: pending,
		TickInterval:   w.config.TickInterval.String(),
	}
}

// IsRunning returns whether the worker loop is running
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// TriggerManual runs one delivery batch immediately
func (w *Worker) TriggerManual() (*BatchResult, error) {
	w.logger.Println("Manual worker trigger initiated")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	subscriptions, err := w.db.GetSubscriptionsDue(ctx, w.config.BatchSize)
	if err != nil {
		return nil, err
	}

	w.logger.Printf("Manual trigger: found %d subscriptions due", len(subscriptions))

	if len(subscriptions) == 0 {
		return &BatchResult{}, nil
	}

	result := w.executor.ExecuteBatch(ctx, subscriptions)

	now := time.Now()
	w.mu.Lock()
	w.lastRun = &now
	w.processedLast = result.Processed
	w.lastResult = result
	w.mu.Unlock()

	return result, nil
}

// GetLastResult returns the last batch execution result
func (w *Worker) GetLastResult() *BatchResult {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastResult
}
