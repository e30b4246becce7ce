package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-auth/internal/api/metrics"
	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
	"github.com/99minutos/admin-auth/internal/pkg/ids"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// Dispatcher routes audit entries to a fixed set of workers using consistent
// hashing on the actor id, preserving per-actor ordering. It implements
// ports.ActivityRecorder.
type Dispatcher struct {
	workers []chan domain.ActivityEntry
	repo    ports.ActivityRepository
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.ActivityRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.ActivityEntry, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.ActivityEntry, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Writes use ctx values but outlive
// its cancellation so that Stop can drain pending entries.
func (d *Dispatcher) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(base, i, ch)
	}
}

// Stop closes the worker channels and waits for pending entries to be written.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Record enqueues an entry for the worker responsible for its actor. It blocks
// only while that worker's buffer is full, and gives up when ctx ends.
func (d *Dispatcher) Record(ctx context.Context, entry domain.ActivityEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ids.NewULID(entry.CreatedAt)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(entry, "dispatcher stopped")
		return
	}

	idx := d.shardIndex(entry.ActorID)
	select {
	case d.workers[idx] <- entry:
		metrics.ActivityQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	case <-ctx.Done():
		d.drop(entry, "context done while queue full")
	}
}

func (d *Dispatcher) drop(entry domain.ActivityEntry, reason string) {
	metrics.ActivityErrorsTotal.WithLabelValues("dropped").Inc()
	d.log.Warn().
		Str("action", string(entry.Action)).
		Str("actor_id", entry.ActorID).
		Str("reason", reason).
		Msg("activity entry dropped")
}

// shardIndex maps an actor id deterministically to a worker index.
func (d *Dispatcher) shardIndex(actorID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(actorID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.ActivityEntry) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for entry := range ch {
		metrics.ActivityQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

		start := time.Now()
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := d.repo.Append(writeCtx, &entry)
		cancel()
		metrics.ActivityWriteDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.ActivityErrorsTotal.WithLabelValues("write_failed").Inc()
			d.log.Error().Err(err).
				Str("action", string(entry.Action)).
				Str("actor_id", entry.ActorID).
				Int("worker_id", id).
				Msg("activity write failed")
			continue
		}
		metrics.ActivityWrittenTotal.WithLabelValues(string(entry.Action)).Inc()
	}
}
