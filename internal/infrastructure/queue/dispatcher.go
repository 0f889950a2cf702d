package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/api/metrics"
	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
	writeTimeout   = 5 * time.Second
)

// Dispatcher persists audit operations asynchronously through a fixed set
// of workers, sharded by identity id so one identity's entries land in
// order. It implements ports.OperationRecorder.
type Dispatcher struct {
	workers []chan domain.Operation
	repo    ports.OperationRepository
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.OperationRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.Operation, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Operation, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is
// cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Record enqueues an operation on the worker responsible for its
// identity. Non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Record(op domain.Operation) {
	idx := d.shardIndex(op.IdentityID)
	d.workers[idx] <- op
	metrics.OperationQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
}

// shardIndex maps an identity id deterministically to a worker index.
func (d *Dispatcher) shardIndex(identityID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identityID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Operation) {
	for {
		select {
		case <-ctx.Done():
			return
		case op, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := d.repo.Insert(writeCtx, &op)
			cancel()
			if err != nil {
				d.log.Error().Err(err).
					Str("identity_id", op.IdentityID).
					Str("kind", string(op.Kind)).
					Int("worker_id", id).
					Msg("audit write failed")
			}
			metrics.OperationQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
		}
	}
}
