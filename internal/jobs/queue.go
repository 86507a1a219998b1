// Package jobs runs background indexing. Submissions are fire-and-forget:
// failures are logged with document context, never surfaced to the caller.
package jobs

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/service"
)

// DocumentIndexer runs one indexing pipeline pass.
type DocumentIndexer interface {
	Index(ctx context.Context, req service.IndexRequest) (*domain.IndexStats, error)
}

const (
	// DefaultWorkers is the shard count of the queue.
	DefaultWorkers = 4
	// DefaultQueueDepth bounds each shard's backlog.
	DefaultQueueDepth = 64

	jobTimeout = 2 * time.Minute
)

// IndexQueue fans indexing work out to a fixed set of workers. Jobs for the
// same document always land on the same worker, so writes to one document
// are serialized while distinct documents index concurrently. A document
// already waiting in a shard is not enqueued twice.
type IndexQueue struct {
	indexer DocumentIndexer
	log     *logrus.Logger

	shards []chan service.IndexRequest

	mu      sync.Mutex
	pending map[string]struct{}

	wg     sync.WaitGroup
	closed bool
}

// NewIndexQueue starts workers immediately. Both sizes fall back to defaults
// when non-positive.
func NewIndexQueue(indexer DocumentIndexer, workers, depth int, log *logrus.Logger) *IndexQueue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	if log == nil {
		log = logrus.New()
	}

	q := &IndexQueue{
		indexer: indexer,
		log:     log,
		shards:  make([]chan service.IndexRequest, workers),
		pending: make(map[string]struct{}),
	}
	for i := range q.shards {
		q.shards[i] = make(chan service.IndexRequest, depth)
		q.wg.Add(1)
		go q.run(i)
	}
	return q
}

// Enqueue submits a document for background indexing. It returns false when
// the queue is shut down, the shard's backlog is full, or the document is
// already waiting; the caller treats all three as a non-event.
func (q *IndexQueue) Enqueue(req service.IndexRequest) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, waiting := q.pending[req.DocumentID]; waiting {
		q.mu.Unlock()
		q.log.WithField("document_id", req.DocumentID).Debug("document already queued, skipping")
		return false
	}
	q.pending[req.DocumentID] = struct{}{}
	q.mu.Unlock()

	shard := q.shards[shardFor(req.DocumentID, len(q.shards))]
	select {
	case shard <- req:
		return true
	default:
		q.release(req.DocumentID)
		q.log.WithField("document_id", req.DocumentID).Warn("index queue full, dropping submission")
		return false
	}
}

// Close stops intake, drains queued work, and waits for workers to finish.
func (q *IndexQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	for _, shard := range q.shards {
		close(shard)
	}
	q.wg.Wait()
}

func (q *IndexQueue) run(worker int) {
	defer q.wg.Done()
	for req := range q.shards[worker] {
		q.process(worker, req)
	}
}

func (q *IndexQueue) process(worker int, req service.IndexRequest) {
	// The job is marked done before it runs, so a re-submission arriving
	// mid-run queues a fresh pass over the newer content.
	q.release(req.DocumentID)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	stats, err := q.indexer.Index(ctx, req)
	if err != nil {
		q.log.WithError(err).WithFields(logrus.Fields{
			"worker":      worker,
			"document_id": req.DocumentID,
		}).Error("background indexing failed")
		return
	}
	q.log.WithFields(logrus.Fields{
		"worker":      worker,
		"document_id": req.DocumentID,
		"chunks":      stats.ChunksCreated,
	}).Debug("background indexing finished")
}

func (q *IndexQueue) release(documentID string) {
	q.mu.Lock()
	delete(q.pending, documentID)
	q.mu.Unlock()
}

func shardFor(documentID string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(documentID))
	return int(h.Sum32() % uint32(shards))
}
