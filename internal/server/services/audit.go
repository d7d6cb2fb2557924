// Package services contains the server-side business logic: session
// management, per-request scope resolution, and the library lifecycle state
// machine, plus the fire-and-forget audit recorder they all report into.
package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/server/metrics"
	"shelfkeeper/internal/server/models"
	"shelfkeeper/internal/server/repositories/repomanager"
)

// AuditSink receives activity records for every state change and every
// access denial. Implementations must never fail the primary operation:
// a slow or broken sink degrades to a log line.
type AuditSink interface {
	Record(actorID *int64, action, entityType string, entityID *int64, details map[string]any)
}

// insertTimeout bounds a single activity_log write so a stuck store cannot
// wedge the drain goroutine.
const insertTimeout = 5 * time.Second

// Recorder is the asynchronous AuditSink backed by the activity_log table.
// Events are queued on a buffered channel and drained by one goroutine;
// overflow and insert failures are logged and counted, never returned.
type Recorder struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger

	events chan models.ActivityEntry
	wg     sync.WaitGroup
}

// NewRecorder constructs a Recorder and starts its drain goroutine.
func NewRecorder(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		db:     db,
		repos:  rm,
		logger: logger.With("module", "audit"),
		events: make(chan models.ActivityEntry, queueSize),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

// Record enqueues an activity entry. It never blocks: when the queue is full
// the event is dropped and logged.
func (r *Recorder) Record(actorID *int64, action, entityType string, entityID *int64, details map[string]any) {
	e := models.ActivityEntry{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
	select {
	case r.events <- e:
	default:
		metrics.AuditDropped.Inc()
		r.logger.Warn(context.Background(), "audit queue full, dropping event", "action", action)
	}
}

// Close stops accepting events and waits for the queue to drain.
func (r *Recorder) Close() {
	close(r.events)
	r.wg.Wait()
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	repo := r.repos.Audit(r.db)
	for e := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		if err := repo.Insert(ctx, &e); err != nil {
			metrics.AuditDropped.Inc()
			r.logger.Warn(ctx, "audit write failed", "action", e.Action, "error", err)
		}
		cancel()
	}
}
