/*
worker.go - Single-consumer regeneration worker

PURPOSE:
  Consumes regeneration queue items one at a time. A single consumer is
  the per-tenant serialization guarantee: no two regenerations can
  interleave their delete+insert sequences, for the same tenant or
  otherwise. Combined with the queue's at-most-one-in-flight rule this
  gives the single-writer discipline the reconciler requires.

FAILURE:
  A failed item keeps its error message and stays failed until an
  administrator retries it. The worker never retries on its own.
*/
package ledger

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/tenancy-engine/engine"
)

// Worker polls the queue store and runs the reconciler.
type Worker struct {
	Queue      *Queue
	Store      QueueStore
	Reconciler *Reconciler

	// PollInterval is how long the worker sleeps on an empty queue.
	PollInterval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewWorker(queue *Queue, store QueueStore, reconciler *Reconciler) *Worker {
	return &Worker{
		Queue:        queue,
		Store:        store,
		Reconciler:   reconciler,
		PollInterval: 250 * time.Millisecond,
		stop:         make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	log.Printf("[Worker] Started (poll interval %v)", w.PollInterval)
}

// Stop shuts the worker down after the in-flight item (if any) finishes.
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
	log.Println("[Worker] Stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		processed, err := w.ProcessNext(context.Background())
		if err != nil {
			log.Printf("[Worker] queue error: %v", err)
		}
		if !processed {
			select {
			case <-w.stop:
				return
			case <-time.After(w.PollInterval):
			}
		}
	}
}

// ProcessNext handles the oldest pending item, if any. Exported so tests
// and callers needing synchronous draining can drive the worker directly.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	item, err := w.Store.NextPending(ctx)
	if err != nil || item == nil {
		return false, err
	}

	if err := w.Store.SetStatus(ctx, item.ID, QueueProcessing, ""); err != nil {
		return true, err
	}

	result, err := w.process(ctx, *item)
	if err != nil {
		// Error message persists on the failed item; retry is manual.
		if serr := w.Store.SetStatus(ctx, item.ID, QueueFailed, err.Error()); serr != nil {
			log.Printf("[Worker] item %s: failed to record failure: %v", item.ID, serr)
		}
		log.Printf("[Worker] item %s: regeneration failed: %v", item.ID, err)
	} else {
		if serr := w.Store.SetStatus(ctx, item.ID, QueueCompleted, ""); serr != nil {
			log.Printf("[Worker] item %s: failed to record completion: %v", item.ID, serr)
		}
		log.Printf("[Worker] item %s: tenant %s regenerated (deleted=%d created=%d preserved=%t)",
			item.ID, item.TenantID, result.RecordsDeleted, result.RecordsCreated, result.BalancePreserved)
	}

	w.Queue.notifyDone(item.ID)
	return true, nil
}

func (w *Worker) process(ctx context.Context, item RegenerationRequest) (ReconcileResult, error) {
	dueDay, err := engine.ParseDueDay(item.NewFrequency, item.NewDueDay)
	if err != nil {
		return ReconcileResult{}, err
	}
	newSettings := engine.TenancySettings{
		TenantID:   item.TenantID,
		Frequency:  item.NewFrequency,
		RentAmount: item.NewRentAmount,
		DueDay:     dueDay,
	}
	return w.Reconciler.Regenerate(ctx, item.TenantID, newSettings)
}
