package queue

import (
	"context"
	"encoding/json"
	"time"

	"teamboard/microservices/collab-service/logging"
)

// HandlerFunc processes one job payload. A returned error requeues the job
// until the attempt budget runs out.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Worker drains the fan-out queue. Each job type has one registered handler;
// failed jobs go back on the queue with an incremented attempt counter and a
// growing backoff, and are dropped with a log line once maxAttempts is spent.
type Worker struct {
	queue       Queue
	handlers    map[string]HandlerFunc
	maxAttempts int
	backoff     time.Duration
}

func NewWorker(q Queue) *Worker {
	return &Worker{
		queue:       q,
		handlers:    make(map[string]HandlerFunc),
		maxAttempts: 3,
		backoff:     2 * time.Second,
	}
}

func (w *Worker) Handle(jobType string, fn HandlerFunc) {
	w.handlers[jobType] = fn
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	logging.Logger.Info("Event ID: WORKER_START, Description: Fan-out worker started")

	for {
		select {
		case <-ctx.Done():
			logging.Logger.Info("Event ID: WORKER_STOP, Description: Fan-out worker stopped")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logging.Logger.Errorf("Event ID: WORKER_DEQUEUE_FAILED, Description: Failed to dequeue job: %v", err)
			time.Sleep(w.backoff)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, *job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	handler, ok := w.handlers[job.Type]
	if !ok {
		logging.Logger.Warnf("Event ID: WORKER_UNKNOWN_JOB, Description: No handler registered for job type %q, dropping", job.Type)
		return
	}

	if err := handler(ctx, job.Payload); err != nil {
		job.Attempts++
		if job.Attempts >= w.maxAttempts {
			logging.Logger.Errorf("Event ID: WORKER_JOB_DROPPED, Description: Job %q dropped after %d attempts: %v", job.Type, job.Attempts, err)
			return
		}

		logging.Logger.Warnf("Event ID: WORKER_JOB_RETRY, Description: Job %q failed (attempt %d/%d), requeueing: %v", job.Type, job.Attempts, w.maxAttempts, err)

		// Requeue before backing off so a shutdown during the pause cannot
		// lose the job, then pace the loop without outliving ctx.
		if err := w.queue.Enqueue(ctx, job); err != nil {
			logging.Logger.Errorf("Event ID: WORKER_REQUEUE_FAILED, Description: Failed to requeue job %q: %v", job.Type, err)
			return
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.backoff * time.Duration(job.Attempts)):
		}
	}
}
