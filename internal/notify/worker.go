package notify

import (
	"context"
	"log/slog"
	"time"

	"geoattend/internal/metrics"
	"geoattend/internal/queue"
)

// Pusher sends an unsolicited text to a participant.
type Pusher interface {
	Push(ctx context.Context, to, text string) error
}

// Worker drains notify jobs from a queue.
type Worker struct {
	queue   queue.Queue
	pusher  Pusher
	metrics *metrics.Metrics
	log     *slog.Logger
	timeout time.Duration
}

// NewWorker builds a worker. m and log may be nil.
func NewWorker(q queue.Queue, p Pusher, m *metrics.Metrics, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{queue: q, pusher: p, metrics: m, log: log.With("component", "notify"), timeout: 10 * time.Second}
}

// Run consumes until ctx is cancelled. Failed pushes are logged and dropped.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}
	w.log.Info("worker started, waiting for messages")
	for msg := range messages {
		w.process(ctx, msg)
	}
	w.log.Info("worker stopped")
	return nil
}

func (w *Worker) process(ctx context.Context, msg queue.Message) {
	if msg.Type != queue.TypeNotify {
		w.log.Warn("skipping unknown job", "type", msg.Type)
		return
	}
	if msg.Recipient == "" || msg.Text == "" {
		w.log.Warn("skipping incomplete notify job")
		w.metrics.IncNotification("invalid")
		return
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	if err := w.pusher.Push(pushCtx, msg.Recipient, msg.Text); err != nil {
		w.log.Error("push failed", "recipient", msg.Recipient, "error", err)
		w.metrics.IncNotification("failed")
		return
	}
	w.metrics.IncNotification("sent")
}
