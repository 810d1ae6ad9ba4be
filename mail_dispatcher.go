package authcore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type email struct {
	to      string
	subject string
	body    string
}

// mailDispatcher delivers emails asynchronously through a single worker so
// that mail transport latency and failures never reach the request path.
// Delivery errors are logged, counted, and discarded.
type mailDispatcher struct {
	cfg       MailConfig
	notifier  Notifier
	logger    *slog.Logger
	metrics   *Metrics
	ch        chan email
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newMailDispatcher(cfg MailConfig, notifier Notifier, logger *slog.Logger, metrics *Metrics) *mailDispatcher {
	if notifier == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &mailDispatcher{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		ch:       make(chan email, cfg.BufferSize),
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *mailDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *mailDispatcher) deliver(msg email) {
	if err := d.notifier.Send(context.Background(), msg.to, msg.subject, msg.body); err != nil {
		d.metrics.Inc(MetricMailFailed)
		d.logger.Error("authcore: email delivery failed", "subject", msg.subject, "error", err)
		return
	}
	d.metrics.Inc(MetricMailSent)
}

// Enqueue hands an email to the worker. With DropIfFull set, a full buffer
// discards the message instead of blocking the caller.
func (d *mailDispatcher) Enqueue(ctx context.Context, msg email) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- msg:
		case <-d.done:
		default:
			d.dropped.Add(1)
			d.metrics.Inc(MetricMailFailed)
		}
		return
	}

	select {
	case d.ch <- msg:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close drains buffered mail and stops the worker. Idempotent.
func (d *mailDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many emails were discarded due to a full buffer.
func (d *mailDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
