package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Poller runs a task on a fixed interval until stopped. The worker uses it
// to drain rows whose AMQP message was lost.
type Poller struct {
	interval time.Duration
	task     func(context.Context) error

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewPoller(interval time.Duration, task func(context.Context) error) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{interval: interval, task: task}
}

// Start begins the loop. It returns an error if already running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("poller is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.loop(ctx, p.stopCh, p.doneCh)

	slog.InfoContext(ctx, "Pending sync poller started", "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish or ctx to end.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Pending sync poller stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Pending sync poller stop timed out")
		return ctx.Err()
	}
}

func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.task(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Pending sync run failed", "error", err)
			}
		}
	}
}
