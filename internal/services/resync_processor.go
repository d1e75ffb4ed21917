package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Resyncer rebuilds every owner's ledger and its downstream copies.
type Resyncer interface {
	ResyncAll(ctx context.Context) error
}

// ResyncProcessorConfig holds configuration for the resync processor
type ResyncProcessorConfig struct {
	// Interval is how often to run a full resync (default: 5m)
	Interval time.Duration

	// RunOnStart triggers a resync as soon as the processor starts (default: true)
	RunOnStart bool
}

func DefaultResyncProcessorConfig() ResyncProcessorConfig {
	return ResyncProcessorConfig{
		Interval:   5 * time.Minute,
		RunOnStart: true,
	}
}

// ResyncProcessor periodically recalculates every ledger and re-mirrors it.
// It is the backstop for lost AMQP messages and for passes interrupted by a
// storage failure.
type ResyncProcessor struct {
	resyncer Resyncer
	config   ResyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewResyncProcessor(resyncer Resyncer, config ResyncProcessorConfig) *ResyncProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultResyncProcessorConfig().Interval
	}
	return &ResyncProcessor{
		resyncer: resyncer,
		config:   config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ResyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("resync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Resync processor started", "interval", p.config.Interval)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ResyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	// Signal stop
	close(stopCh)

	// Wait for completion or context cancellation
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Resync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Resync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// Run starts the processor and blocks until ctx is done, then stops it.
func (p *ResyncProcessor) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.Stop(stopCtx)
}

// IsRunning returns whether the processor is currently running
func (p *ResyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ResyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	if p.config.RunOnStart {
		p.resync(ctx)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.resync(ctx)
		}
	}
}

func (p *ResyncProcessor) resync(ctx context.Context) {
	start := time.Now()
	if err := p.resyncer.ResyncAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Periodic resync failed", "error", err, "duration", time.Since(start))
		return
	}
	slog.DebugContext(ctx, "Periodic resync completed", "duration", time.Since(start))
}
