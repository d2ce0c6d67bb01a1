package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/nimburion/devserver/pkg/observability/logger"
)

// State is the lifecycle phase of a Coordinator.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Source is a termination trigger. Wait blocks until the trigger fires and
// returns nil, or returns ctx.Err() once ctx is done.
type Source interface {
	Name() string
	Wait(ctx context.Context) error
}

// SourceFunc adapts a function to Source.
type SourceFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (s SourceFunc) Name() string                   { return s.Label }
func (s SourceFunc) Wait(ctx context.Context) error { return s.Fn(ctx) }

// Signal is a Source backed by an OS signal subscription. The subscription is
// taken when the source is created and held until Release, so a repeated
// signal during the drain is absorbed instead of taking the default action.
type Signal struct {
	name string
	ch   chan os.Signal
	once sync.Once
}

// SignalSource subscribes to sig and fires when the process receives it.
func SignalSource(name string, sig os.Signal) *Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	return &Signal{name: name, ch: ch}
}

func (s *Signal) Name() string { return s.name }

// Wait implements Source.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release drops the subscription. The signal takes its default action again.
func (s *Signal) Release() {
	s.once.Do(func() { signal.Stop(s.ch) })
}

// PendingSource never fires. It stands in for signals the platform lacks.
func PendingSource(name string) Source {
	return SourceFunc{
		Label: name,
		Fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
}

// Coordinator fans several termination sources into one shutdown decision.
// The first source to fire moves it from Running to Draining; later firings
// are ignored.
type Coordinator struct {
	log     logger.Logger
	sources []Source

	state  atomic.Int32
	once   sync.Once
	done   chan struct{}
	reason atomic.Value
}

// NewCoordinator creates a coordinator in the Running state.
func NewCoordinator(log logger.Logger, sources ...Source) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{
		log:     log,
		sources: sources,
		done:    make(chan struct{}),
	}
}

// Watch races the sources until one fires or ctx is done. Every source
// goroutine has returned by the time Watch does; signal subscriptions stay
// in place until MarkStopped.
func (c *Coordinator) Watch(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, src := range c.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			if err := src.Wait(watchCtx); err == nil {
				c.Trigger(src.Name())
			}
		}(src)
	}

	var err error
	select {
	case <-c.done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	cancel()
	wg.Wait()
	return err
}

// Trigger starts draining. It reports whether this call caused the transition.
func (c *Coordinator) Trigger(reason string) bool {
	fired := false
	c.once.Do(func() {
		fired = true
		c.reason.Store(reason)
		c.state.Store(int32(StateDraining))
		c.log.Info("shutdown signal received, draining", "signal", reason)
		close(c.done)
	})
	return fired
}

// Done is closed when draining starts.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Context returns a child of parent that is cancelled when draining starts.
func (c *Coordinator) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// MarkStopped records that every server has finished draining and releases
// the signal subscriptions.
func (c *Coordinator) MarkStopped() {
	c.state.Store(int32(StateStopped))
	c.Release()
}

// Release drops every signal subscription held by the sources. Signals keep
// being absorbed until then, even after Watch has returned.
func (c *Coordinator) Release() {
	for _, src := range c.sources {
		if r, ok := src.(interface{ Release() }); ok {
			r.Release()
		}
	}
}

// State returns the current phase.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Reason returns the name of the source that started draining, if any.
func (c *Coordinator) Reason() string {
	if v, ok := c.reason.Load().(string); ok {
		return v
	}
	return ""
}
