// Package interrupt routes process interrupts to the session in flight.
//
// A Trap owns the only signal subscription for the process. Sessions arm it
// for their lifetime; an interrupt cancels the armed session once. With no
// session armed, or a second interrupt before the session is released, the
// idle handler runs instead.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/minhyannv/diagram-agent/pkg/logger"
)

// ExitCode is the conventional status for a process ended by SIGINT.
const ExitCode = 130

// Armer hands out per-session contexts that an interrupt cancels.
type Armer interface {
	Arm(parent context.Context) (context.Context, func())
}

var _ Armer = (*Trap)(nil)

// Trap dispatches interrupt signals.
type Trap struct {
	mu     sync.Mutex
	gen    uint64
	armed  uint64
	cancel context.CancelFunc

	idle   func(os.Signal)
	logger logger.Logger

	sigs chan os.Signal
	stop func()
	done chan struct{}
	once sync.Once
}

// New subscribes to SIGINT and SIGTERM and starts dispatching. idle may be
// nil, in which case unarmed interrupts are dropped.
func New(idle func(os.Signal), log logger.Logger) *Trap {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	return start(sigs, func() { signal.Stop(sigs) }, idle, log)
}

func start(sigs chan os.Signal, stop func(), idle func(os.Signal), log logger.Logger) *Trap {
	if log == nil {
		log = logger.NopLogger{}
	}
	t := &Trap{
		idle:   idle,
		logger: log,
		sigs:   sigs,
		stop:   stop,
		done:   make(chan struct{}),
	}
	go t.loop()
	return t
}

// Arm derives a session context from parent that the next interrupt
// cancels. release disarms the trap and frees the context; it is safe to
// call more than once.
func (t *Trap) Arm(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	t.gen++
	id := t.gen
	t.armed = id
	t.cancel = cancel
	t.mu.Unlock()

	release := func() {
		t.mu.Lock()
		if t.armed == id {
			t.armed = 0
			t.cancel = nil
		}
		t.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Close stops signal delivery. Armed sessions are left untouched.
func (t *Trap) Close() {
	t.once.Do(func() {
		if t.stop != nil {
			t.stop()
		}
		close(t.done)
	})
}

func (t *Trap) loop() {
	for {
		select {
		case <-t.done:
			return
		case sig := <-t.sigs:
			t.dispatch(sig)
		}
	}
}

func (t *Trap) dispatch(sig os.Signal) {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.armed = 0
	t.mu.Unlock()

	if cancel != nil {
		t.logger.Debug("interrupt: cancelling session", map[string]any{"signal": sig.String()})
		cancel()
		return
	}
	t.logger.Debug("interrupt: no session armed", map[string]any{"signal": sig.String()})
	if t.idle != nil {
		t.idle(sig)
	}
}
