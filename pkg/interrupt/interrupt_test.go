package interrupt

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 2 * time.Second

func newTestTrap(t *testing.T) (*Trap, chan os.Signal, chan os.Signal) {
	t.Helper()
	sigs := make(chan os.Signal)
	idle := make(chan os.Signal, 4)
	trap := start(sigs, nil, func(s os.Signal) { idle <- s }, nil)
	t.Cleanup(trap.Close)
	return trap, sigs, idle
}

func TestInterruptCancelsArmedSession(t *testing.T) {
	trap, sigs, idle := newTestTrap(t)

	ctx, release := trap.Arm(context.Background())
	defer release()

	sigs <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(wait):
		t.Fatal("session context was not cancelled")
	}
	assert.Empty(t, idle)
}

func TestInterruptWhileIdleRunsHandler(t *testing.T) {
	_, sigs, idle := newTestTrap(t)

	sigs <- os.Interrupt

	select {
	case got := <-idle:
		assert.Equal(t, os.Interrupt, got)
	case <-time.After(wait):
		t.Fatal("idle handler did not run")
	}
}

func TestSecondInterruptFallsThroughToIdle(t *testing.T) {
	trap, sigs, idle := newTestTrap(t)

	ctx, release := trap.Arm(context.Background())
	defer release()

	sigs <- os.Interrupt
	<-ctx.Done()
	sigs <- os.Interrupt

	select {
	case <-idle:
	case <-time.After(wait):
		t.Fatal("second interrupt did not reach the idle handler")
	}
}

func TestReleasedSessionIsNotCancelledByLaterInterrupt(t *testing.T) {
	trap, sigs, idle := newTestTrap(t)

	first, releaseFirst := trap.Arm(context.Background())
	releaseFirst()
	require.Error(t, first.Err(), "release frees the context")

	second, releaseSecond := trap.Arm(context.Background())
	defer releaseSecond()

	// A stale release must not disarm the newer session.
	releaseFirst()

	sigs <- os.Interrupt
	select {
	case <-second.Done():
	case <-time.After(wait):
		t.Fatal("re-armed session was not cancelled")
	}
	assert.Empty(t, idle)
}

func TestArmInheritsParentCancellation(t *testing.T) {
	trap, _, _ := newTestTrap(t)

	parent, cancel := context.WithCancel(context.Background())
	ctx, release := trap.Arm(parent)
	defer release()

	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCloseIsIdempotent(t *testing.T) {
	stopped := 0
	trap := start(make(chan os.Signal), func() { stopped++ }, nil, nil)

	trap.Close()
	trap.Close()
	assert.Equal(t, 1, stopped)
}
