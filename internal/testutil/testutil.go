// Package testutil collects the small goroutine-lifecycle helpers every
// scenario test in this module needs: a WaitGroup-backed spawner, a
// wait-with-timeout, and a goroutine-leak check. Grounded on go-mcast's
// test.TestInvoker, test.WaitThisOrTimeout and test.PrintStackTrace, and on
// fuzzy/commit_test.go's goleak.VerifyNone teardown convention.
package testutil

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// Invoker spawns goroutines tracked by a WaitGroup, mirroring go-mcast's
// TestInvoker so fleet helpers can start worker goroutines without the
// caller hand-rolling its own WaitGroup bookkeeping.
type Invoker struct {
	group sync.WaitGroup
}

// Spawn runs f in a new goroutine, tracked until Stop.
func (i *Invoker) Spawn(f func()) {
	i.group.Add(1)
	go func() {
		defer i.group.Done()
		f()
	}()
}

// Stop blocks until every goroutine started by Spawn has returned.
func (i *Invoker) Stop() {
	i.group.Wait()
}

// WaitOrTimeout runs cb in its own goroutine and reports whether it
// completed within duration. Equivalent to go-mcast's WaitThisOrTimeout.
func WaitOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan struct{})
	go func() {
		cb()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}

// PrintStackTrace dumps every goroutine's stack into t's failure log, for
// diagnosing a shutdown that didn't complete within WaitOrTimeout's budget.
func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("%s", buf[:n])
}

// VerifyNoLeaks should be deferred at the top of any scenario test that
// spins up worker goroutines, after they've been torn down. It ignores the
// background goroutines the test binary itself always carries.
func VerifyNoLeaks(t *testing.T) {
	goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("testing.(*M).Run"),
		goleak.IgnoreTopFunction("time.Sleep"),
	)
}
