package executor

import (
	"io"
	"sync"
)

// Executor is inspired by Java Executor that abstracts submitting a task and executing it.
type Executor interface {
	// Execute executes the given command.
	Execute(func())
}

// ExecuteCloser adds io.Closer to Executor.
//
// Close waits for all submitted commands to finish. Commands submitted after Close run on the caller's goroutine.
type ExecuteCloser interface {
	Executor
	io.Closer
}

// NewCallerRunOnRejectExecutor returns a new Executor with n workers that will execute the command on same goroutine
// as caller if all workers are busy.
//
// If n is 0 or less, every command runs on the caller's goroutine.
func NewCallerRunOnRejectExecutor(n int) ExecuteCloser {
	if n <= 0 {
		return &callerRunExecutor{}
	}

	ex := &callerRunOnRejectExecutor{inputs: make(chan func())}
	ex.wg.Add(n)
	for range n {
		go func() {
			defer ex.wg.Done()

			for f := range ex.inputs {
				f()
			}
		}()
	}

	return ex
}

type callerRunOnRejectExecutor struct {
	inputs chan func()
	wg     sync.WaitGroup

	// mu guards closed and sends on inputs.
	mu     sync.RWMutex
	closed bool
}

func (ex *callerRunOnRejectExecutor) Execute(f func()) {
	ex.mu.RLock()
	if !ex.closed {
		select {
		case ex.inputs <- f:
			ex.mu.RUnlock()
			return
		default:
		}
	}
	ex.mu.RUnlock()

	f()
}

func (ex *callerRunOnRejectExecutor) Close() error {
	ex.mu.Lock()
	if !ex.closed {
		ex.closed = true
		close(ex.inputs)
	}
	ex.mu.Unlock()

	ex.wg.Wait()
	return nil
}

type callerRunExecutor struct {
}

func (ex callerRunExecutor) Execute(f func()) {
	f()
}

func (ex callerRunExecutor) Close() error {
	return nil
}
