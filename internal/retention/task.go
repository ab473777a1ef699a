package retention

// Task is the handle for a fire-and-forget maintenance operation. The caller
// does not await completion, but the host process must stay alive until Done
// is closed; results are inspected afterwards for logging.
type Task struct {
	done chan struct{}
	rows int64
	err  error
}

// Go runs fn in the background and returns its handle immediately.
func Go(fn func() (int64, error)) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.rows, t.err = fn()
	}()
	return t
}

// Done is closed when the operation has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the operation's error. Only valid after Done is closed.
func (t *Task) Err() error { return t.err }

// Rows returns how many rows the operation affected. Only valid after Done
// is closed.
func (t *Task) Rows() int64 { return t.rows }
