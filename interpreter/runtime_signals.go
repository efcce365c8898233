package interpreter

// runtimeFatalSignal returns a channel that closes once a spawned task has
// reported an unrecoverable failure under the fail-fast task policy.
func runtimeFatalSignal(e *Evaluator) <-chan struct{} {
	if e == nil || e.runtime == nil {
		return nil
	}
	return e.runtime.fatalSignal()
}

// runtimeCancelSignal returns the cancellation channel for the task the
// evaluator is currently executing, or nil outside of a task.
func runtimeCancelSignal(e *Evaluator) <-chan struct{} {
	if e == nil || e.currentTask == nil {
		return nil
	}
	return e.currentTask.cancelCh
}

func runtimeFatalError(e *Evaluator) error {
	if e != nil && e.runtime != nil {
		if err := e.runtime.getFatalTaskFailure(); err != nil {
			return err
		}
	}
	return &RuntimeError{Message: "runtime terminated"}
}
