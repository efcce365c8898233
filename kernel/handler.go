package kernel

import "context"

// completionStatus is the result of is_complete_request, per spec §3
// Supplemented Features.
type completionStatus string

const (
	statusComplete   completionStatus = "complete"
	statusIncomplete completionStatus = "incomplete"
	statusInvalid    completionStatus = "invalid"
)

// executeOutcome carries the result of one execute() call back to the
// execution coordinator, which translates it into the wire reply and the
// execute_result/error I/O publication.
type executeOutcome struct {
	// Incomplete is set when the handler determined the code was not a
	// complete fragment; the coordinator replies with ename=IncompleteInput.
	Incomplete bool

	// Interrupted is set when execution was cancelled via ctx.
	Interrupted bool

	// Err is any other execution error (parse or evaluation failure).
	Err error

	// ErrorName/ErrorValue/Traceback describe Err for the reply-exception
	// shape, when Err is non-nil.
	ErrorName  string
	ErrorValue string
	Traceback  []string

	// Result, when non-empty, becomes the text/plain execute_result MIME map.
	Result string
	// MIME, when non-nil, supersedes Result with a richer MIME-type map
	// (e.g. tabular values → text/html alongside text/plain).
	MIME map[string]interface{}
}

// ioSink is the I/O scope handed to a handler's Execute call: stream output
// produced mid-execution is published through it without the handler
// knowing about sockets or headers, and (when allow_stdin is set) it is also
// how the handler requests a line of input from the front end.
type ioSink interface {
	Stream(name, text string)
	// RequestInput blocks for a line of stdin via input_request/input_reply.
	// Returns an error if stdin was not requested for this execute call.
	RequestInput(prompt string, password bool) (string, error)
}

// ShellHandler is the capability set a language plugin provides. The shell
// worker invokes these by name; no inheritance or dynamic dispatch is
// required (spec §9 design notes).
type ShellHandler interface {
	Info() (kernelInfoReply, error)
	IsComplete(code string) completionStatus
	Complete(code string, cursorPos int) (matches []string, cursorStart, cursorEnd int)
	CommInfo(targetName string) map[string]interface{}
	Execute(ctx context.Context, req executeRequestContent, out ioSink) executeOutcome
}
