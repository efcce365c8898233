package kernel

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"karl/interpreter"
	"karl/lexer"
	"karl/parser"
	"karl/repl"
)

// streamSink adapts an ioSink to interpreter.SetOutput's outputSink
// interface, so `log` output during an execute_request is routed to
// the I/O publish worker instead of the process's stdout.
type streamSink struct {
	out ioSink
}

func (s streamSink) WriteStream(text string) {
	if s.out != nil {
		s.out.Stream("stdout", text)
	}
}

// sinkStdin adapts an ioSink's RequestInput into an io.Reader, so the
// interpreter's readLine builtin (which reads a bufio.Reader) can pull
// stdin from the front end via input_request/input_reply one line at a
// time, transparently to the builtin itself.
type sinkStdin struct {
	sink ioSink
	buf  []byte
}

func (s *sinkStdin) Read(p []byte) (int, error) {
	if len(s.buf) == 0 {
		line, err := s.sink.RequestInput("", false)
		if err != nil {
			return 0, err
		}
		s.buf = []byte(line + "\n")
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// KarlHandler is the ShellHandler adapter wrapping the karl interpreter: one
// per kernel, owning the single long-lived Environment and Evaluator that
// persist bindings across execute requests within a session.
type KarlHandler struct {
	eval *interpreter.Evaluator
	env  *interpreter.Environment
}

func NewKarlHandler() *KarlHandler {
	return &KarlHandler{
		eval: interpreter.NewEvaluatorWithSourceAndFilename("", "<jupyter>"),
		env:  interpreter.NewBaseEnvironment(),
	}
}

func (h *KarlHandler) Info() (kernelInfoReply, error) {
	return kernelInfoReply{
		ProtocolVersion:       protocolVersion,
		Implementation:        "karl-kernel",
		ImplementationVersion: "0.1.0",
		LanguageInfo: languageInfo{
			Name:          "karl",
			Version:       "0.1.0",
			Mimetype:      "text/x-karl",
			FileExtension: ".k",
		},
		Banner: "Karl Programming Language Kernel",
	}, nil
}

// IsComplete defers to the REPL's incomplete-input heuristic so the two
// front ends (interactive REPL and is_complete_request) never drift apart.
func (h *KarlHandler) IsComplete(code string) completionStatus {
	if strings.TrimSpace(code) == "" {
		return statusComplete
	}

	l := lexer.New(code)
	p := parser.New(l)
	p.ParseProgram()
	if repl.IsIncompleteInput(code, p.ErrorsDetailed()) {
		return statusIncomplete
	}
	if len(p.Errors()) > 0 {
		return statusInvalid
	}
	return statusComplete
}

// Complete offers identifier completions against the current environment
// snapshot for the token under the cursor, mirroring the
// matches/cursor_start/cursor_end shape amalthea's R kernel returns.
func (h *KarlHandler) Complete(code string, cursorPos int) ([]string, int, int) {
	if cursorPos < 0 || cursorPos > len(code) {
		cursorPos = len(code)
	}
	start := cursorPos
	for start > 0 && isIdentRune(rune(code[start-1])) {
		start--
	}
	prefix := code[start:cursorPos]

	snapshot := h.env.Snapshot()
	matches := make([]string, 0, len(snapshot))
	for name := range snapshot {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	return matches, start, cursorPos
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// CommInfo is trivial: the karl language has no comm/widget system.
func (h *KarlHandler) CommInfo(targetName string) map[string]interface{} {
	return map[string]interface{}{}
}

// Execute parses and evaluates code against the handler's persistent
// environment. Mid-execution output is routed through out via
// Evaluator.SetOutput; interruption is cooperative, following the same
// cancellation shape as the language's own spawn/race tasks.
func (h *KarlHandler) Execute(ctx context.Context, req executeRequestContent, out ioSink) executeOutcome {
	if h.IsComplete(req.Code) == statusIncomplete {
		return executeOutcome{Incomplete: true}
	}

	h.eval.SetOutput(streamSink{out: out})
	if req.AllowStdin {
		h.eval.SetInput(&sinkStdin{sink: out})
	} else {
		h.eval.SetInput(nil)
		h.eval.SetInputUnavailableMessage("stdin is not available for this request (allow_stdin=false)")
	}

	l := lexer.New(req.Code)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		return executeOutcome{
			Err:        fmt.Errorf("parse error: %s", strings.Join(p.Errors(), "; ")),
			ErrorName:  "ParseError",
			ErrorValue: strings.Join(p.Errors(), "; "),
			Traceback:  p.Errors(),
		}
	}

	// A fresh top-level task gives this single Eval call the same cooperative
	// cancellation support spawn/race get: every node evaluated checks
	// task.canceled() (eval_runtime_checks.go), and blocking builtins like
	// sleep/http/sql select on its cancelCh (runtime_signals.go). Using a
	// clone rather than h.eval itself keeps h.eval's own currentTask (nil,
	// top-level) untouched across requests.
	evalCtx, task := h.eval.NewCancelableEvaluator()

	type evalResult struct {
		val interpreter.Value
		err error
	}
	resultCh := make(chan evalResult, 1)
	go func() {
		val, _, err := evalCtx.Eval(program, h.env)
		resultCh <- evalResult{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		// Close the task's cancelCh so the goroutine's next cooperative
		// cancellation check fires, then wait for it to actually return
		// before handing h.env/h.eval to the next queued request. Without
		// this wait the orphaned goroutine keeps evaluating against the
		// same shared environment concurrently with whatever runs next,
		// violating the coordinator's single-threaded-interior invariant.
		task.Cancel()
		<-resultCh
		return executeOutcome{Interrupted: true}
	case r := <-resultCh:
		if r.err != nil {
			return executeOutcome{
				Err:        r.err,
				ErrorName:  errorName(r.err),
				ErrorValue: r.err.Error(),
				Traceback:  []string{r.err.Error()},
			}
		}
		return executeOutcome{Result: formatResult(r.val)}
	}
}

func formatResult(val interpreter.Value) string {
	if val == nil {
		return ""
	}
	if _, ok := val.(*interpreter.Unit); ok {
		return ""
	}
	if pp, ok := val.(interpreter.PrettyPrinter); ok {
		return pp.Pretty(0)
	}
	return val.Inspect()
}

func errorName(err error) string {
	return ClassifyError(err)
}

// ClassifyError maps an interpreter error to its ename for error content
// messages. Exported so other front ends executing karl programs (e.g. the
// notebook runner) report the same exception names a kernel session would.
func ClassifyError(err error) string {
	switch e := err.(type) {
	case *interpreter.RuntimeError:
		return "RuntimeError"
	case *interpreter.RecoverableError:
		if e.Kind != "" {
			return e.Kind
		}
		return "RecoverableError"
	case *interpreter.UnhandledTaskError:
		return "UnhandledTaskError"
	default:
		return "Error"
	}
}
