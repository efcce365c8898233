package kernel

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/go-zeromq/zmq4"
)

// executeJob is one execute_request forwarded from the shell worker to the
// coordinator, paired with a one-shot reply channel.
type executeJob struct {
	Header     Header
	Identities [][]byte
	Req        executeRequestContent
	ReplyCh    chan executeReply
}

// executeReply is what the coordinator hands back to the shell worker: the
// wire msg_type and content to send on the shell socket.
type executeReply struct {
	MsgType string
	Content interface{}
}

// requestIOSink scopes an ioPubWorker to a single request's parent header,
// so stream output published mid-execution carries the right parent_header
// without the handler needing to know about headers at all.
type requestIOSink struct {
	iopub  *ioPubWorker
	parent Header
	stdin  *stdinBridge
}

func (s requestIOSink) Stream(name, text string) {
	s.iopub.publish(s.parent, "stream", streamContent{Name: name, Text: text})
}

func (s requestIOSink) RequestInput(prompt string, password bool) (string, error) {
	if s.stdin == nil {
		return "", newWireError(ErrUnknownMsgType, "stdin not available")
	}
	return s.stdin.requestLine(prompt, password)
}

// executionCoordinator is the only component that invokes the shell
// handler's Execute. It owns the execution counter and serializes every
// execute_request through a single inbound channel (spec §4.6, §5).
type executionCoordinator struct {
	inbox   chan executeJob
	iopub   *ioPubWorker
	handler ShellHandler
	stdin   *stdinBridge
	logger  *log.Logger

	mu      sync.Mutex
	counter int
	cancel  context.CancelFunc
}

func newExecutionCoordinator(handler ShellHandler, iopub *ioPubWorker, stdin *stdinBridge, logger *log.Logger) *executionCoordinator {
	return &executionCoordinator{
		inbox:   make(chan executeJob, 16),
		iopub:   iopub,
		handler: handler,
		stdin:   stdin,
		logger:  logger,
	}
}

// interrupt cancels the currently running execute request, if any. Soft: the
// executor is expected to notice and return an Interrupted outcome; queued
// requests behind it are not drained (spec §5 cancellation).
func (c *executionCoordinator) interrupt() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *executionCoordinator) submit(job executeJob) {
	c.inbox <- job
}

// drain blocks until every execute_request enqueued before this call has
// been processed, by riding the inbox's FIFO single-consumer ordering: a
// trivial silent job submitted now only runs after everything ahead of it
// (spec §4.5 shutdown: wait for the coordinator to drain).
func (c *executionCoordinator) drain() {
	done := make(chan executeReply, 1)
	c.submit(executeJob{
		Req:     executeRequestContent{Silent: true, Code: ""},
		ReplyCh: done,
	})
	<-done
}

func (c *executionCoordinator) run() {
	for job := range c.inbox {
		c.handleJob(job)
	}
}

func (c *executionCoordinator) handleJob(job executeJob) {
	c.mu.Lock()
	if job.Req.StoreHistory {
		c.counter++
	}
	execCount := c.counter
	c.mu.Unlock()

	if !job.Req.Silent {
		c.iopub.publish(job.Header, "execute_input", executeInputContent{
			Code:           job.Req.Code,
			ExecutionCount: execCount,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	if job.Req.AllowStdin && c.stdin != nil {
		c.stdin.armFor(job.Header)
		defer c.stdin.disarm()
	}

	sink := requestIOSink{iopub: c.iopub, parent: job.Header, stdin: c.stdin}
	outcome := c.handler.Execute(ctx, job.Req, sink)
	cancel()

	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()

	switch {
	case outcome.Incomplete:
		job.ReplyCh <- executeReply{
			MsgType: "execute_reply",
			Content: executeReplyError{
				Status:         "error",
				ExecutionCount: execCount,
				Ename:          "IncompleteInput",
				Evalue:         "Code fragment is not complete: " + job.Req.Code,
				Traceback:      []string{},
			},
		}
	case outcome.Interrupted:
		job.ReplyCh <- executeReply{
			MsgType: "execute_reply",
			Content: executeReplyError{
				Status:         "error",
				ExecutionCount: execCount,
				Ename:          "Interrupted",
				Evalue:         "execution interrupted",
				Traceback:      []string{},
			},
		}
	case outcome.Err != nil:
		c.iopub.publish(job.Header, "error", errorContent{
			Ename:     outcome.ErrorName,
			Evalue:    outcome.ErrorValue,
			Traceback: outcome.Traceback,
		})
		job.ReplyCh <- executeReply{
			MsgType: "execute_reply",
			Content: executeReplyError{
				Status:         "error",
				ExecutionCount: execCount,
				Ename:          outcome.ErrorName,
				Evalue:         outcome.ErrorValue,
				Traceback:      outcome.Traceback,
			},
		}
	default:
		if outcome.Result != "" || outcome.MIME != nil {
			data := outcome.MIME
			if data == nil {
				data = map[string]interface{}{"text/plain": outcome.Result}
			}
			c.iopub.publish(job.Header, "execute_result", executeResultContent{
				ExecutionCount: execCount,
				Data:           data,
				Metadata:       map[string]interface{}{},
			})
		}
		job.ReplyCh <- executeReply{
			MsgType: "execute_reply",
			Content: executeReplyOK{
				Status:          "ok",
				ExecutionCount:  execCount,
				Payload:         []interface{}{},
				UserExpressions: map[string]interface{}{},
			},
		}
	}
}

// stdinBridge lets a handler executing under allow_stdin=true request a
// line of input from the front end mid-execution. Only one execute_request
// is ever in flight at a time (the coordinator is the serialization point),
// so a single pending slot is sufficient.
type stdinBridge struct {
	sock    zmq4.Socket
	session *Session
	logger  *log.Logger

	mu      sync.Mutex
	armed   bool
	parent  Header
	pending chan string
}

func newStdinBridge(sock zmq4.Socket, session *Session, logger *log.Logger) *stdinBridge {
	return &stdinBridge{sock: sock, session: session, logger: logger}
}

func (b *stdinBridge) armFor(parent Header) {
	b.mu.Lock()
	b.armed = true
	b.parent = parent
	b.mu.Unlock()
}

func (b *stdinBridge) disarm() {
	b.mu.Lock()
	b.armed = false
	b.mu.Unlock()
}

// requestLine sends input_request and blocks for the matching input_reply.
// Called from the karl runtime's readLine builtin through sinkStdin.Read
// (karlhandler.go) and requestIOSink.RequestInput.
func (b *stdinBridge) requestLine(prompt string, password bool) (string, error) {
	b.mu.Lock()
	if !b.armed {
		b.mu.Unlock()
		return "", newWireError(ErrUnknownMsgType, "stdin not allowed for this request")
	}
	parent := b.parent
	ch := make(chan string, 1)
	b.pending = ch
	b.mu.Unlock()

	if err := sendOn(b.sock, b.session, parent, "input_request", inputRequestContent{
		Prompt:   prompt,
		Password: password,
	}, nil); err != nil {
		return "", err
	}

	return <-ch, nil
}

// run drains input_reply messages arriving on the stdin ROUTER socket and
// delivers them to whichever requestLine call is waiting.
func (b *stdinBridge) run() {
	for {
		raw, err := b.sock.Recv()
		if err != nil {
			b.logger.Printf("stdin socket closed: %v", err)
			return
		}
		_, msg, err := ParseMessage(b.session, raw.Frames)
		if err != nil {
			b.logger.Printf("error parsing stdin reply: %v", err)
			continue
		}
		if msg.Header.MsgType != "input_reply" {
			continue
		}
		var reply inputReplyContent
		if err := decodeContent(msg.Content, &reply); err != nil {
			b.logger.Printf("error decoding input_reply: %v", err)
			continue
		}

		b.mu.Lock()
		ch := b.pending
		b.pending = nil
		b.mu.Unlock()

		if ch != nil {
			ch <- reply.Value
		}
	}
}

// decodeContent round-trips an already-parsed content map into a typed
// struct. Content arrives as map[string]interface{} from the wire codec;
// this is the standard way to recover a typed shape from it without a
// second hand-written decoder per verb.
func decodeContent(content map[string]interface{}, target interface{}) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
