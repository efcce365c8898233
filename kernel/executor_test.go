package kernel

import (
	"context"
	"io"
	"log"
	"testing"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fakeHandler struct {
	outcome executeOutcome
}

func (f *fakeHandler) Info() (kernelInfoReply, error)                   { return kernelInfoReply{}, nil }
func (f *fakeHandler) IsComplete(code string) completionStatus           { return statusComplete }
func (f *fakeHandler) Complete(code string, pos int) ([]string, int, int) { return nil, 0, 0 }
func (f *fakeHandler) CommInfo(target string) map[string]interface{}    { return map[string]interface{}{} }
func (f *fakeHandler) Execute(ctx context.Context, req executeRequestContent, out ioSink) executeOutcome {
	return f.outcome
}

func newTestCoordinator(handler ShellHandler) (*executionCoordinator, *ioPubWorker) {
	iopub := newIOPubWorker(nil, NewSession("kernel", nil), discardLogger())
	c := newExecutionCoordinator(handler, iopub, nil, discardLogger())
	return c, iopub
}

func drainIOPub(t *testing.T, iopub *ioPubWorker, n int) []ioMessage {
	t.Helper()
	out := make([]ioMessage, 0, n)
	for i := 0; i < n; i++ {
		select {
		case msg := <-iopub.inbox:
			out = append(out, msg)
		default:
			t.Fatalf("expected %d iopub messages, only got %d", n, len(out))
		}
	}
	return out
}

func TestExecutionCoordinatorIncrementsCounterOnlyWithStoreHistory(t *testing.T) {
	handler := &fakeHandler{outcome: executeOutcome{Result: "2"}}
	c, iopub := newTestCoordinator(handler)

	run := func(storeHistory bool) executeReply {
		replyCh := make(chan executeReply, 1)
		c.handleJob(executeJob{
			Req:     executeRequestContent{Code: "1+1", StoreHistory: storeHistory, Silent: true},
			ReplyCh: replyCh,
		})
		return <-replyCh
	}

	r1 := run(true)
	drainIOPub(t, iopub, 1) // execute_result
	ok1, isOK := r1.Content.(executeReplyOK)
	if !isOK || ok1.ExecutionCount != 1 {
		t.Fatalf("first reply = %+v, want execution_count 1", r1.Content)
	}

	r2 := run(false)
	drainIOPub(t, iopub, 1)
	ok2, isOK := r2.Content.(executeReplyOK)
	if !isOK || ok2.ExecutionCount != 1 {
		t.Fatalf("second reply = %+v, want execution_count still 1", r2.Content)
	}

	r3 := run(true)
	drainIOPub(t, iopub, 1)
	ok3, isOK := r3.Content.(executeReplyOK)
	if !isOK || ok3.ExecutionCount != 2 {
		t.Fatalf("third reply = %+v, want execution_count 2", r3.Content)
	}
}

func TestExecutionCoordinatorSilentOmitsExecuteInput(t *testing.T) {
	handler := &fakeHandler{outcome: executeOutcome{Result: ""}}
	c, iopub := newTestCoordinator(handler)

	replyCh := make(chan executeReply, 1)
	c.handleJob(executeJob{
		Req:     executeRequestContent{Code: "noop", StoreHistory: true, Silent: true},
		ReplyCh: replyCh,
	})
	<-replyCh

	select {
	case msg := <-iopub.inbox:
		t.Fatalf("expected no iopub message for silent no-result execute, got %s", msg.MsgType)
	default:
	}
}

func TestExecutionCoordinatorPublishesExecuteInputWhenNotSilent(t *testing.T) {
	handler := &fakeHandler{outcome: executeOutcome{Result: "3"}}
	c, iopub := newTestCoordinator(handler)

	replyCh := make(chan executeReply, 1)
	c.handleJob(executeJob{
		Header:  Header{MsgID: "req-1"},
		Req:     executeRequestContent{Code: "1+2", StoreHistory: true, Silent: false},
		ReplyCh: replyCh,
	})
	<-replyCh

	msgs := drainIOPub(t, iopub, 2)
	if msgs[0].MsgType != "execute_input" {
		t.Fatalf("first iopub message = %s, want execute_input", msgs[0].MsgType)
	}
	if msgs[1].MsgType != "execute_result" {
		t.Fatalf("second iopub message = %s, want execute_result", msgs[1].MsgType)
	}
	for _, m := range msgs {
		if m.ParentHeader.MsgID != "req-1" {
			t.Fatalf("parent header not propagated on %s", m.MsgType)
		}
	}
}

func TestExecutionCoordinatorIncompleteInput(t *testing.T) {
	handler := &fakeHandler{outcome: executeOutcome{Incomplete: true}}
	c, _ := newTestCoordinator(handler)

	replyCh := make(chan executeReply, 1)
	c.handleJob(executeJob{
		Req:     executeRequestContent{Code: "1+"},
		ReplyCh: replyCh,
	})
	reply := <-replyCh

	errContent, ok := reply.Content.(executeReplyError)
	if !ok || errContent.Ename != "IncompleteInput" {
		t.Fatalf("reply = %+v, want IncompleteInput exception", reply.Content)
	}
}
