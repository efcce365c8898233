package kernel

import (
	"log"

	"github.com/go-zeromq/zmq4"
)

// controlWorker is structurally identical to the shell worker but bound to
// the control endpoint. It handles the interrupt/shutdown verbs (spec
// §4.5) and also answers kernel_info_request. It shares the coordinator with the shell worker so interrupt
// and shutdown observe the same in-flight execute_request.
type controlWorker struct {
	sock        zmq4.Socket
	session     *Session
	iopub       *ioPubWorker
	handler     ShellHandler
	coordinator *executionCoordinator
	logger      *log.Logger
	fatal       chan<- error
}

func (w *controlWorker) run() {
	for {
		raw, err := w.sock.Recv()
		if err != nil {
			w.logger.Printf("control socket closed: %v", err)
			w.fatal <- newWireError(ErrChannelClosed, err.Error())
			return
		}

		identities, msg, err := ParseMessage(w.session, raw.Frames)
		if err != nil {
			w.logger.Printf("error parsing control message: %v", err)
			continue
		}

		w.iopub.publish(msg.Header, "status", statusContent{ExecutionState: "busy"})
		w.dispatch(identities, msg)
		w.iopub.publish(msg.Header, "status", statusContent{ExecutionState: "idle"})
	}
}

func (w *controlWorker) dispatch(identities [][]byte, msg *Message) {
	switch msg.Header.MsgType {
	case "interrupt_request":
		w.coordinator.interrupt()
		if err := sendOn(w.sock, w.session, msg.Header, "interrupt_reply", interruptReplyContent{Status: "ok"}, identities); err != nil {
			w.logger.Printf("error sending interrupt_reply: %v", err)
		}
	case "shutdown_request":
		handleShutdown(w.sock, w.session, w.coordinator, w.logger, w.fatal, identities, msg)
	case "kernel_info_request":
		info, err := w.handler.Info()
		if err != nil {
			w.logger.Printf("error building kernel_info_reply: %v", err)
			return
		}
		if err := sendOn(w.sock, w.session, msg.Header, "kernel_info_reply", info, identities); err != nil {
			w.logger.Printf("error sending kernel_info_reply: %v", err)
		}
	default:
		w.logger.Printf("unknown control message type: %s", msg.Header.MsgType)
	}
}
