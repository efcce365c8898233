package kernel

import (
	"log"

	"github.com/go-zeromq/zmq4"
)

// shellWorker receives shell-channel requests, dispatches synchronous
// capability calls directly and forwards execute_request to the execution
// coordinator, bracketing every request with busy/idle status (spec §4.4).
type shellWorker struct {
	sock        zmq4.Socket
	session     *Session
	iopub       *ioPubWorker
	handler     ShellHandler
	coordinator *executionCoordinator
	logger      *log.Logger
	fatal       chan<- error
}

func (w *shellWorker) run() {
	for {
		raw, err := w.sock.Recv()
		if err != nil {
			w.logger.Printf("shell socket closed: %v", err)
			w.fatal <- newWireError(ErrChannelClosed, err.Error())
			return
		}

		identities, msg, err := ParseMessage(w.session, raw.Frames)
		if err != nil {
			w.logger.Printf("error parsing shell message: %v", err)
			continue
		}

		w.iopub.publish(msg.Header, "status", statusContent{ExecutionState: "busy"})
		w.dispatch(identities, msg)
		w.iopub.publish(msg.Header, "status", statusContent{ExecutionState: "idle"})
	}
}

func (w *shellWorker) dispatch(identities [][]byte, msg *Message) {
	switch msg.Header.MsgType {
	case "kernel_info_request":
		w.handleKernelInfo(identities, msg)
	case "is_complete_request":
		w.handleIsComplete(identities, msg)
	case "complete_request":
		w.handleComplete(identities, msg)
	case "comm_info_request":
		w.handleCommInfo(identities, msg)
	case "execute_request":
		w.handleExecute(identities, msg)
	case "shutdown_request":
		handleShutdown(w.sock, w.session, w.coordinator, w.logger, w.fatal, identities, msg)
	default:
		w.logger.Printf("unknown shell message type: %s", msg.Header.MsgType)
		if err := sendOn(w.sock, w.session, msg.Header, "error", errorContent{
			Ename:  "UnknownMsgType",
			Evalue: msg.Header.MsgType,
		}, identities); err != nil {
			w.logger.Printf("error sending unknown-type reply: %v", err)
		}
	}
}

func (w *shellWorker) handleKernelInfo(identities [][]byte, msg *Message) {
	info, err := w.handler.Info()
	if err != nil {
		w.logger.Printf("error building kernel_info_reply: %v", err)
		return
	}
	if err := sendOn(w.sock, w.session, msg.Header, "kernel_info_reply", info, identities); err != nil {
		w.logger.Printf("error sending kernel_info_reply: %v", err)
	}
}

func (w *shellWorker) handleIsComplete(identities [][]byte, msg *Message) {
	var req isCompleteRequestContent
	if err := decodeContent(msg.Content, &req); err != nil {
		w.logger.Printf("error decoding is_complete_request: %v", err)
		return
	}
	status := w.handler.IsComplete(req.Code)
	if err := sendOn(w.sock, w.session, msg.Header, "is_complete_reply", isCompleteReplyContent{
		Status: string(status),
	}, identities); err != nil {
		w.logger.Printf("error sending is_complete_reply: %v", err)
	}
}

func (w *shellWorker) handleComplete(identities [][]byte, msg *Message) {
	var req completeRequestContent
	if err := decodeContent(msg.Content, &req); err != nil {
		w.logger.Printf("error decoding complete_request: %v", err)
		return
	}
	matches, start, end := w.handler.Complete(req.Code, req.CursorPos)
	if err := sendOn(w.sock, w.session, msg.Header, "complete_reply", completeReplyContent{
		Matches:     matches,
		CursorStart: start,
		CursorEnd:   end,
		Metadata:    map[string]interface{}{},
		Status:      "ok",
	}, identities); err != nil {
		w.logger.Printf("error sending complete_reply: %v", err)
	}
}

func (w *shellWorker) handleCommInfo(identities [][]byte, msg *Message) {
	var req commInfoRequestContent
	_ = decodeContent(msg.Content, &req)
	comms := w.handler.CommInfo(req.TargetName)
	if err := sendOn(w.sock, w.session, msg.Header, "comm_info_reply", commInfoReplyContent{
		Comms:  comms,
		Status: "ok",
	}, identities); err != nil {
		w.logger.Printf("error sending comm_info_reply: %v", err)
	}
}

func (w *shellWorker) handleExecute(identities [][]byte, msg *Message) {
	var req executeRequestContent
	if err := decodeContent(msg.Content, &req); err != nil {
		w.logger.Printf("error decoding execute_request: %v", err)
		return
	}

	job := executeJob{
		Header:     msg.Header,
		Identities: identities,
		Req:        req,
		ReplyCh:    make(chan executeReply, 1),
	}
	w.coordinator.submit(job)
	reply := <-job.ReplyCh

	if err := sendOn(w.sock, w.session, msg.Header, reply.MsgType, reply.Content, identities); err != nil {
		w.logger.Printf("error sending execute_reply: %v", err)
	}
}

// handleShutdown is shared by the shell and control workers: both accept
// shutdown_request on the real protocol, though control is the documented
// path.
func handleShutdown(sock zmq4.Socket, session *Session, coordinator *executionCoordinator, logger *log.Logger, fatal chan<- error, identities [][]byte, msg *Message) {
	var req shutdownContent
	_ = decodeContent(msg.Content, &req)

	if coordinator != nil {
		coordinator.drain()
	}

	if err := sendOn(sock, session, msg.Header, "shutdown_reply", shutdownContent{Restart: req.Restart}, identities); err != nil {
		logger.Printf("error sending shutdown_reply: %v", err)
	}
	if !req.Restart {
		fatal <- nil
	}
}
