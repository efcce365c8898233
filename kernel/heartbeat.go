package kernel

import (
	"log"

	"github.com/go-zeromq/zmq4"
)

// heartbeatWorker is a degenerate REP-side loop: receive one frame, send the
// same frame back. It never touches the codec or the session, and a
// transport error just ends the loop — the socket close on shutdown is what
// terminates it, not a protocol failure.
func heartbeatWorker(sock zmq4.Socket, logger *log.Logger) {
	for {
		msg, err := sock.Recv()
		if err != nil {
			logger.Printf("heartbeat socket closed: %v", err)
			return
		}
		if err := sock.Send(msg); err != nil {
			logger.Printf("error echoing heartbeat: %v", err)
		}
	}
}
