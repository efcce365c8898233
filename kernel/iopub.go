package kernel

import (
	"log"

	"github.com/go-zeromq/zmq4"
)

// ioMessage is one already-typed I/O event enqueued by any worker for
// broadcast on the PUB socket.
type ioMessage struct {
	ParentHeader Header
	MsgType      string
	Content      interface{}
}

// ioPubWorker owns the PUB socket exclusively; it is the single consumer of
// a multiple-producer channel, which is what gives the busy/.../idle
// sequence its ordering guarantee (spec §4.3, §5).
type ioPubWorker struct {
	sock    zmq4.Socket
	session *Session
	inbox   chan ioMessage
	log     *log.Logger
}

func newIOPubWorker(sock zmq4.Socket, session *Session, logger *log.Logger) *ioPubWorker {
	return &ioPubWorker{
		sock:    sock,
		session: session,
		inbox:   make(chan ioMessage, 256),
		log:     logger,
	}
}

func (w *ioPubWorker) publish(parent Header, msgType string, content interface{}) {
	w.inbox <- ioMessage{ParentHeader: parent, MsgType: msgType, Content: content}
}

func (w *ioPubWorker) run() {
	for msg := range w.inbox {
		if err := sendOn(w.sock, w.session, msg.ParentHeader, msg.MsgType, msg.Content, nil); err != nil {
			w.log.Printf("error publishing %s: %v", msg.MsgType, err)
		}
	}
}

func (w *ioPubWorker) close() {
	close(w.inbox)
}
