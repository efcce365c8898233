package kernel

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-zeromq/zmq4"
)

// Kernel is the host: it parses the connection descriptor, opens the five
// sockets, spawns one worker per long-lived endpoint plus the execution
// coordinator, and owns their lifetimes (spec §2, §9 "kernel host").
type Kernel struct {
	config  *ConnectionInfo
	session *Session

	hb      zmq4.Socket
	shell   zmq4.Socket
	control zmq4.Socket
	iopub   zmq4.Socket
	stdin   zmq4.Socket
	sockets []zmq4.Socket

	iopubWorker *ioPubWorker
	coordinator *executionCoordinator
	stdinBridge *stdinBridge

	logger   *log.Logger
	logFile  *os.File
	fatal    chan error
	shutdown chan struct{}
}

// NewKernel reads and validates the connection file and builds the language
// handler, but does not open any socket yet — that happens in Start.
func NewKernel(configPath string) (*Kernel, error) {
	config, err := ParseConnectionInfo(configPath)
	if err != nil {
		return nil, err
	}

	logger, logFile := newKernelLogger()

	var key []byte
	if config.Key != "" {
		key = []byte(config.Key)
	}
	session := NewSession("kernel", key)

	return &Kernel{
		config:   config,
		session:  session,
		logger:   logger,
		logFile:  logFile,
		fatal:    make(chan error, 1),
		shutdown: make(chan struct{}),
	}, nil
}

func newKernelLogger() (*log.Logger, *os.File) {
	path := os.Getenv("KARL_KERNEL_LOG")
	if path == "" {
		path = "/tmp/karl_kernel.log"
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return log.New(os.Stderr, "[kernel] ", log.LstdFlags), nil
	}
	return log.New(f, "[kernel] ", log.LstdFlags), f
}

// Start binds the five sockets, spawns every worker, and blocks until the
// kernel is told to shut down.
func (k *Kernel) Start() error {
	k.logger.Printf("kernel starting, config=%+v", sanitizedConfig(k.config))

	ctx := context.Background()
	createSocket := func(sockType zmq4.SocketType, port int) (zmq4.Socket, error) {
		var sock zmq4.Socket
		switch sockType {
		case zmq4.Rep:
			sock = zmq4.NewRep(ctx)
		case zmq4.Router:
			sock = zmq4.NewRouter(ctx)
		case zmq4.Pub:
			sock = zmq4.NewPub(ctx)
		default:
			return nil, fmt.Errorf("unsupported socket type: %v", sockType)
		}
		addr := k.config.Endpoint(port)
		if err := sock.Listen(addr); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
		}
		return sock, nil
	}

	var err error
	if k.hb, err = createSocket(zmq4.Rep, k.config.HBPort); err != nil {
		return err
	}
	if k.shell, err = createSocket(zmq4.Router, k.config.ShellPort); err != nil {
		return err
	}
	if k.iopub, err = createSocket(zmq4.Pub, k.config.IOPubPort); err != nil {
		return err
	}
	if k.control, err = createSocket(zmq4.Router, k.config.ControlPort); err != nil {
		return err
	}
	if k.stdin, err = createSocket(zmq4.Router, k.config.StdinPort); err != nil {
		return err
	}
	k.sockets = []zmq4.Socket{k.hb, k.shell, k.iopub, k.control, k.stdin}

	k.iopubWorker = newIOPubWorker(k.iopub, k.session, withPrefix(k.logger, "iopub"))
	k.stdinBridge = newStdinBridge(k.stdin, k.session, withPrefix(k.logger, "stdin"))

	handler := NewKarlHandler()
	k.coordinator = newExecutionCoordinator(handler, k.iopubWorker, k.stdinBridge, withPrefix(k.logger, "exec"))

	shell := &shellWorker{
		sock:        k.shell,
		session:     k.session,
		iopub:       k.iopubWorker,
		handler:     handler,
		coordinator: k.coordinator,
		logger:      withPrefix(k.logger, "shell"),
		fatal:       k.fatal,
	}
	control := &controlWorker{
		sock:        k.control,
		session:     k.session,
		iopub:       k.iopubWorker,
		handler:     handler,
		coordinator: k.coordinator,
		logger:      withPrefix(k.logger, "control"),
		fatal:       k.fatal,
	}

	go k.iopubWorker.run()
	go k.stdinBridge.run()
	go k.coordinator.run()
	go heartbeatWorker(k.hb, withPrefix(k.logger, "hb"))
	go shell.run()
	go control.run()

	k.logger.Printf("kernel listening: hb=%d shell=%d iopub=%d control=%d stdin=%d",
		k.config.HBPort, k.config.ShellPort, k.config.IOPubPort, k.config.ControlPort, k.config.StdinPort)

	select {
	case err := <-k.fatal:
		k.Stop()
		return err
	case <-k.shutdown:
		return nil
	}
}

// Stop closes every socket and the iopub worker's inbox, unblocking Start.
// Safe to call more than once; only the first call has an effect.
func (k *Kernel) Stop() {
	select {
	case <-k.shutdown:
		return
	default:
		close(k.shutdown)
	}
	for _, sock := range k.sockets {
		sock.Close()
	}
	if k.iopubWorker != nil {
		k.iopubWorker.close()
	}
	if k.logFile != nil {
		k.logFile.Close()
	}
}

func withPrefix(base *log.Logger, name string) *log.Logger {
	return log.New(base.Writer(), fmt.Sprintf("[%s] ", name), base.Flags())
}

func sanitizedConfig(c *ConnectionInfo) ConnectionInfo {
	// The signing key is never logged (spec §3 invariants).
	cp := *c
	if cp.Key != "" {
		cp.Key = "<redacted>"
	}
	return cp
}
