package server

import (
	"errors"
	"net"
	"sync"

	"github.com/marmos91/stevedore/internal/logger"
)

// acceptPump owns the single listening socket. It accepts connections in
// one loop and hands them to whichever worker listener receives first,
// giving "one logical listener, N concurrent handlers" semantics.
type acceptPump struct {
	ln    net.Listener
	conns chan net.Conn

	stop     chan struct{}
	stopOnce sync.Once
	exited   chan struct{}

	mu  sync.Mutex
	err error
}

func newAcceptPump(ln net.Listener) *acceptPump {
	return &acceptPump{
		ln: ln,
		// Unbuffered on purpose: connections queue in the kernel backlog
		// until a worker is free to accept.
		conns:  make(chan net.Conn),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// run accepts until the listener closes or dispatch is stopped.
func (p *acceptPump) run() {
	defer close(p.exited)

	for {
		conn, err := p.ln.Accept()
		if err != nil {
			// Check if error is due to shutdown (expected) or a socket
			// failure (unexpected)
			select {
			case <-p.stop:
				return
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				p.mu.Lock()
				p.err = err
				p.mu.Unlock()
				return
			}

			// Transient accept error - log but continue
			logger.Debug("Error accepting connection", logger.Err(err))
			continue
		}

		// Disable Nagle's algorithm for request/response traffic
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		select {
		case p.conns <- conn:
		case <-p.stop:
			_ = conn.Close()
			return
		}
	}
}

// stopDispatch makes the pump drop instead of dispatch, unblocking a
// pending hand-off during shutdown.
func (p *acceptPump) stopDispatch() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

// dead reports whether the accept loop has exited.
func (p *acceptPump) dead() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// Err returns the accept error that stopped the pump, if any.
func (p *acceptPump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// workerListener is the per-worker view of the shared socket. Each worker's
// http.Server accepts through its own workerListener; closing it detaches
// the worker from the pump without touching the shared socket, which is
// what lets http.Server.Shutdown drain one worker while the others keep
// serving.
type workerListener struct {
	pump      *acceptPump
	addr      net.Addr
	closed    chan struct{}
	closeOnce sync.Once
}

func newWorkerListener(pump *acceptPump) *workerListener {
	return &workerListener{
		pump:   pump,
		addr:   pump.ln.Addr(),
		closed: make(chan struct{}),
	}
}

// Accept blocks until the pump hands over a connection, the listener is
// closed, or the pump dies.
func (l *workerListener) Accept() (net.Conn, error) {
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	case conn := <-l.pump.conns:
		return conn, nil
	case <-l.pump.exited:
		if err := l.pump.Err(); err != nil {
			return nil, err
		}
		return nil, net.ErrClosed
	}
}

// Close detaches this worker from the pump. The shared socket stays open.
func (l *workerListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
	return nil
}

// Addr returns the address of the shared socket.
func (l *workerListener) Addr() net.Addr {
	return l.addr
}
