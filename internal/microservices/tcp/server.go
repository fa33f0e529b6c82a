package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/ryoozeen/RCS/internal/protocol"
)

// ErrServerStarted is returned by a second Start on the same server.
var ErrServerStarted = errors.New("tcp server already started")

// ServerOptions carries everything the server hands down to its connections
// and router.
type ServerOptions struct {
	Connection ConnectionOptions
	Router     RouterOptions
	Logger     *slog.Logger
}

// TCPServer accepts operator and agent connections and relays between them.
type TCPServer struct {
	Addr     string
	Registry *Registry
	Router   *Router

	opts     ServerOptions
	logger   *slog.Logger
	listener net.Listener
	ready    chan struct{} // closed once the listener is bound
	accepted chan struct{} // closed when the accept loop returns
	cancel   context.CancelFunc
	mu       sync.Mutex
	started  bool
	stopped  bool // set by Stop, a later Start binds nothing
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewServer(addr string, store CredentialStore, opts ServerOptions) *TCPServer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Connection.Logger == nil {
		opts.Connection.Logger = logger
	}
	if opts.Router.Logger == nil {
		opts.Router.Logger = logger
	}
	registry := NewRegistry(logger)
	return &TCPServer{
		Addr:     addr,
		Registry: registry,
		Router:   NewRouter(registry, store, opts.Router),
		opts:     opts,
		logger:   logger,
		ready:    make(chan struct{}),
		accepted: make(chan struct{}),
	}
}

// Start binds the listener and runs the accept loop until ctx is cancelled or
// Stop is called. A bind failure is returned immediately. A server that was
// stopped before it started returns nil without accepting.
func (s *TCPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrServerStarted
	}
	s.started = true
	s.mu.Unlock()
	defer close(s.accepted)

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		close(s.ready)
		return fmt.Errorf("failed to start TCP server, error: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		listener.Close()
		close(s.ready)
		return nil
	}
	s.listener = listener
	s.cancel = cancel
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("tcp_server_started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept_failed", "error", err)
			continue
		}

		// add +1 to wait group for the new connection handler goroutine
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}(conn)
	}
}

// handle connections/lifecycle of single client connection
func (s *TCPServer) handleConnection(ctx context.Context, conn net.Conn) {
	client := NewClientConnection(conn,
		func(id string, msg protocol.Message) { s.Router.HandleMessage(ctx, id, msg) },
		s.Router.HandleDisconnect,
		s.opts.Connection,
	)
	s.Registry.Add(client) // register before the first frame is read
	client.Listen(ctx)     // returns once the connection is closed and removed
}

// ListenAddr blocks until Start has tried to bind and returns the bound
// address, or nil when nothing was bound.
func (s *TCPServer) ListenAddr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every connection, then waits for their
// goroutines. Safe to call more than once.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		listener, cancel := s.listener, s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if listener != nil {
			listener.Close()
			<-s.accepted // no wg.Add after this point
		}
		s.Registry.CloseAll()
		s.wg.Wait()
		s.logger.Info("tcp_server_stopped", "addr", s.Addr)
	})
}
