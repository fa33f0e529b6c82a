package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ryoozeen/RCS/internal/observability"
	"github.com/ryoozeen/RCS/internal/protocol"
)

// MessageHandler receives every decoded message, in arrival order, on the
// connection's read loop.
type MessageHandler func(id string, msg protocol.Message)

// DisconnectHandler fires exactly once when the connection closes.
type DisconnectHandler func(id string)

// ConnectionOptions tunes a ClientConnection. Zero values disable the feature.
type ConnectionOptions struct {
	RateLimit    float64       // inbound messages per second
	RateBurst    int           // burst allowance for RateLimit
	WriteTimeout time.Duration // deadline for a single frame write
	IdleTimeout  time.Duration // close after this long without a frame
	Logger       *slog.Logger
}

// close causes, also used as metric labels
const (
	causePeerClosed     = "peer_closed"
	causeLocalClose     = "local_close"
	causeShutdown       = "shutdown"
	causeIdleTimeout    = "idle_timeout"
	causeProtocolFault  = "protocol_fault"
	causeTransportFault = "transport_fault"
)

type ClientConnection struct {
	id      string
	conn    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	writeMu sync.Mutex // one frame at a time on the wire
	codec   *protocol.Codec
	limiter *rate.Limiter
	opts    ConnectionOptions
	logger  *slog.Logger

	onMessage    MessageHandler
	onDisconnect DisconnectHandler

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// NewClientConnection wraps an already connected socket. The callbacks are
// fixed for the connection's lifetime.
func NewClientConnection(conn net.Conn, onMessage MessageHandler, onDisconnect DisconnectHandler, opts ConnectionOptions) *ClientConnection {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &ClientConnection{
		id:           connectionID(conn),
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		codec:        protocol.NewCodec(),
		opts:         opts,
		logger:       logger,
		onMessage:    onMessage,
		onDisconnect: onDisconnect,
		done:         make(chan struct{}),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		// the limiter auto depletes tokens when Allow is called and refills over time
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	observability.ConnectionOpened()
	return c
}

// connectionID is the remote ip:port for TCP sockets, a random id otherwise.
func connectionID(conn net.Conn) string {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok && addr != nil {
		return addr.String()
	}
	return uuid.NewString()
}

func (c *ClientConnection) ID() string { return c.id }

func (c *ClientConnection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Codec exposes the connection's codec, e.g. to pin the legacy spelling.
func (c *ClientConnection) Codec() *protocol.Codec { return c.codec }

// Done is closed once the connection has closed.
func (c *ClientConnection) Done() <-chan struct{} { return c.done }

func (c *ClientConnection) IsOpen() bool { return !c.closed.Load() }

// Listen runs the read loop until the peer closes, a frame is rejected, or ctx
// is cancelled. It always leaves the connection closed.
func (c *ClientConnection) Listen(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			c.closeWith(causeShutdown)
		case <-c.done:
		}
	}()

	c.logger.Info("client_started_listening",
		"client_id", c.id,
		"remote_addr", c.conn.RemoteAddr().String(),
	)

	for {
		if c.opts.IdleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout))
		}

		msg, err := c.codec.Decode(c.reader)
		if err != nil {
			c.closeWith(c.classifyReadError(err))
			return
		}
		observability.RecordFrame(string(msg.Tag()))

		if c.limiter != nil && !c.limiter.Allow() { // returns true if a token is available then consumes it
			c.logger.Warn("rate_limit_exceeded",
				"client_id", c.id,
				"tag", msg.Tag(),
			)
			continue
		}

		if c.onMessage != nil {
			c.onMessage(c.id, msg)
		}
	}
}

// classifyReadError logs a terminal read error and returns the close cause.
func (c *ClientConnection) classifyReadError(err error) string {
	switch {
	case c.closed.Load() || errors.Is(err, net.ErrClosed):
		// closed from our side (Close or shutdown), nothing to report
		return causeLocalClose
	case errors.Is(err, io.EOF) || errors.Is(err, protocol.ErrShortHeader):
		c.logger.Info("client_disconnected", "client_id", c.id)
		return causePeerClosed
	case isTimeout(err):
		c.logger.Warn("client_read_timeout", "client_id", c.id)
		return causeIdleTimeout
	case errors.Is(err, protocol.ErrFrameSize),
		errors.Is(err, protocol.ErrTruncatedFrame),
		errors.Is(err, protocol.ErrUnknownTag),
		errors.Is(err, protocol.ErrMalformedMessage):
		c.logger.Warn("protocol_violation", "client_id", c.id, "error", err.Error())
		return causeProtocolFault
	case isConnectionReset(err):
		c.logger.Info("client_disconnected", "client_id", c.id, "error", err.Error())
		return causePeerClosed
	}
	c.logger.Error("client_read_error", "client_id", c.id, "error", err)
	return causeTransportFault
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isConnectionReset matches the errnos of a peer that reset or aborted the socket.
func isConnectionReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// Send encodes msg and writes it as one frame. Sending on a closed connection
// is a silent no-op. A failed write closes the connection.
func (c *ClientConnection) Send(msg protocol.Message) error {
	if c.closed.Load() {
		return nil
	}
	frame, err := c.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Tag(), err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return nil
	}
	if c.opts.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if _, err := c.writer.Write(frame); err != nil {
		c.closeWith(causeTransportFault)
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		c.closeWith(causeTransportFault)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

// Close closes the socket and fires the disconnect callback. Later calls are no-ops.
func (c *ClientConnection) Close() error {
	return c.closeWith(causeLocalClose)
}

func (c *ClientConnection) closeWith(cause string) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.conn.Close()
		observability.ConnectionClosed(cause)
		c.logger.Debug("client_closed", "client_id", c.id, "cause", cause)
		if c.onDisconnect != nil {
			c.onDisconnect(c.id)
		}
	})
	return err
}
