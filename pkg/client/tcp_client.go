package client

// tcp_client.go = relay client used by the rcsctl console and agent simulator.

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ryoozeen/RCS/internal/protocol"
)

var (
	ErrNotConnected = errors.New("client: not connected")
	ErrClosed       = errors.New("client: connection closed")
)

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	Uptime           time.Duration
	MessagesSent     int
	MessagesReceived int
	ConnectedAt      time.Time
}

// TCPClient is one relay connection. Messages not claimed by a pending
// Request go to the message callback, in arrival order.
type TCPClient struct {
	conn      net.Conn
	reader    *bufio.Reader
	codec     *protocol.Codec
	connected bool
	stats     ConnectionStats
	mu        sync.RWMutex
	writeMu   sync.Mutex

	waitMu  sync.Mutex
	waiters map[protocol.Tag][]chan protocol.Message // one-shot, oldest first
	subs    map[protocol.Tag][]chan protocol.Message

	onMessage    func(protocol.Message)
	onDisconnect func(error)

	done      chan struct{}
	closeOnce sync.Once
}

func NewTCPClient() *TCPClient {
	return &TCPClient{
		codec:   protocol.NewCodec(),
		waiters: make(map[protocol.Tag][]chan protocol.Message),
		subs:    make(map[protocol.Tag][]chan protocol.Message),
		done:    make(chan struct{}),
	}
}

// OnMessage sets the callback for unsolicited messages. Set it before Connect.
func (c *TCPClient) OnMessage(fn func(protocol.Message)) { c.onMessage = fn }

// OnDisconnect sets the callback fired once when the connection ends; err is
// nil after Close.
func (c *TCPClient) OnDisconnect(fn func(error)) { c.onDisconnect = fn }

// Codec exposes the outbound dialect, e.g. to speak legacy tag names.
func (c *TCPClient) Codec() *protocol.Codec { return c.codec }

// Connect dials the relay and starts the read loop. A client is single use:
// after Close or a lost connection Connect returns ErrClosed.
func (c *TCPClient) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connected = true
	c.stats.ConnectedAt = time.Now()

	go c.readLoop()
	return nil
}

// Done is closed when the connection has ended.
func (c *TCPClient) Done() <-chan struct{} { return c.done }

// IsConnected returns connection status
func (c *TCPClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// GetStats returns connection statistics
func (c *TCPClient) GetStats() ConnectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	if c.connected {
		stats.Uptime = time.Since(c.stats.ConnectedAt)
	}
	return stats
}

// Send writes one frame.
func (c *TCPClient) Send(msg protocol.Message) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	frame, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	_, err = conn.Write(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.shutdown(err)
		return fmt.Errorf("failed to send %s: %w", msg.Tag(), err)
	}

	c.mu.Lock()
	c.stats.MessagesSent++
	c.mu.Unlock()
	return nil
}

// Request sends msg and waits for the first message tagged want.
func (c *TCPClient) Request(ctx context.Context, msg protocol.Message, want protocol.Tag) (protocol.Message, error) {
	ch := make(chan protocol.Message, 1)
	c.waitMu.Lock()
	c.waiters[want] = append(c.waiters[want], ch)
	c.waitMu.Unlock()

	if err := c.Send(msg); err != nil {
		c.dropWaiter(want, ch)
		return nil, err
	}

	select {
	case res := <-ch:
		return res, nil
	case <-c.done:
		c.dropWaiter(want, ch)
		return nil, ErrClosed
	case <-ctx.Done():
		c.dropWaiter(want, ch)
		return nil, ctx.Err()
	}
}

// Subscribe delivers every message tagged tag to the returned channel until
// cancel is called. Messages are dropped when the subscriber falls behind.
func (c *TCPClient) Subscribe(tag protocol.Tag) (<-chan protocol.Message, func()) {
	ch := make(chan protocol.Message, 16)
	c.waitMu.Lock()
	c.subs[tag] = append(c.subs[tag], ch)
	c.waitMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.waitMu.Lock()
			defer c.waitMu.Unlock()
			subs := c.subs[tag]
			for i, s := range subs {
				if s == ch {
					c.subs[tag] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		})
	}
	return ch, cancel
}

// Close ends the connection. Later calls are no-ops.
func (c *TCPClient) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *TCPClient) readLoop() {
	for {
		msg, err := c.codec.Decode(c.reader)
		if err != nil {
			c.shutdown(err)
			return
		}

		c.mu.Lock()
		c.stats.MessagesReceived++
		c.mu.Unlock()

		if c.deliver(msg) {
			continue
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

// deliver hands msg to the oldest pending Request waiting for its tag, or
// else to every subscriber of the tag.
func (c *TCPClient) deliver(msg protocol.Message) bool {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	tag := msg.Tag()
	if queue := c.waiters[tag]; len(queue) > 0 {
		queue[0] <- msg
		c.waiters[tag] = queue[1:]
		return true
	}
	subs := c.subs[tag]
	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return len(subs) > 0
}

func (c *TCPClient) dropWaiter(tag protocol.Tag, ch chan protocol.Message) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	queue := c.waiters[tag]
	for i, w := range queue {
		if w == ch {
			c.waiters[tag] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

func (c *TCPClient) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.connected = false
		c.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		close(c.done)

		// a read error after Close is the expected result of closing the socket
		if cause != nil && errors.Is(cause, net.ErrClosed) {
			cause = nil
		}
		if c.onDisconnect != nil {
			c.onDisconnect(cause)
		}
	})
}
