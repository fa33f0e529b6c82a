package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryoozeen/RCS/internal/protocol"
)

type pipeHarness struct {
	conn     *ClientConnection
	remote   net.Conn
	messages chan protocol.Message
	closes   *atomic.Int32
}

func newPipeHarness(t *testing.T, opts ConnectionOptions) *pipeHarness {
	t.Helper()
	local, remote := net.Pipe()
	h := &pipeHarness{
		remote:   remote,
		messages: make(chan protocol.Message, 16),
		closes:   &atomic.Int32{},
	}
	opts.Logger = discardLogger()
	h.conn = NewClientConnection(local,
		func(id string, msg protocol.Message) { h.messages <- msg },
		func(id string) { h.closes.Add(1) },
		opts,
	)
	t.Cleanup(func() {
		remote.Close()
		h.conn.Close()
	})
	return h
}

func (h *pipeHarness) write(t *testing.T, m protocol.Message) {
	t.Helper()
	frame, err := protocol.Encode(m)
	require.NoError(t, err)
	_, err = h.remote.Write(frame)
	require.NoError(t, err)
}

func waitClosed(t *testing.T, c *ClientConnection) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close")
	}
}

func TestConnectionDeliversMessagesInOrder(t *testing.T) {
	h := newPipeHarness(t, ConnectionOptions{})
	go h.conn.Listen(context.Background())

	h.write(t, &protocol.IdentifyReq{ClientName: "Agent"})
	h.write(t, &protocol.DoorRes{DoorStatus: true})

	first := <-h.messages
	second := <-h.messages
	assert.Equal(t, protocol.TagIdentifyReq, first.Tag())
	assert.Equal(t, protocol.TagDoorRes, second.Tag())
	assert.True(t, h.conn.IsOpen())
}

func TestConnectionIDFallsBackToUUIDForPipes(t *testing.T) {
	h := newPipeHarness(t, ConnectionOptions{})
	assert.Len(t, h.conn.ID(), 36)
}

func TestConnectionDisconnectFiresOnce(t *testing.T) {
	h := newPipeHarness(t, ConnectionOptions{})
	go h.conn.Listen(context.Background())

	h.remote.Close()
	waitClosed(t, h.conn)

	h.conn.Close()
	h.conn.Close()
	assert.Equal(t, int32(1), h.closes.Load())
	assert.False(t, h.conn.IsOpen())
}

func TestConnectionSendAfterCloseIsNoop(t *testing.T) {
	h := newPipeHarness(t, ConnectionOptions{})
	require.NoError(t, h.conn.Close())
	assert.NoError(t, h.conn.Send(&protocol.StatusReq{}))
	assert.Equal(t, int32(1), h.closes.Load())
}

func TestConnectionConcurrentSendsKeepFramesWhole(t *testing.T) {
	h := newPipeHarness(t, ConnectionOptions{})
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, h.conn.Send(&protocol.TempReq{Temp: i}))
		}(i)
	}

	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		m, err := protocol.Decode(h.remote)
		require.NoError(t, err)
		req, ok := m.(*protocol.TempReq)
		require.True(t, ok)
		seen[req.Temp] = true
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestConnectionClosesOnProtocolViolation(t *testing.T) {
	cases := map[string][]byte{
		"zero_length": binary.LittleEndian.AppendUint32(nil, 0),
		"oversized":   binary.LittleEndian.AppendUint32(nil, protocol.MaxFrameSize+1),
		"unknown_tag": mustFrame(t, []byte(`{"msg":"FLY_REQ"}`)),
		"not_json":    mustFrame(t, []byte(`hello`)),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			h := newPipeHarness(t, ConnectionOptions{})
			go h.conn.Listen(context.Background())

			go h.remote.Write(raw)
			waitClosed(t, h.conn)
			assert.Empty(t, h.messages)
			h.conn.Close()
			assert.Equal(t, int32(1), h.closes.Load())
		})
	}
}

func mustFrame(t *testing.T, body []byte) []byte {
	t.Helper()
	frame, err := protocol.AppendFrame(nil, body)
	require.NoError(t, err)
	return frame
}

func TestConnectionClosesOnContextCancel(t *testing.T) {
	h := newPipeHarness(t, ConnectionOptions{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.conn.Listen(ctx)
		close(done)
	}()

	cancel()
	waitClosed(t, h.conn)
	<-done
	h.conn.Close()
	assert.Equal(t, int32(1), h.closes.Load())
}

func TestConnectionIdleTimeout(t *testing.T) {
	h := newPipeHarness(t, ConnectionOptions{IdleTimeout: 50 * time.Millisecond})
	go h.conn.Listen(context.Background())
	waitClosed(t, h.conn)
}

func TestConnectionDropsMessagesOverRateLimit(t *testing.T) {
	h := newPipeHarness(t, ConnectionOptions{RateLimit: 0.001, RateBurst: 1})
	go h.conn.Listen(context.Background())

	h.write(t, &protocol.DoorReq{Door: true})
	h.write(t, &protocol.TrunkReq{Trunk: true})
	h.write(t, &protocol.AirReq{Air: true})

	first := <-h.messages
	assert.Equal(t, protocol.TagDoorReq, first.Tag())
	assert.Empty(t, h.messages)
	assert.True(t, h.conn.IsOpen(), "rate limiting drops messages, not connections")
}

func TestConnectionAnswersLegacyPeerInLegacySpelling(t *testing.T) {
	h := newPipeHarness(t, ConnectionOptions{})
	go h.conn.Listen(context.Background())

	go h.remote.Write(mustFrame(t, []byte(`{"msg":"CLIENT_IDENTIFY_REQ","client_name":"DOBOT"}`)))
	<-h.messages
	require.True(t, h.conn.Codec().Legacy())

	go h.conn.Send(&protocol.IdentifyRes{Identified: true})
	body, err := protocol.ReadFrame(h.remote)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"msg":"CLIENT_IDENTIFY_RES"`)
}

func TestConnectionResetClassifiedByErrno(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.EPIPE, syscall.ECONNABORTED} {
		err := &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", errno)}
		assert.True(t, isConnectionReset(err), errno.Error())
		assert.True(t, isConnectionReset(fmt.Errorf("wrapped: %w", err)), errno.Error())
	}
	// message text alone is not enough
	assert.False(t, isConnectionReset(errors.New("connection reset by peer")))

	h := newPipeHarness(t, ConnectionOptions{})
	reset := &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}
	assert.Equal(t, causePeerClosed, h.conn.classifyReadError(reset))
	assert.Equal(t, causeTransportFault, h.conn.classifyReadError(errors.New("connection reset by peer")))
}
