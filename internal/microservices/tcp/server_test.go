package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryoozeen/RCS/internal/protocol"
)

func startTestServer(t *testing.T, opts ServerOptions) *TCPServer {
	t.Helper()
	opts.Logger = discardLogger()
	s := NewServer("127.0.0.1:0", NewMemoryCredentialStore(), opts)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	select {
	case <-s.ready:
	case err := <-errCh:
		t.Fatalf("server failed to start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

type testClient struct {
	t    testing.TB
	conn net.Conn
}

func dial(t testing.TB, s *TCPServer) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", s.ListenAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(m protocol.Message) {
	c.t.Helper()
	frame, err := protocol.Encode(m)
	require.NoError(c.t, err)
	_, err = c.conn.Write(frame)
	require.NoError(c.t, err)
}

func (c *testClient) recv() protocol.Message {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	m, err := protocol.Decode(c.conn)
	require.NoError(c.t, err)
	return m
}

func (c *testClient) identify(name string) {
	c.t.Helper()
	c.send(&protocol.IdentifyReq{ClientName: name})
	res, ok := c.recv().(*protocol.IdentifyRes)
	require.True(c.t, ok)
	require.True(c.t, res.Identified)
}

func TestServerRelaysBetweenOperatorAndAgent(t *testing.T) {
	s := startTestServer(t, ServerOptions{Router: RouterOptions{AllowOperatorIdentify: true}})

	// identify before dialing the next client so registration order is fixed
	op := dial(t, s)
	op.identify("Operator")
	bot := dial(t, s)
	bot.identify("Agent")

	op.send(&protocol.DoorReq{Door: true})
	req, ok := bot.recv().(*protocol.DoorReq)
	require.True(t, ok)
	assert.True(t, req.Door)

	bot.send(&protocol.DoorRes{DoorStatus: true})
	res, ok := op.recv().(*protocol.DoorRes)
	require.True(t, ok)
	assert.True(t, res.DoorStatus)

	snapshot := s.Registry.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, RoleOperator, snapshot[0].Role)
	assert.Equal(t, RoleAgent, snapshot[1].Role)
}

func TestServerEnrollLoginThenControl(t *testing.T) {
	s := startTestServer(t, ServerOptions{})

	op := dial(t, s)
	bot := dial(t, s)
	bot.identify("DOBOT")

	op.send(&protocol.EnrollReq{ID: "amy", Password: "digest", Username: "Amy"})
	enroll, ok := op.recv().(*protocol.EnrollRes)
	require.True(t, ok)
	require.True(t, enroll.Registered)

	op.send(&protocol.LoginReq{ID: "amy", Password: "digest"})
	login, ok := op.recv().(*protocol.LoginRes)
	require.True(t, ok)
	require.True(t, login.Logined)

	bot.send(&protocol.StatusRes{Battery: 0.75, Charging: true})
	status, ok := op.recv().(*protocol.StatusRes)
	require.True(t, ok)
	assert.InDelta(t, 0.75, status.Battery, 1e-9)
}

func TestServerDropsClientOnBadFrame(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	c := dial(t, s)
	c.identify("Agent")

	_, err := c.conn.Write([]byte{0, 0, 0, 0})
	require.NoError(t, err)

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = protocol.Decode(c.conn)
	assert.Error(t, err, "server closes the socket")
	assert.Eventually(t, func() bool { return s.Registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerRemovesDisconnectedClients(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	c := dial(t, s)
	c.identify("Agent")
	require.Equal(t, 1, s.Registry.Count())

	c.conn.Close()
	assert.Eventually(t, func() bool { return s.Registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerStopClosesClientsAndReleasesPort(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	addr := s.ListenAddr().String()
	c := dial(t, s)
	c.identify("Agent")

	s.Stop()
	s.Stop()

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := protocol.Decode(c.conn)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Registry.Count())

	l, err := net.Listen("tcp", addr)
	require.NoError(t, err, "port is free again")
	l.Close()
}

func TestServerStopsOnContextCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, ServerOptions{Logger: discardLogger()})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()
	s.ListenAddr()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestServerStartFailsWhenPortTaken(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	s := NewServer(l.Addr().String(), nil, ServerOptions{Logger: discardLogger()})
	assert.Error(t, s.Start(context.Background()))
}

func TestServerStopBeforeStartReleasesPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := NewServer(addr, nil, ServerOptions{Logger: discardLogger()})
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after an early Stop")
	}
	assert.Nil(t, s.ListenAddr())

	l, err = net.Listen("tcp", addr)
	require.NoError(t, err, "port is free again")
	l.Close()
}

func TestServerSecondStartFails(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	s.ListenAddr()

	assert.ErrorIs(t, s.Start(context.Background()), ErrServerStarted)
}

func TestServerListenAddrAfterBindFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	s := NewServer(l.Addr().String(), nil, ServerOptions{Logger: discardLogger()})
	require.Error(t, s.Start(context.Background()))
	assert.Nil(t, s.ListenAddr())
	s.Stop()
}
