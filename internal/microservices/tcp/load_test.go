package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ryoozeen/RCS/internal/protocol"
)

const loadConnections = 30

func TestConcurrentConnections(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	addr := s.ListenAddr().String()

	var (
		identified int64
		conns      []net.Conn
		mu         sync.Mutex
		wg         sync.WaitGroup
	)
	for i := 0; i < loadConnections; i++ {
		wg.Add(1)
		go func(connID int) {
			defer wg.Done()

			conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
			if err != nil {
				t.Logf("connection %d: dial failed - %v", connID, err)
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()

			frame, _ := protocol.Encode(&protocol.IdentifyReq{ClientName: "Agent"})
			conn.SetDeadline(time.Now().Add(5 * time.Second))
			if _, err := conn.Write(frame); err != nil {
				t.Logf("connection %d: write failed - %v", connID, err)
				return
			}
			m, err := protocol.Decode(conn)
			if err != nil {
				t.Logf("connection %d: read failed - %v", connID, err)
				return
			}
			if res, ok := m.(*protocol.IdentifyRes); ok && res.Identified {
				atomic.AddInt64(&identified, 1)
			}
		}(i)
	}
	wg.Wait()
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	assert.Equal(t, int64(loadConnections), atomic.LoadInt64(&identified))
	assert.Equal(t, loadConnections, s.Registry.Count())
	for _, info := range s.Registry.Snapshot() {
		assert.Equal(t, RoleAgent, info.Role)
	}
}

// BenchmarkRelayRoundTrip measures one operator request relayed to an agent
// and its response relayed back.
func BenchmarkRelayRoundTrip(b *testing.B) {
	s := NewServer("127.0.0.1:0", NewMemoryCredentialStore(), ServerOptions{
		Router: RouterOptions{AllowOperatorIdentify: true},
		Logger: discardLogger(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)
	defer s.Stop()

	agent := dial(b, s)
	agent.identify("Agent")
	operator := dial(b, s)
	operator.identify("Operator")
	agent.conn.SetReadDeadline(time.Time{})
	operator.conn.SetReadDeadline(time.Time{})

	req, _ := protocol.Encode(&protocol.DoorReq{Door: true})
	res, _ := protocol.Encode(&protocol.DoorRes{DoorStatus: true})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := operator.conn.Write(req); err != nil {
			b.Fatal(err)
		}
		if _, err := protocol.ReadFrame(agent.conn); err != nil {
			b.Fatal(err)
		}
		if _, err := agent.conn.Write(res); err != nil {
			b.Fatal(err)
		}
		if _, err := protocol.ReadFrame(operator.conn); err != nil {
			b.Fatal(err)
		}
	}
}
