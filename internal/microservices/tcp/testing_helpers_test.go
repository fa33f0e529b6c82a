package tcp

import (
	"io"
	"log/slog"
	"sync"

	"github.com/ryoozeen/RCS/internal/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePeer records what the registry and router send to it.
type fakePeer struct {
	id      string
	mu      sync.Mutex
	sent    []protocol.Message
	closed  int
	sendErr error
	onClose func(id string)
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(msg protocol.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed++
	onClose := p.onClose
	p.mu.Unlock()
	if onClose != nil {
		onClose(p.id)
	}
	return nil
}

func (p *fakePeer) Sent() []protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Message, len(p.sent))
	copy(out, p.sent)
	return out
}

func (p *fakePeer) Last() protocol.Message {
	sent := p.Sent()
	if len(sent) == 0 {
		return nil
	}
	return sent[len(sent)-1]
}
