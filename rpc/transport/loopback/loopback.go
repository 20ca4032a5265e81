package loopback

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/ValentinKolb/dLedger/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// endpoints maps endpoint names to the handlers of listening servers
var endpoints = xsync.NewMapOf[string, transport.ServerHandleFunc]()

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// NewLoopbackServerTransport creates a server transport that serves clients of the same
// process. Listen registers the endpoint and returns immediately.
func NewLoopbackServerTransport() transport.IRPCServerTransport {
	return &serverTransport{}
}

type serverTransport struct {
	handler  transport.ServerHandleFunc
	endpoint string
	mu       sync.Mutex
}

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, loaded := endpoints.LoadOrStore(config.Transport.Endpoint, t.handler); loaded {
		return fmt.Errorf("endpoint %q already in use", config.Transport.Endpoint)
	}
	t.endpoint = config.Transport.Endpoint
	return nil
}

func (t *serverTransport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.endpoint != "" {
		endpoints.Delete(t.endpoint)
		t.endpoint = ""
	}
	return nil
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// NewLoopbackClientTransport creates a client transport for in-process servers.
// Requests and responses are copied so neither side can alias the other's buffers.
func NewLoopbackClientTransport() transport.IRPCClientTransport {
	return &clientTransport{}
}

type clientTransport struct {
	endpoints []string
	next      uint64
	mu        sync.Mutex
}

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}
	for _, endpoint := range config.Transport.Endpoints {
		if _, ok := endpoints.Load(endpoint); !ok {
			return fmt.Errorf("no server listening on %q", endpoint)
		}
	}

	t.mu.Lock()
	t.endpoints = config.Transport.Endpoints
	t.mu.Unlock()
	return nil
}

func (t *clientTransport) Send(handle uint64, req []byte) ([]byte, error) {
	t.mu.Lock()
	if len(t.endpoints) == 0 {
		t.mu.Unlock()
		return nil, fmt.Errorf("loopback transport not connected")
	}
	endpoint := t.endpoints[t.next%uint64(len(t.endpoints))]
	t.next++
	t.mu.Unlock()

	handler, ok := endpoints.Load(endpoint)
	if !ok {
		return nil, fmt.Errorf("no server listening on %q", endpoint)
	}

	resp := handler(handle, append([]byte(nil), req...))
	return append([]byte(nil), resp...), nil
}

func (t *clientTransport) Close() error {
	t.mu.Lock()
	t.endpoints = nil
	t.mu.Unlock()
	return nil
}
