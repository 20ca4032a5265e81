package transport

import (
	"github.com/ValentinKolb/dLedger/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a ledger handle and a request as parameters and returns a response
type ServerHandleFunc func(handle uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a RPCServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for passing the handle of the request to the handler
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests
	// It blocks until the transport fails or Shutdown is called (then it returns nil)
	Listen(config common.ServerConfig) error
	// Shutdown stops accepting new requests and closes the listener
	Shutdown() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request for a ledger handle to the server and returns the response
	Send(handle uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
