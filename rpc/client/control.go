package client

import (
	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/ValentinKolb/dLedger/rpc/serializer"
	"github.com/ValentinKolb/dLedger/rpc/transport"
)

// RPCControl creates and drops ledgers on a server. It talks to the control handle (0).
type RPCControl struct {
	rpcClientAdapter
}

// NewRPCControl connects the transport and returns a control client.
// Ledgers opened with Ledger share the connection of the control client.
func NewRPCControl(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCControl, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}
	return &RPCControl{
		rpcClientAdapter{
			handle:     0,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// Create allocates a new, empty ledger and returns its handle
func (c *RPCControl) Create() (uint64, error) {
	resp, err := c.invoke(common.NewCreateRequest())
	if err != nil {
		return 0, err
	}
	Logger.Debugf("created ledger %d", resp.Handle)
	return resp.Handle, nil
}

// Drop releases the ledger registered under handle.
// It reports false if no such ledger exists.
func (c *RPCControl) Drop(handle uint64) (bool, error) {
	resp, err := c.invoke(common.NewDropRequest(handle))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// Ledger returns a client for the ledger registered under handle
func (c *RPCControl) Ledger(handle uint64) ledger.ILedger {
	a := c.rpcClientAdapter
	a.handle = handle
	return &rpcLedger{a}
}

// Close closes the underlying transport
func (c *RPCControl) Close() error {
	return c.transport.Close()
}
