package client

import (
	"fmt"

	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/ValentinKolb/dLedger/rpc/serializer"
	"github.com/ValentinKolb/dLedger/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPCLedger and RPCControl with composition pattern
type rpcClientAdapter struct {
	handle     uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends req to the handle of the adapter
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(a.handle, req, a.transport, a.serializer)
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a ledger handle, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// Ledger errors carried by the response are rebuilt as *ledger.Error, so errors.Is works on the client side
func invokeRPCRequest(handle uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("RPC client - failed to serialize request: %w", err)
	}

	// Send the request
	respBytes, err := transport.Send(handle, reqBytes)
	if err != nil {
		return nil, fmt.Errorf("RPC client - %s failed: %w", req.MsgType, err)
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("RPC client - failed to deserialize response: %w", err)
	}

	// Check if the response carries an error
	if err := resp.ToError(); err != nil {
		if resp.MsgType == common.MsgTError {
			return nil, fmt.Errorf("RPC client - Error: %w", err)
		}
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC client - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
