// Package client implements the RPC client of dLedger.
// It provides an implementation of the ledger.ILedger interface that forwards every call
// to a remote server, plus a control client that creates and drops ledgers.
//
// Key Components:
//
//   - NewRPCLedger: Creates a client implementing ledger.ILedger for an existing handle.
//     Operation batches are sent in their tuple form (see ledger.EncodeOps) and ledger
//     errors are rebuilt on the client side, so errors.Is(err, ledger.ErrNotFound) works
//     as it does for a local ledger.
//
//   - NewRPCControl: Creates a client for the control handle. Create allocates a new
//     ledger, Drop releases it and Ledger returns a ledger client that shares the
//     transport of the control client.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	ctl, _ := client.NewRPCControl(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	handle, _ := ctl.Create()
//	l := ctl.Ledger(handle)
//
//	l.Add("sword", 1, 100, 3)
//	effects, err := l.DoOps([]ledger.Op{ledger.Decrement("sword", 1)})
//
// Performance Considerations:
//
//   - For applications that send many concurrent batches, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - The binary serializer provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	All clients are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
