// Package server implements the RPC server of dLedger. A single server hosts any number of
// independent ledgers, each addressed by an opaque uint64 handle.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for server adapters, with the
//     Handle method that processes an incoming request against a ledger.ILedger.
//
//   - NewLedgerServerAdapter: Translates RPC requests to ledger.ILedger method calls.
//     Operation batches are decoded with ledger.DecodeOps on the server side, so a
//     malformed batch is rejected before any validation.
//
//   - RPCServer: Routes requests by handle. Requests sent to the control handle (0)
//     create and drop ledgers, requests for unknown handles get an error response.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Handles:       []uint64{1, 2},
//	  Stripes:       64,
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	  Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Metrics:
//
//	Request counters, request latencies, error counters (per return code) and the batch
//	size histogram are registered with github.com/VictoriaMetrics/metrics. The http
//	transport exposes them at GET /metrics.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve is not thread-safe and should be called only once.
package server
