package server

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Server metrics (exposed by the http transport at GET /metrics)
// --------------------------------------------------------------------------

var (
	// number of operations per received batch (verifyOps and doOps)
	batchSize = metrics.GetOrCreateHistogram("dledger_batch_size")

	// number of ledgers currently registered on this process
	activeLedgers = metrics.GetOrCreateCounter("dledger_ledgers_active")

	// requests that could not be decoded or addressed an unknown handle
	rejectedRequests = metrics.GetOrCreateCounter("dledger_requests_rejected_total")
)

// observeRequest records the count and the latency of one handled request.
// Failed requests are additionally counted per ledger return code.
func observeRequest(msgType common.MessageType, resp *common.Message, start time.Time) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dledger_requests_total{type=%q}`, msgType)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dledger_request_duration_seconds{type=%q}`, msgType)).UpdateDuration(start)

	if resp.Code != ledger.RetCSuccess {
		metrics.GetOrCreateCounter(fmt.Sprintf(`dledger_request_errors_total{type=%q,code=%q}`, msgType, resp.Code)).Inc()
	}
}
