package client

import (
	"errors"
	"io"
	nethttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	ledgertesting "github.com/ValentinKolb/dLedger/lib/ledger/testing"
	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/ValentinKolb/dLedger/rpc/serializer"
	"github.com/ValentinKolb/dLedger/rpc/server"
	"github.com/ValentinKolb/dLedger/rpc/transport"
	"github.com/ValentinKolb/dLedger/rpc/transport/http"
	"github.com/ValentinKolb/dLedger/rpc/transport/loopback"
	"github.com/ValentinKolb/dLedger/rpc/transport/tcp"
)

// startServer starts an RPC server with the given transport and waits until it accepts clients
func startServer(t *testing.T, endpoint string, st transport.IRPCServerTransport, ser serializer.IRPCSerializer) {
	t.Helper()
	s := server.NewRPCServer(
		common.ServerConfig{
			Stripes:   16,
			LogLevel:  "error",
			Transport: common.ServerTransportConfig{Endpoint: endpoint},
		},
		st,
		ser,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()
	t.Cleanup(func() {
		_ = s.Shutdown()
		if err := <-errCh; err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	})
}

// connectControl retries until the server accepts the connection
func connectControl(t *testing.T, config common.ClientConfig, ct transport.IRPCClientTransport, ser serializer.IRPCSerializer) *RPCControl {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		ctl, err := NewRPCControl(config, ct, ser)
		if err == nil {
			t.Cleanup(func() { _ = ctl.Close() })
			return ctl
		}
		if time.Now().After(deadline) {
			t.Fatalf("Failed to connect: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func loopbackControl(t *testing.T, ser serializer.IRPCSerializer) *RPCControl {
	endpoint := "client-test-" + t.Name()
	startServer(t, endpoint, loopback.NewLoopbackServerTransport(), ser)
	config := common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{endpoint}},
	}
	return connectControl(t, config, loopback.NewLoopbackClientTransport(), ser)
}

func TestRPCLedger(t *testing.T) {
	serializers := map[string]serializer.IRPCSerializer{
		"JSON":   serializer.NewJSONSerializer(),
		"GOB":    serializer.NewGOBSerializer(),
		"Binary": serializer.NewBinarySerializer(),
	}

	for name, ser := range serializers {
		t.Run(name, func(t *testing.T) {
			ctl := loopbackControl(t, ser)
			ledgertesting.RunLedgerTests(t, "RPCLedger", func() ledger.ILedger {
				handle, err := ctl.Create()
				if err != nil {
					panic(err)
				}
				return ctl.Ledger(handle)
			})
		})
	}
}

func TestRPCControl(t *testing.T) {
	ctl := loopbackControl(t, serializer.NewBinarySerializer())

	first, err := ctl.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := ctl.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if first == 0 || second == 0 || first == second {
		t.Fatalf("Expected distinct non-zero handles, got %d and %d", first, second)
	}

	if err := ctl.Ledger(first).Add("A", 1, 1, 5); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := ctl.Ledger(second).Get("A"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected ledgers to be independent, got %v", err)
	}

	ok, err := ctl.Drop(first)
	if err != nil || !ok {
		t.Fatalf("Expected drop to succeed, got ok=%v err=%v", ok, err)
	}
	if ok, err := ctl.Drop(first); err != nil || ok {
		t.Errorf("Expected second drop to report false, got ok=%v err=%v", ok, err)
	}

	// requests for a dropped ledger fail, but not with a ledger error
	_, err = ctl.Ledger(first).Amount("A")
	if err == nil {
		t.Fatalf("Expected error for dropped ledger")
	}
	if ledger.CodeOf(err) != ledger.RetCInternalError {
		t.Errorf("Expected non ledger error for dropped handle, got %v", err)
	}

	if _, err := ctl.Drop(0); err == nil {
		t.Errorf("Expected dropping the control handle to fail")
	}
}

func TestRPCLedgerTCP(t *testing.T) {
	const endpoint = "127.0.0.1:47113"
	ser := serializer.NewBinarySerializer()
	startServer(t, endpoint, tcp.NewTCPServerTransport(), ser)

	config := common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{endpoint},
			RetryCount:             1,
			ConnectionsPerEndpoint: 2,
		},
	}
	ctl := connectControl(t, config, tcp.NewTCPClientTransport(), ser)

	handle, err := ctl.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	l := ctl.Ledger(handle)

	if err := l.Add("sword", 1, 100, 3); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	effects, err := l.DoOps([]ledger.Op{
		ledger.Decrement("sword", 3),
		ledger.Increment("shield", 2, 200, 1),
	})
	if err != nil {
		t.Fatalf("DoOps failed: %v", err)
	}
	expected := []ledger.Effect{
		{Kind: ledger.EffectDeleted, Item: ledger.Item{Key: "sword", Category: 1, Template: 100}},
		{Kind: ledger.EffectCreated, Item: ledger.Item{Key: "shield", Category: 2, Template: 200, Quantity: 1}},
	}
	if len(effects) != len(expected) {
		t.Fatalf("Expected %d effects, got %v", len(expected), effects)
	}
	for i := range expected {
		if effects[i] != expected[i] {
			t.Errorf("Effect %d: expected %v, got %v", i, expected[i], effects[i])
		}
	}

	if _, err := l.DoOps([]ledger.Op{ledger.Decrement("shield", 2)}); !errors.Is(err, ledger.ErrIllegalOperations) {
		t.Errorf("Expected IllegalOperations, got %v", err)
	}
	if items, err := l.GetByCategory(1); err != nil || len(items) != 0 {
		t.Errorf("Expected deleted item to leave the category index, got %v (err %v)", items, err)
	}
}

func TestRPCLedgerHTTP(t *testing.T) {
	const endpoint = "127.0.0.1:47114"
	ser := serializer.NewJSONSerializer()
	startServer(t, endpoint, http.NewHttpServerTransport(), ser)

	// wait for the listener
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := nethttp.Get("http://" + endpoint + "/metrics")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	config := common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{endpoint}, RetryCount: 1},
	}
	ctl := connectControl(t, config, http.NewHttpClientTransport(), ser)

	handle, err := ctl.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	l := ctl.Ledger(handle)
	if err := l.Add("potion", 3, 30, 4); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if amount, err := l.AmountByTemplate(30); err != nil || amount != 4 {
		t.Errorf("Expected template amount 4, got %d (err %v)", amount, err)
	}
	if err := l.Decrement("potion", 5); !errors.Is(err, ledger.ErrIllegalOperations) {
		t.Errorf("Expected IllegalOperations, got %v", err)
	}

	resp, err := nethttp.Get("http://" + endpoint + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "dledger_requests_total") {
		t.Errorf("Expected request counters in metrics output")
	}
}
