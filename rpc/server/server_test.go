package server

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/ValentinKolb/dLedger/rpc/serializer"
	"github.com/ValentinKolb/dLedger/rpc/transport/loopback"
)

// send encodes req, passes it to the server handler and decodes the response
func send(t *testing.T, s *RPCServer, handle uint64, req *common.Message) *common.Message {
	t.Helper()
	reqBytes, err := s.serializer.Serialize(*req)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	var resp common.Message
	if err := s.serializer.Deserialize(s.handle(handle, reqBytes), &resp); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	return &resp
}

func newTestServer(t *testing.T, handles ...uint64) *RPCServer {
	t.Helper()
	s := NewRPCServer(
		common.ServerConfig{
			Handles:   handles,
			Stripes:   8,
			LogLevel:  "error",
			Transport: common.ServerTransportConfig{Endpoint: t.Name()},
		},
		loopback.NewLoopbackServerTransport(),
		serializer.NewBinarySerializer(),
	)
	if err := s.Serve(); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestControlHandle(t *testing.T) {
	s := newTestServer(t, 10)

	// created handles never collide with static ones
	resp := send(t, s, ControlHandle, common.NewCreateRequest())
	if err := resp.ToError(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if resp.Handle <= 10 {
		t.Fatalf("Expected created handle above 10, got %d", resp.Handle)
	}
	handle := resp.Handle

	resp = send(t, s, handle, common.NewAddRequest("A", 1, 2, 5))
	if err := resp.ToError(); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	resp = send(t, s, handle, common.NewAmountRequest("A"))
	if resp.Amount != 5 {
		t.Errorf("Expected amount 5, got %d", resp.Amount)
	}

	// the static ledger is independent
	resp = send(t, s, 10, common.NewAmountRequest("A"))
	if err := resp.ToError(); err != nil || resp.Amount != 0 {
		t.Errorf("Expected empty static ledger, got %d (err %v)", resp.Amount, err)
	}

	resp = send(t, s, ControlHandle, common.NewDropRequest(handle))
	if err := resp.ToError(); err != nil || !resp.Ok {
		t.Fatalf("Expected drop to succeed, got ok=%v err=%v", resp.Ok, err)
	}
	resp = send(t, s, ControlHandle, common.NewDropRequest(handle))
	if err := resp.ToError(); err != nil || resp.Ok {
		t.Errorf("Expected second drop to report false, got ok=%v err=%v", resp.Ok, err)
	}

	resp = send(t, s, handle, common.NewAmountRequest("A"))
	if resp.MsgType != common.MsgTError {
		t.Errorf("Expected error response for dropped handle, got %s", resp.MsgType)
	}

	resp = send(t, s, ControlHandle, common.NewDropRequest(ControlHandle))
	if resp.ToError() == nil {
		t.Errorf("Expected dropping the control handle to fail")
	}

	resp = send(t, s, ControlHandle, common.NewAmountRequest("A"))
	if resp.MsgType != common.MsgTError {
		t.Errorf("Expected error response for ledger request on control handle, got %s", resp.MsgType)
	}
}

func TestAdapterErrors(t *testing.T) {
	s := newTestServer(t, 1)

	resp := send(t, s, 1, common.NewGetRequest("missing"))
	if err := resp.ToError(); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}

	resp = send(t, s, 1, common.NewDoOpsRequest([]byte(`[[1,"A",1]]`)))
	if err := resp.ToError(); !errors.Is(err, ledger.ErrUnsupportedOperation) {
		t.Errorf("Expected UnsupportedOperation, got %v", err)
	}

	resp = send(t, s, 1, common.NewVerifyOpsRequest([]byte(`not json`)))
	if err := resp.ToError(); err != nil || resp.Ok {
		t.Errorf("Expected malformed batch to verify as false without error, got ok=%v err=%v", resp.Ok, err)
	}

	resp = send(t, s, 1, common.NewDoOpsRequest([]byte(`[[2,"A",1,1,1]]`)))
	if err := resp.ToError(); !errors.Is(err, ledger.ErrIllegalOperations) {
		t.Errorf("Expected IllegalOperations, got %v", err)
	}

	// an increment in the same batch never covers a decrement
	resp = send(t, s, 1, common.NewDoOpsRequest([]byte(`[[1,"A",1,1,3],[2,"A",0,0,1]]`)))
	if err := resp.ToError(); !errors.Is(err, ledger.ErrIllegalOperations) {
		t.Errorf("Expected IllegalOperations for decrement covered only by the same batch, got %v", err)
	}
	resp = send(t, s, 1, common.NewAmountRequest("A"))
	if resp.Amount != 0 {
		t.Errorf("Expected rejected batch to leave A absent, got amount %d", resp.Amount)
	}

	resp = send(t, s, 1, common.NewDoOpsRequest([]byte(`[[1,"A",1,1,3],[2,"B",0,0,1]]`)))
	if err := resp.ToError(); !errors.Is(err, ledger.ErrIllegalOperations) {
		t.Errorf("Expected IllegalOperations for absent key B, got %v", err)
	}

	resp = send(t, s, 1, common.NewAddRequest("A", 1, 1, 3))
	if err := resp.ToError(); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	resp = send(t, s, 1, common.NewDoOpsRequest([]byte(`[[1,"A",1,1,3],[2,"A",0,0,1]]`)))
	if err := resp.ToError(); err != nil {
		t.Fatalf("DoOps failed: %v", err)
	}
	if len(resp.Effects) != 2 || resp.Effects[0].Kind != ledger.EffectIncremented || resp.Effects[0].Item.Quantity != 6 ||
		resp.Effects[1].Kind != ledger.EffectDecremented || resp.Effects[1].Item.Quantity != 5 {
		t.Errorf("Unexpected effects %+v", resp.Effects)
	}

	resp = send(t, s, 1, common.NewInfoRequest())
	if err := resp.ToError(); err != nil || len(resp.Meta) == 0 {
		t.Errorf("Expected info meta data, got err=%v", err)
	}

	if resp := s.handle(1, []byte{0xff, 0xff}); len(resp) == 0 {
		t.Errorf("Expected an error response for undecodable requests")
	}
}

func TestInvalidStaticHandles(t *testing.T) {
	for name, handles := range map[string][]uint64{
		"control":   {0},
		"duplicate": {3, 3},
	} {
		s := NewRPCServer(
			common.ServerConfig{Handles: handles, LogLevel: "error", Transport: common.ServerTransportConfig{Endpoint: t.Name() + name}},
			loopback.NewLoopbackServerTransport(),
			serializer.NewJSONSerializer(),
		)
		if err := s.Serve(); err == nil {
			t.Errorf("%s: expected Serve to fail for handles %v", name, handles)
		}
		_ = s.Shutdown()
	}
}
