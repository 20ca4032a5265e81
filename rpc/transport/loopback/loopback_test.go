package loopback

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dLedger/rpc/common"
)

func TestLoopback(t *testing.T) {
	server := NewLoopbackServerTransport()
	server.RegisterHandler(func(handle uint64, req []byte) []byte {
		return append([]byte{byte(handle)}, req...)
	})

	serverConfig := common.ServerConfig{Transport: common.ServerTransportConfig{Endpoint: "loopback-test"}}
	if err := server.Listen(serverConfig); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	// a second server cannot take the same endpoint
	other := NewLoopbackServerTransport()
	other.RegisterHandler(func(uint64, []byte) []byte { return nil })
	if err := other.Listen(serverConfig); err == nil {
		t.Errorf("Expected second Listen on the same endpoint to fail")
	}

	client := NewLoopbackClientTransport()
	if err := client.Connect(common.ClientConfig{Transport: common.ClientTransportConfig{Endpoints: []string{"loopback-test"}}}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	resp, err := client.Send(7, []byte("ping"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !bytes.Equal(resp, []byte("\x07ping")) {
		t.Errorf("Unexpected response %q", resp)
	}

	if err := server.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if _, err := client.Send(7, []byte("ping")); err == nil {
		t.Errorf("Expected Send after Shutdown to fail")
	}

	if err := client.Connect(common.ClientConfig{Transport: common.ClientTransportConfig{Endpoints: []string{"missing"}}}); err == nil {
		t.Errorf("Expected Connect to unknown endpoint to fail")
	}
}
