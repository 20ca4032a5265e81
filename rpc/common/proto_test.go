package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dLedger/lib/ledger"
)

func TestMessageErrors(t *testing.T) {
	// ledger errors keep their code
	resp := NewDoOpsResponse(nil, ledger.NewError(ledger.RetCIllegalOperations, "not enough gold"))
	if resp.Code != ledger.RetCIllegalOperations || resp.Err != "not enough gold" {
		t.Fatalf("Unexpected response %+v", resp)
	}
	err := resp.ToError()
	if !errors.Is(err, ledger.ErrIllegalOperations) {
		t.Errorf("Expected IllegalOperations, got %v", err)
	}

	// wrapped ledger errors are unwrapped
	resp = NewAddResponse(fmt.Errorf("context: %w", ledger.ErrLockFailure))
	if !errors.Is(resp.ToError(), ledger.ErrLockFailure) {
		t.Errorf("Expected LockFailure, got %v", resp.ToError())
	}

	// foreign errors become internal errors
	resp = NewAddResponse(errors.New("boom"))
	if ledger.CodeOf(resp.ToError()) != ledger.RetCInternalError {
		t.Errorf("Expected InternalError, got %v", resp.ToError())
	}

	// plain error responses have no ledger code
	resp = NewErrorResponse("handle not found")
	if err := resp.ToError(); err == nil || err.Error() != "handle not found" {
		t.Errorf("Expected plain error, got %v", err)
	}

	if err := NewAddResponse(nil).ToError(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestGetResponse(t *testing.T) {
	item := ledger.Item{Key: "gold", Category: 1, Template: 2, Quantity: 3}

	resp := NewGetResponse(item, nil)
	if len(resp.Items) != 1 || resp.Items[0] != item {
		t.Errorf("Expected item in response, got %+v", resp.Items)
	}

	resp = NewGetResponse(ledger.Item{}, ledger.ErrNotFound)
	if resp.Items != nil {
		t.Errorf("Expected no items for failed Get, got %+v", resp.Items)
	}
	if !errors.Is(resp.ToError(), ledger.ErrNotFound) {
		t.Errorf("Expected NotFound, got %v", resp.ToError())
	}
}

func TestInfoResponse(t *testing.T) {
	resp := NewInfoResponse(ledger.Info{Items: 3, Stripes: 8}, nil)

	var info ledger.Info
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		t.Fatalf("Failed to decode info: %v", err)
	}
	if info.Items != 3 || info.Stripes != 8 {
		t.Errorf("Unexpected info %+v", info)
	}
}

func TestMessageTypeJSON(t *testing.T) {
	for msgType := MsgTSuccess; msgType <= MsgTInfo; msgType++ {
		data, err := json.Marshal(msgType)
		if err != nil {
			t.Fatalf("Failed to marshal %s: %v", msgType, err)
		}

		var decoded MessageType
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Failed to unmarshal %s: %v", data, err)
		}
		if decoded != msgType {
			t.Errorf("Expected %s, got %s", msgType, decoded)
		}
	}

	var decoded MessageType
	if err := json.Unmarshal([]byte(`"setE"`), &decoded); err == nil {
		t.Errorf("Expected error for unknown message type")
	}
}
