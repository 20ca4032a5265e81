package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Add request
		{
			MsgType:  common.MsgTAdd,
			Key:      "gold",
			Category: 1,
			Template: 42,
			Amount:   100,
		},

		// Get response
		{
			MsgType: common.MsgTGet,
			Items:   []ledger.Item{{Key: "gold", Category: 1, Template: 42, Quantity: 100}},
		},

		// DoOps request
		{
			MsgType: common.MsgTDoOps,
			Ops:     []byte(`[[2,"gold",0,0,30],[1,"sword",2,7,1]]`),
		},

		// DoOps response
		{
			MsgType: common.MsgTDoOps,
			Effects: []ledger.Effect{
				{Kind: ledger.EffectDecremented, Item: ledger.Item{Key: "gold", Category: 1, Template: 42, Quantity: 70}},
				{Kind: ledger.EffectCreated, Item: ledger.Item{Key: "sword", Category: 2, Template: 7, Quantity: 1}},
				{Kind: ledger.EffectDeleted, Item: ledger.Item{Key: "", Category: 0, Template: 0, Quantity: 0}},
			},
		},

		// Error response
		{
			MsgType: common.MsgTDoOps,
			Code:    ledger.RetCIllegalOperations,
			Err:     "key 'gold' has 5, batch requires 10",
		},

		// Message with all fields filled
		{
			MsgType:  common.MsgTInfo,
			Handle:   7,
			Key:      "all",
			Category: ^uint32(0),
			Template: ^uint64(0),
			Amount:   ^uint64(0),
			Ops:      []byte("[]"),
			Items:    []ledger.Item{{Key: "a", Quantity: 1}, {Key: "b", Quantity: 2}},
			Effects:  []ledger.Effect{{Kind: ledger.EffectIncremented, Item: ledger.Item{Key: "a", Quantity: 1}}},
			Ok:       true,
			Code:     ledger.RetCLockFailure,
			Err:      "test error message",
			Meta:     []byte(`{"items":2}`),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTInfo; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty but not nil slices",
			msg: common.Message{
				MsgType: common.MsgTToList,
				Ops:     []byte{},
				Items:   []ledger.Item{},
				Effects: []ledger.Effect{},
				Meta:    []byte{},
			},
		},
		{
			name: "Item with empty key",
			msg: common.Message{
				MsgType: common.MsgTGet,
				Items:   []ledger.Item{{Key: "", Quantity: 3}},
			},
		},
		{
			name: "Ok without other fields",
			msg: common.Message{
				MsgType: common.MsgTVerifyOps,
				Ok:      true,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// the binary format keeps the difference between nil and empty slices
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestBinarySerializerResetsMessage tests that fields of a reused message are cleared
func TestBinarySerializerResetsMessage(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTAmount, Amount: 5})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	msg := common.Message{Key: "stale", Items: []ledger.Item{{Key: "stale"}}, Err: "stale"}
	if err := serializer.Deserialize(data, &msg); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}

	expected := common.Message{MsgType: common.MsgTAmount, Amount: 5}
	if !reflect.DeepEqual(expected, msg) {
		t.Errorf("Expected %+v, got %+v", expected, msg)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{1, 0, 2, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Missing amount",
			data:        []byte{1, 0, 16, 0, 0, 0}, // Claims amount but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Item count exceeds data",
			data:        []byte{1, 0, 64, 0xff, 0xff, 0xff, 0xff}, // Claims 4 billion items
			expectError: true,
		},
		{
			name:        "Truncated effect",
			data:        []byte{1, 0, 128, 0, 0, 0, 1, 3}, // One effect, only the kind byte present
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
