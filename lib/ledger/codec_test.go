package ledger

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeOps(t *testing.T) {
	ops, err := DecodeOps([]byte(`[[1,"gold",1,100,5],[2,"wood",0,0,18446744073709551615]]`))
	if err != nil {
		t.Fatalf("Failed to decode valid operations: %v", err)
	}

	expected := []Op{
		Increment("gold", 1, 100, 5),
		Decrement("wood", 18446744073709551615),
	}
	if !reflect.DeepEqual(ops, expected) {
		t.Errorf("Decoded operations don't match:\nExpected: %+v\nGot: %+v", expected, ops)
	}
}

func TestDecodeOpsEmpty(t *testing.T) {
	ops, err := DecodeOps([]byte(`[]`))
	if err != nil {
		t.Fatalf("Failed to decode empty batch: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("Expected no operations, got %d", len(ops))
	}
}

func TestDecodeOpsMalformed(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"not a list", `{"kind":1}`},
		{"null batch", `null`},
		{"null tuple", `[null]`},
		{"not json", `[[1,"gold"`},
		{"tuple is an object", `[{"kind":1}]`},
		{"too few fields", `[[1,"gold",1,100]]`},
		{"too many fields", `[[1,"gold",1,100,5,6]]`},
		{"kind is a string", `[["1","gold",1,100,5]]`},
		{"key is a number", `[[1,7,1,100,5]]`},
		{"category exceeds 32 bit", `[[1,"gold",4294967296,100,5]]`},
		{"negative amount", `[[2,"gold",1,100,-5]]`},
		{"fractional template", `[[1,"gold",1,1.5,5]]`},
		{"amount exceeds 64 bit", `[[1,"gold",1,100,18446744073709551616]]`},
		{"unknown kind", `[[9,"gold",1,100,5]]`},
		{"kind zero", `[[0,"gold",1,100,5]]`},
		{"created is output only", `[[3,"gold",1,100,5]]`},
		{"deleted is output only", `[[4,"gold",1,100,5]]`},
		{"one bad tuple poisons the batch", `[[1,"gold",1,100,5],[2,"wood",1,null,5]]`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ops, err := DecodeOps([]byte(tc.input))
			if err == nil {
				t.Fatalf("Expected error, got operations %+v", ops)
			}
			if !errors.Is(err, ErrUnsupportedOperation) {
				t.Errorf("Expected UnsupportedOperation, got %v", err)
			}
			if ops != nil {
				t.Errorf("Expected no partial result, got %+v", ops)
			}
		})
	}
}

func TestEncodeDecodeOps(t *testing.T) {
	ops := []Op{
		Increment("C", 9, 77, 5),
		Decrement("A", 4),
		Increment("", 4294967295, 18446744073709551615, 0),
	}

	data, err := EncodeOps(ops)
	if err != nil {
		t.Fatalf("Failed to encode operations: %v", err)
	}
	if string(data) != `[[1,"C",9,77,5],[2,"A",0,0,4],[1,"",4294967295,18446744073709551615,0]]` {
		t.Errorf("Unexpected tuple encoding: %s", data)
	}

	decoded, err := DecodeOps(data)
	if err != nil {
		t.Fatalf("Failed to decode encoded operations: %v", err)
	}
	if !reflect.DeepEqual(ops, decoded) {
		t.Errorf("Operations don't match after round trip:\nExpected: %+v\nGot: %+v", ops, decoded)
	}
}

func TestEncodeEffects(t *testing.T) {
	data, err := EncodeEffects([]Effect{
		{Kind: EffectCreated, Item: Item{Key: "C", Category: 9, Template: 77, Quantity: 5}},
		{Kind: EffectDeleted, Item: Item{Key: "B", Category: 1, Template: 2, Quantity: 0}},
	})
	if err != nil {
		t.Fatalf("Failed to encode effects: %v", err)
	}
	if string(data) != `[[3,["C",9,77,5]],[4,["B",1,2,0]]]` {
		t.Errorf("Unexpected effect encoding: %s", data)
	}
}

func TestValidateOps(t *testing.T) {
	if err := ValidateOps([]Op{Increment("a", 1, 1, 1), Decrement("a", 1)}); err != nil {
		t.Errorf("Expected valid operations, got %v", err)
	}

	err := ValidateOps([]Op{Increment("a", 1, 1, 1), {Kind: OpKind(EffectCreated), Key: "a", Amount: 1}})
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("Expected UnsupportedOperation for an effect kind as input, got %v", err)
	}
}

func TestErrorCodes(t *testing.T) {
	err := NewError(RetCNotFound, "key 'x' not found")

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected errors.Is to match on the return code")
	}
	if errors.Is(err, ErrLockFailure) {
		t.Errorf("Expected NotFound not to match LockFailure")
	}
	if CodeOf(err) != RetCNotFound {
		t.Errorf("Expected code NotFound, got %s", CodeOf(err))
	}
	if CodeOf(nil) != RetCSuccess {
		t.Errorf("Expected nil error to map to Success")
	}
	if CodeOf(errors.New("boom")) != RetCInternalError {
		t.Errorf("Expected foreign error to map to InternalError")
	}
}
