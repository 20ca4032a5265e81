package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// --------------------------------------------------------------------------
// Tuple codec
// --------------------------------------------------------------------------

/*
	Operations cross process boundaries as JSON arrays of 5-tuples:

		[[kind, key, category, template, amount], ...]

	kind is 1 (Increment) or 2 (Decrement), key is a string, category an unsigned
	32 bit integer and template and amount unsigned 64 bit integers. Any tuple
	that does not match this shape exactly rejects the whole batch.
*/

const opTupleArity = 5

// DecodeOps decodes a batch of operation tuples.
// Returns a RetCUnsupportedOperation error if the input or any single tuple is malformed.
func DecodeOps(data []byte) ([]Op, error) {
	var tuples []json.RawMessage
	if err := json.Unmarshal(data, &tuples); err != nil {
		return nil, NewError(RetCUnsupportedOperation, fmt.Sprintf("operations must be a list: %v", err))
	}
	if tuples == nil {
		return nil, NewError(RetCUnsupportedOperation, "operations must be a list, got null")
	}

	ops := make([]Op, 0, len(tuples))
	for i, raw := range tuples {
		op, err := decodeOp(raw)
		if err != nil {
			return nil, NewError(RetCUnsupportedOperation, fmt.Sprintf("operation %d: %v", i, err))
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// decodeOp decodes a single tuple
func decodeOp(raw json.RawMessage) (Op, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields []interface{}
	if err := dec.Decode(&fields); err != nil {
		return Op{}, fmt.Errorf("not a tuple: %v", err)
	}
	if len(fields) != opTupleArity {
		return Op{}, fmt.Errorf("expected %d fields, got %d", opTupleArity, len(fields))
	}

	kind, err := uintField(fields[0], 8, "kind")
	if err != nil {
		return Op{}, err
	}
	key, ok := fields[1].(string)
	if !ok {
		return Op{}, fmt.Errorf("key must be a string, got %T", fields[1])
	}
	category, err := uintField(fields[2], 32, "category")
	if err != nil {
		return Op{}, err
	}
	template, err := uintField(fields[3], 64, "template")
	if err != nil {
		return Op{}, err
	}
	amount, err := uintField(fields[4], 64, "amount")
	if err != nil {
		return Op{}, err
	}

	switch OpKind(kind) {
	case OpIncrement, OpDecrement:
	default:
		// 3 (Created) and 4 (Deleted) are effect tags and never valid input
		return Op{}, fmt.Errorf("invalid kind %d", kind)
	}

	return Op{
		Kind:     OpKind(kind),
		Key:      key,
		Category: uint32(category),
		Template: template,
		Amount:   amount,
	}, nil
}

// uintField converts a decoded JSON value into an unsigned integer of the given width
func uintField(v interface{}, bitSize int, name string) (uint64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%s must be an integer, got %T", name, v)
	}
	u, err := strconv.ParseUint(n.String(), 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%s must be an unsigned %d bit integer, got %s", name, bitSize, n)
	}
	return u, nil
}

// EncodeOps encodes a batch into its tuple form. It is the inverse of DecodeOps.
func EncodeOps(ops []Op) ([]byte, error) {
	tuples := make([][opTupleArity]interface{}, len(ops))
	for i, op := range ops {
		tuples[i] = [opTupleArity]interface{}{uint8(op.Kind), op.Key, op.Category, op.Template, op.Amount}
	}
	return json.Marshal(tuples)
}

// EncodeEffects encodes an effect log as [kind, [key, category, template, quantity]] tuples.
func EncodeEffects(effects []Effect) ([]byte, error) {
	tuples := make([][2]interface{}, len(effects))
	for i, e := range effects {
		tuples[i] = [2]interface{}{
			uint8(e.Kind),
			[4]interface{}{e.Item.Key, e.Item.Category, e.Item.Template, e.Item.Quantity},
		}
	}
	return json.Marshal(tuples)
}
