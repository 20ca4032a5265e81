package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte) | flags (2 bytes) | present fields in flag order.
// Integers are big endian, strings and byte slices are prefixed with a uint32 length,
// item and effect lists with a uint32 count.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasHandle   uint16 = 1 << 0
	hasKey      uint16 = 1 << 1
	hasCategory uint16 = 1 << 2
	hasTemplate uint16 = 1 << 3
	hasAmount   uint16 = 1 << 4
	hasOps      uint16 = 1 << 5
	hasItems    uint16 = 1 << 6
	hasEffects  uint16 = 1 << 7
	hasOk       uint16 = 1 << 8
	hasCode     uint16 = 1 << 9
	hasErr      uint16 = 1 << 10
	hasMeta     uint16 = 1 << 11
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := &binaryWriter{buf: make([]byte, headerSize, b.sizeBytes(msg))}
	w.buf[0] = byte(msg.MsgType)

	var flags uint16

	if msg.Handle > 0 {
		flags |= hasHandle
		w.uint64(msg.Handle)
	}
	if msg.Key != "" {
		flags |= hasKey
		w.string(msg.Key)
	}
	if msg.Category > 0 {
		flags |= hasCategory
		w.uint32(msg.Category)
	}
	if msg.Template > 0 {
		flags |= hasTemplate
		w.uint64(msg.Template)
	}
	if msg.Amount > 0 {
		flags |= hasAmount
		w.uint64(msg.Amount)
	}
	if msg.Ops != nil {
		flags |= hasOps
		w.bytes(msg.Ops)
	}
	if msg.Items != nil {
		flags |= hasItems
		w.uint32(uint32(len(msg.Items)))
		for _, item := range msg.Items {
			w.item(item)
		}
	}
	if msg.Effects != nil {
		flags |= hasEffects
		w.uint32(uint32(len(msg.Effects)))
		for _, effect := range msg.Effects {
			w.buf = append(w.buf, byte(effect.Kind))
			w.item(effect.Item)
		}
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Code != ledger.RetCSuccess {
		flags |= hasCode
		w.uint64(uint64(msg.Code))
	}
	if msg.Err != "" {
		flags |= hasErr
		w.string(msg.Err)
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.bytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(w.buf[1:headerSize], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:headerSize])
	r := &binaryReader{data: data, pos: headerSize}

	if flags&hasHandle != 0 {
		msg.Handle = r.uint64("handle")
	}
	if flags&hasKey != 0 {
		msg.Key = r.string("key")
	}
	if flags&hasCategory != 0 {
		msg.Category = r.uint32("category")
	}
	if flags&hasTemplate != 0 {
		msg.Template = r.uint64("template")
	}
	if flags&hasAmount != 0 {
		msg.Amount = r.uint64("amount")
	}
	if flags&hasOps != 0 {
		msg.Ops = r.bytes("ops")
	}
	if flags&hasItems != 0 {
		n := r.count("items", 24)
		msg.Items = make([]ledger.Item, n)
		for i := range msg.Items {
			msg.Items[i] = r.item()
		}
	}
	if flags&hasEffects != 0 {
		n := r.count("effects", 25)
		msg.Effects = make([]ledger.Effect, n)
		for i := range msg.Effects {
			msg.Effects[i].Kind = ledger.EffectKind(r.byte("effect kind"))
			msg.Effects[i].Item = r.item()
		}
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasCode != 0 {
		msg.Code = ledger.RetCode(r.uint64("code"))
	}
	if flags&hasErr != 0 {
		msg.Err = r.string("error")
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes("meta")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Handle > 0 {
		size += 8
	}
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Category > 0 {
		size += 4
	}
	if msg.Template > 0 {
		size += 8
	}
	if msg.Amount > 0 {
		size += 8
	}
	if msg.Ops != nil {
		size += 4 + len(msg.Ops)
	}
	if msg.Items != nil {
		size += 4
		for _, item := range msg.Items {
			size += itemSize(item)
		}
	}
	if msg.Effects != nil {
		size += 4
		for _, effect := range msg.Effects {
			size += 1 + itemSize(effect.Item)
		}
	}
	if msg.Code != ledger.RetCSuccess {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// itemSize is the encoded size of an item: key length + key + category + template + quantity
func itemSize(item ledger.Item) int {
	return 4 + len(item.Key) + 4 + 8 + 8
}

// binaryWriter appends big endian encoded values to a buffer
type binaryWriter struct {
	buf []byte
}

func (w *binaryWriter) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *binaryWriter) uint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *binaryWriter) string(s string) {
	w.uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *binaryWriter) bytes(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *binaryWriter) item(item ledger.Item) {
	w.string(item.Key)
	w.uint32(item.Category)
	w.uint64(item.Template)
	w.uint64(item.Quantity)
}

// binaryReader reads big endian encoded values. After the first error all reads
// return zero values and the error is kept.
type binaryReader struct {
	data []byte
	pos  int
	err  error
}

// take returns the next n bytes or nil if there are not enough left
func (r *binaryReader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *binaryReader) byte(field string) byte {
	if b := r.take(1, field); b != nil {
		return b[0]
	}
	return 0
}

func (r *binaryReader) uint32(field string) uint32 {
	if b := r.take(4, field); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *binaryReader) uint64(field string) uint64 {
	if b := r.take(8, field); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *binaryReader) string(field string) string {
	n := r.uint32(field + " length")
	return string(r.take(int(n), field))
}

// bytes returns a copy of a length prefixed byte slice (empty, not nil, for length 0)
func (r *binaryReader) bytes(field string) []byte {
	n := r.uint32(field + " length")
	b := r.take(int(n), field)
	if r.err != nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// count reads a list length and checks it against the remaining data, so a corrupt
// count cannot trigger a huge allocation
func (r *binaryReader) count(field string, minElemSize int) int {
	n := int(r.uint32(field + " count"))
	if r.err == nil && n*minElemSize > len(r.data)-r.pos {
		r.err = fmt.Errorf("data too short for %s", field)
	}
	if r.err != nil {
		return 0
	}
	return n
}

func (r *binaryReader) item() ledger.Item {
	return ledger.Item{
		Key:      r.string("item key"),
		Category: r.uint32("item category"),
		Template: r.uint64("item template"),
		Quantity: r.uint64("item quantity"),
	}
}
