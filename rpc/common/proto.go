package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dLedger/lib/ledger"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Handle   uint64 `json:"handle,omitempty"`   // Used for: Create (response), Drop (request)
	Key      string `json:"key,omitempty"`      // Used for: Add, Decrement, Get, Amount
	Category uint32 `json:"category,omitempty"` // Used for: Add, GetByCategory, AmountByCategory
	Template uint64 `json:"template,omitempty"` // Used for: Add, GetByTemplate, AmountByTemplate
	Amount   uint64 `json:"amount,omitempty"`   // Used for: Add, Decrement (request), Amount* (response)
	Ops      []byte `json:"ops,omitempty"`      // Used for: VerifyOps, DoOps (operation tuples, see ledger.DecodeOps)

	// Response only fields
	Items   []ledger.Item   `json:"items,omitempty"`   // Used for: Get, GetBy*, ToList responses
	Effects []ledger.Effect `json:"effects,omitempty"` // Used for: DoOps responses
	Ok      bool            `json:"ok,omitempty"`      // Used for: VerifyOps, Drop responses
	Code    ledger.RetCode  `json:"code,omitempty"`    // Ledger return code, set together with Err
	Err     string          `json:"err,omitempty"`     // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info responses (json encoded ledger.Info)
}

// setErr stores err in the message. Ledger errors keep their code and message so the
// client can rebuild them.
func (m *Message) setErr(err error) *Message {
	if err == nil {
		return m
	}
	var lErr *ledger.Error
	if errors.As(err, &lErr) {
		m.Code = lErr.Code
		m.Err = lErr.Msg
		return m
	}
	m.Code = ledger.RetCInternalError
	m.Err = err.Error()
	return m
}

// ToError returns the error carried by the message (nil if there is none)
func (m *Message) ToError() error {
	if m.Err == "" && m.Code == ledger.RetCSuccess {
		return nil
	}
	if m.MsgType == MsgTError && m.Code == ledger.RetCSuccess {
		return errors.New(m.Err)
	}
	return ledger.NewError(m.Code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewCreateRequest creates a new Create request
func NewCreateRequest() *Message {
	return &Message{
		MsgType: MsgTCreate,
	}
}

// NewCreateResponse creates a new Create response
func NewCreateResponse(handle uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTCreate,
		Handle:  handle,
	}
	return msg.setErr(err)
}

// NewDropRequest creates a new Drop request
func NewDropRequest(handle uint64) *Message {
	return &Message{
		MsgType: MsgTDrop,
		Handle:  handle,
	}
}

// NewDropResponse creates a new Drop response
func NewDropResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTDrop,
		Ok:      ok,
	}
	return msg.setErr(err)
}

// NewAddRequest creates a new Add request
func NewAddRequest(key string, category uint32, template uint64, amount uint64) *Message {
	return &Message{
		MsgType:  MsgTAdd,
		Key:      key,
		Category: category,
		Template: template,
		Amount:   amount,
	}
}

// NewAddResponse creates a new Add response
func NewAddResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTAdd,
	}
	return msg.setErr(err)
}

// NewDecrementRequest creates a new Decrement request
func NewDecrementRequest(key string, amount uint64) *Message {
	return &Message{
		MsgType: MsgTDecrement,
		Key:     key,
		Amount:  amount,
	}
}

// NewDecrementResponse creates a new Decrement response
func NewDecrementResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTDecrement,
	}
	return msg.setErr(err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(item ledger.Item, err error) *Message {
	msg := &Message{
		MsgType: MsgTGet,
	}
	if err == nil {
		msg.Items = []ledger.Item{item}
	}
	return msg.setErr(err)
}

// NewGetByCategoryRequest creates a new GetByCategory request
func NewGetByCategoryRequest(category uint32) *Message {
	return &Message{
		MsgType:  MsgTGetByCategory,
		Category: category,
	}
}

// NewGetByTemplateRequest creates a new GetByTemplate request
func NewGetByTemplateRequest(template uint64) *Message {
	return &Message{
		MsgType:  MsgTGetByTemplate,
		Template: template,
	}
}

// NewToListRequest creates a new ToList request
func NewToListRequest() *Message {
	return &Message{
		MsgType: MsgTToList,
	}
}

// NewItemsResponse creates a response carrying a list of items.
// It is used for GetByCategory, GetByTemplate and ToList.
func NewItemsResponse(msgType MessageType, items []ledger.Item, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Items:   items,
	}
	return msg.setErr(err)
}

// NewAmountRequest creates a new Amount request
func NewAmountRequest(key string) *Message {
	return &Message{
		MsgType: MsgTAmount,
		Key:     key,
	}
}

// NewAmountByCategoryRequest creates a new AmountByCategory request
func NewAmountByCategoryRequest(category uint32) *Message {
	return &Message{
		MsgType:  MsgTAmountByCategory,
		Category: category,
	}
}

// NewAmountByTemplateRequest creates a new AmountByTemplate request
func NewAmountByTemplateRequest(template uint64) *Message {
	return &Message{
		MsgType:  MsgTAmountByTemplate,
		Template: template,
	}
}

// NewAmountResponse creates a response carrying a summed quantity.
// It is used for Amount, AmountByCategory and AmountByTemplate.
func NewAmountResponse(msgType MessageType, amount uint64, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Amount:  amount,
	}
	return msg.setErr(err)
}

// NewVerifyOpsRequest creates a new VerifyOps request from encoded operation tuples
func NewVerifyOpsRequest(ops []byte) *Message {
	return &Message{
		MsgType: MsgTVerifyOps,
		Ops:     ops,
	}
}

// NewVerifyOpsResponse creates a new VerifyOps response
func NewVerifyOpsResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTVerifyOps,
		Ok:      ok,
	}
	return msg.setErr(err)
}

// NewDoOpsRequest creates a new DoOps request from encoded operation tuples
func NewDoOpsRequest(ops []byte) *Message {
	return &Message{
		MsgType: MsgTDoOps,
		Ops:     ops,
	}
}

// NewDoOpsResponse creates a new DoOps response
func NewDoOpsResponse(effects []ledger.Effect, err error) *Message {
	msg := &Message{
		MsgType: MsgTDoOps,
		Effects: effects,
	}
	return msg.setErr(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response
func NewInfoResponse(info ledger.Info, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
	}
	if err != nil {
		return msg.setErr(err)
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return msg.setErr(fmt.Errorf("failed to encode info: %w", err))
	}
	msg.Meta = meta
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:          "success",
	MsgTError:            "error",
	MsgTCreate:           "create",
	MsgTDrop:             "drop",
	MsgTAdd:              "add",
	MsgTDecrement:        "decrement",
	MsgTGet:              "get",
	MsgTGetByCategory:    "getByCategory",
	MsgTGetByTemplate:    "getByTemplate",
	MsgTAmount:           "amount",
	MsgTAmountByCategory: "amountByCategory",
	MsgTAmountByTemplate: "amountByTemplate",
	MsgTToList:           "toList",
	MsgTVerifyOps:        "verifyOps",
	MsgTDoOps:            "doOps",
	MsgTInfo:             "info",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range msgTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Handle management (control handle only)

	MsgTCreate // Create a new ledger
	MsgTDrop   // Release a ledger

	// ILedger operations

	MsgTAdd              // Add to an item
	MsgTDecrement        // Decrement an item
	MsgTGet              // Get an item by key
	MsgTGetByCategory    // Get all items of a category
	MsgTGetByTemplate    // Get all items of a template
	MsgTAmount           // Quantity of an item
	MsgTAmountByCategory // Summed quantity of a category
	MsgTAmountByTemplate // Summed quantity of a template
	MsgTToList           // All items
	MsgTVerifyOps        // Check a batch without applying it
	MsgTDoOps            // Validate and apply a batch
	MsgTInfo             // Ledger metadata
)
