package client

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/ValentinKolb/dLedger/rpc/serializer"
	"github.com/ValentinKolb/dLedger/rpc/transport"
)

// NewRPCLedger creates a new RPC ledger for an existing handle
// The function takes a handle, a config, a transport and a serializer as parameters
// It connects the transport and returns a ledger.ILedger
func NewRPCLedger(
	handle uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (ledger.ILedger, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	return &rpcLedger{
		rpcClientAdapter{
			handle:     handle,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcLedger struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the ledger package in interface.go)
// --------------------------------------------------------------------------

func (l *rpcLedger) Add(key string, category uint32, template uint64, amount uint64) error {
	_, err := l.invoke(common.NewAddRequest(key, category, template, amount))
	return err
}

func (l *rpcLedger) Decrement(key string, amount uint64) error {
	_, err := l.invoke(common.NewDecrementRequest(key, amount))
	return err
}

func (l *rpcLedger) Get(key string) (ledger.Item, error) {
	resp, err := l.invoke(common.NewGetRequest(key))
	if err != nil {
		return ledger.Item{}, err
	}
	if len(resp.Items) != 1 {
		return ledger.Item{}, fmt.Errorf("RPC client - expected one item, got %d", len(resp.Items))
	}
	return resp.Items[0], nil
}

func (l *rpcLedger) GetByCategory(category uint32) ([]ledger.Item, error) {
	return l.items(common.NewGetByCategoryRequest(category))
}

func (l *rpcLedger) GetByTemplate(template uint64) ([]ledger.Item, error) {
	return l.items(common.NewGetByTemplateRequest(template))
}

func (l *rpcLedger) ToList() ([]ledger.Item, error) {
	return l.items(common.NewToListRequest())
}

func (l *rpcLedger) Amount(key string) (uint64, error) {
	return l.amount(common.NewAmountRequest(key))
}

func (l *rpcLedger) AmountByCategory(category uint32) (uint64, error) {
	return l.amount(common.NewAmountByCategoryRequest(category))
}

func (l *rpcLedger) AmountByTemplate(template uint64) (uint64, error) {
	return l.amount(common.NewAmountByTemplateRequest(template))
}

func (l *rpcLedger) VerifyOps(ops []ledger.Op) (bool, error) {
	raw, err := ledger.EncodeOps(ops)
	if err != nil {
		return false, err
	}
	resp, err := l.invoke(common.NewVerifyOpsRequest(raw))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (l *rpcLedger) DoOps(ops []ledger.Op) ([]ledger.Effect, error) {
	raw, err := ledger.EncodeOps(ops)
	if err != nil {
		return nil, err
	}
	resp, err := l.invoke(common.NewDoOpsRequest(raw))
	if err != nil {
		return nil, err
	}
	if resp.Effects == nil {
		return []ledger.Effect{}, nil
	}
	return resp.Effects, nil
}

func (l *rpcLedger) GetInfo() (ledger.Info, error) {
	var info ledger.Info
	resp, err := l.invoke(common.NewInfoRequest())
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return info, fmt.Errorf("RPC client - failed to decode ledger info: %w", err)
	}
	return info, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (l *rpcLedger) items(req *common.Message) ([]ledger.Item, error) {
	resp, err := l.invoke(req)
	if err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return []ledger.Item{}, nil
	}
	return resp.Items, nil
}

func (l *rpcLedger) amount(req *common.Message) (uint64, error) {
	resp, err := l.invoke(req)
	if err != nil {
		return 0, err
	}
	return resp.Amount, nil
}
