package server

import (
	"fmt"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/rpc/common"
)

func NewLedgerServerAdapter() IRPCServerAdapter {
	return &ledgerServerAdapterImpl{}
}

type ledgerServerAdapterImpl struct{}

func (adapter *ledgerServerAdapterImpl) Handle(req *common.Message, l ledger.ILedger) *common.Message {
	if l == nil {
		return common.NewErrorResponse("handler: ledger is nil")
	}

	switch req.MsgType {
	case common.MsgTAdd:
		err := l.Add(req.Key, req.Category, req.Template, req.Amount)
		return common.NewAddResponse(err)
	case common.MsgTDecrement:
		err := l.Decrement(req.Key, req.Amount)
		return common.NewDecrementResponse(err)
	case common.MsgTGet:
		item, err := l.Get(req.Key)
		return common.NewGetResponse(item, err)
	case common.MsgTGetByCategory:
		items, err := l.GetByCategory(req.Category)
		return common.NewItemsResponse(req.MsgType, items, err)
	case common.MsgTGetByTemplate:
		items, err := l.GetByTemplate(req.Template)
		return common.NewItemsResponse(req.MsgType, items, err)
	case common.MsgTToList:
		items, err := l.ToList()
		return common.NewItemsResponse(req.MsgType, items, err)
	case common.MsgTAmount:
		amount, err := l.Amount(req.Key)
		return common.NewAmountResponse(req.MsgType, amount, err)
	case common.MsgTAmountByCategory:
		amount, err := l.AmountByCategory(req.Category)
		return common.NewAmountResponse(req.MsgType, amount, err)
	case common.MsgTAmountByTemplate:
		amount, err := l.AmountByTemplate(req.Template)
		return common.NewAmountResponse(req.MsgType, amount, err)
	case common.MsgTVerifyOps:
		ops, err := ledger.DecodeOps(req.Ops)
		if err != nil {
			// malformed batches are never feasible
			return common.NewVerifyOpsResponse(false, nil)
		}
		batchSize.Update(float64(len(ops)))
		ok, err := l.VerifyOps(ops)
		return common.NewVerifyOpsResponse(ok, err)
	case common.MsgTDoOps:
		ops, err := ledger.DecodeOps(req.Ops)
		if err != nil {
			return common.NewDoOpsResponse(nil, err)
		}
		batchSize.Update(float64(len(ops)))
		effects, err := l.DoOps(ops)
		return common.NewDoOpsResponse(effects, err)
	case common.MsgTInfo:
		info, err := l.GetInfo()
		return common.NewInfoResponse(info, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC LedgerAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
