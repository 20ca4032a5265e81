package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/lib/ledger/bag"
	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/ValentinKolb/dLedger/rpc/serializer"
	"github.com/ValentinKolb/dLedger/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// ControlHandle is the handle used for create and drop requests.
// It never addresses a ledger.
const ControlHandle uint64 = 0

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewLedgerServerAdapter(),
		ledgers:    xsync.NewMapOf[uint64, ledger.ILedger](),
	}
}

// RPCServer routes requests to the ledgers it hosts. Every ledger is addressed by its handle,
// handle 0 is reserved for creating and dropping ledgers.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	ledgers    *xsync.MapOf[uint64, ledger.ILedger]
	lastHandle atomic.Uint64
}

func (s *RPCServer) newLedger() ledger.ILedger {
	opts := bag.DefaultOptions()
	if s.config.Stripes > 0 {
		opts.NumStripes = s.config.Stripes
	}
	return bag.NewBag(opts)
}

// createLedger registers a new ledger under the next free handle
func (s *RPCServer) createLedger() (uint64, error) {
	l := s.newLedger()
	for {
		handle := s.lastHandle.Add(1)
		if handle == ControlHandle {
			return 0, fmt.Errorf("no free ledger handle left")
		}
		if _, loaded := s.ledgers.LoadOrStore(handle, l); !loaded {
			activeLedgers.Inc()
			Logger.Debugf("created ledger %d", handle)
			return handle, nil
		}
	}
}

// dropLedger releases the ledger registered under handle and reports whether it existed
func (s *RPCServer) dropLedger(handle uint64) (bool, error) {
	if handle == ControlHandle {
		return false, fmt.Errorf("handle %d is the control handle", ControlHandle)
	}
	if _, loaded := s.ledgers.LoadAndDelete(handle); !loaded {
		return false, nil
	}
	activeLedgers.Dec()
	Logger.Debugf("dropped ledger %d", handle)
	return true, nil
}

// handleControl processes requests sent to the control handle
func (s *RPCServer) handleControl(req *common.Message) *common.Message {
	switch req.MsgType {
	case common.MsgTCreate:
		handle, err := s.createLedger()
		return common.NewCreateResponse(handle, err)
	case common.MsgTDrop:
		ok, err := s.dropLedger(req.Handle)
		return common.NewDropResponse(ok, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("message type %s can not be sent to the control handle", req.MsgType),
		)
	}
}

// handle decodes a request, dispatches it and encodes the response
func (s *RPCServer) handle(handle uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message
	start := time.Now()

	if err := s.serializer.Deserialize(req, &msg); err != nil {
		rejectedRequests.Inc()
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else if handle == ControlHandle {
		respMsg = s.handleControl(&msg)
		observeRequest(msg.MsgType, respMsg, start)
	} else if l, ok := s.ledgers.Load(handle); !ok {
		rejectedRequests.Inc()
		respMsg = common.NewErrorResponse(fmt.Sprintf("ledger %d not found", handle))
	} else {
		respMsg = s.adapter.Handle(&msg, l)
		observeRequest(msg.MsgType, respMsg, start)
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

func (s *RPCServer) init() error {

	// Init logger
	common.InitLoggers(s.config)

	// Create the statically configured ledgers
	for _, handle := range s.config.Handles {
		if handle == ControlHandle {
			return fmt.Errorf("handle %d is reserved for the control handle", ControlHandle)
		}
		if _, loaded := s.ledgers.LoadOrStore(handle, s.newLedger()); loaded {
			return fmt.Errorf("handle %d configured twice", handle)
		}
		activeLedgers.Inc()
		Logger.Infof("created ledger for handle %d", handle)

		// allocated handles start above the largest static handle
		for {
			last := s.lastHandle.Load()
			if handle <= last || s.lastHandle.CompareAndSwap(last, handle) {
				break
			}
		}
	}

	Logger.Infof("dLedger setup completed successfully")

	s.transport.RegisterHandler(s.handle)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the static ledgers and start the transport layer.
// It blocks until the transport fails or Shutdown is called.
func (s *RPCServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Shutdown stops the transport layer and releases all ledgers
func (s *RPCServer) Shutdown() error {
	err := s.transport.Shutdown()
	s.ledgers.Range(func(handle uint64, _ ledger.ILedger) bool {
		if _, loaded := s.ledgers.LoadAndDelete(handle); loaded {
			activeLedgers.Dec()
		}
		return true
	})
	return err
}
