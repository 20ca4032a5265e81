package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dLedger/cmd/util"
	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/ValentinKolb/dLedger/rpc/server"
	"github.com/ValentinKolb/dLedger/rpc/transport"
	"github.com/ValentinKolb/dLedger/rpc/transport/http"
	"github.com/ValentinKolb/dLedger/rpc/transport/tcp"
	"github.com/ValentinKolb/dLedger/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dLedger server",
		Long:    `Start the dLedger server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DLEDGER_<flag> (e.g. DLEDGER_STRIPES=128)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "handles"
	ServeCmd.PersistentFlags().String(key, "1", cmdUtil.WrapString("Comma-separated list of ledger handles that are created on startup. Further ledgers can be created at runtime with 'dledger ledger create'. Handle 0 is reserved"))

	key = "stripes"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of lock stripes per ledger (0 = 4 * number of CPUs)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for reading and writing requests (http only)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/dledger.sock, ...)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "transport-workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum number of requests handled concurrently per connection (0 = transport default, ignored for http)"))

	key = "transport-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Size of the request buffers in KB (0 = transport default, ignored for http)"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket write buffer (in KB, ignored for http)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket read buffer (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time (in seconds, only for tcp)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse handles
	serveCmdConfig.Handles = []uint64{}
	for _, h := range cmdUtil.SplitList(viper.GetString("handles")) {
		handle, err := strconv.ParseUint(h, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid handle %s: %v", h, err)
		}
		if handle == server.ControlHandle {
			return fmt.Errorf("handle %d is reserved", server.ControlHandle)
		}
		serveCmdConfig.Handles = append(serveCmdConfig.Handles, handle)
	}

	if stripes := viper.GetInt("stripes"); stripes < 0 {
		return fmt.Errorf("stripes must not be negative, got %d", stripes)
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Stripes = viper.GetInt("stripes")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("transport-workers-per-conn"),
		BufferSize:     viper.GetInt("transport-buffer") * 1024,
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
	}

	return nil
}

// run starts the dLedger server and shuts it down on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport()
	case "unix":
		t = unix.NewUnixDefaultServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		server.Logger.Infof("received %s, shutting down", sig)
		if err := serv.Shutdown(); err != nil {
			server.Logger.Errorf("shutdown failed: %v", err)
		}
	}()

	return serv.Serve()
}
