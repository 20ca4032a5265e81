package ledger

import (
	"github.com/ValentinKolb/dLedger/cmd/util"
	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcControl *client.RPCControl
	rpcLedger  ledger.ILedger

	// LedgerCommands represents the ledger command group
	LedgerCommands = &cobra.Command{
		Use:               "ledger",
		Short:             "Perform ledger operations",
		PersistentPreRunE: setupLedgerClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the ledger command
	util.SetupRPCClientFlags(LedgerCommands)

	LedgerCommands.PersistentFlags().Uint64("handle", 1, util.WrapString("Handle of the ledger to operate on"))

	// Add subcommands
	LedgerCommands.AddCommand(createCmd)
	LedgerCommands.AddCommand(dropCmd)
	LedgerCommands.AddCommand(addCmd)
	LedgerCommands.AddCommand(decCmd)
	LedgerCommands.AddCommand(getCmd)
	LedgerCommands.AddCommand(getByCategoryCmd)
	LedgerCommands.AddCommand(getByTemplateCmd)
	LedgerCommands.AddCommand(amountCmd)
	LedgerCommands.AddCommand(amountByCategoryCmd)
	LedgerCommands.AddCommand(amountByTemplateCmd)
	LedgerCommands.AddCommand(listCmd)
	LedgerCommands.AddCommand(verifyCmd)
	LedgerCommands.AddCommand(doCmd)
	LedgerCommands.AddCommand(infoCmd)
	LedgerCommands.AddCommand(perfTestCmd)
}

// setupLedgerClient initializes the RPC control client and the client for the selected handle
func setupLedgerClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcControl, err = client.NewRPCControl(*config, t, s)
	if err != nil {
		return err
	}
	rpcLedger = rpcControl.Ledger(util.GetHandle())

	return nil
}
