package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dLedger/cmd/ledger"
	"github.com/ValentinKolb/dLedger/cmd/serve"
	"github.com/ValentinKolb/dLedger/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dledger",
		Short: "concurrent in-memory inventory ledger",
		Long: fmt.Sprintf(`dLedger (v%s)

An in-memory inventory ledger written in Go. Items are counted per key,
grouped by category and template, and changed by atomic batches of
increment and decrement operations.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dLedger",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dLedger v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(ledger.LedgerCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
