package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/spf13/cobra"
)

var (
	createCmd = &cobra.Command{
		Use:   "create",
		Short: "Creates a new ledger and prints its handle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := rpcControl.Create()
			if err != nil {
				return err
			}
			fmt.Printf("handle=%d\n", handle)
			return nil
		},
	}
	dropCmd = &cobra.Command{
		Use:   "drop [handle]",
		Short: "Drops the ledger with the given handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("handle must be a number: %w", err)
			}
			ok, err := rpcControl.Drop(handle)
			if err != nil {
				return err
			}
			fmt.Printf("handle=%d, dropped=%t\n", handle, ok)
			return nil
		},
	}
	addCmd = &cobra.Command{
		Use:   "add [key] [category] [template] [amount]",
		Short: "Adds amount to the quantity of a key, creating the item if needed",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("category must be an unsigned 32 bit number: %w", err)
			}
			template, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("template must be a number: %w", err)
			}
			amount, err := strconv.ParseUint(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("amount must be a number: %w", err)
			}
			if err := rpcLedger.Add(args[0], uint32(category), template, amount); err != nil {
				return err
			}
			fmt.Println("add successfully")
			return nil
		},
	}
	decCmd = &cobra.Command{
		Use:   "dec [key] [amount]",
		Short: "Subtracts amount from the quantity of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("amount must be a number: %w", err)
			}
			if err := rpcLedger.Decrement(args[0], amount); err != nil {
				return err
			}
			fmt.Println("decrement successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the item stored for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := rpcLedger.Get(args[0])
			if err != nil {
				return err
			}
			return printJSON(item)
		},
	}
	getByCategoryCmd = &cobra.Command{
		Use:   "get-category [category]",
		Short: "Lists all items of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("category must be an unsigned 32 bit number: %w", err)
			}
			items, err := rpcLedger.GetByCategory(uint32(category))
			if err != nil {
				return err
			}
			return printJSON(items)
		},
	}
	getByTemplateCmd = &cobra.Command{
		Use:   "get-template [template]",
		Short: "Lists all items of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("template must be a number: %w", err)
			}
			items, err := rpcLedger.GetByTemplate(template)
			if err != nil {
				return err
			}
			return printJSON(items)
		},
	}
	amountCmd = &cobra.Command{
		Use:   "amount [key]",
		Short: "Prints the quantity of a key (0 if absent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := rpcLedger.Amount(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, amount=%d\n", args[0], amount)
			return nil
		},
	}
	amountByCategoryCmd = &cobra.Command{
		Use:   "amount-category [category]",
		Short: "Prints the summed quantity of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("category must be an unsigned 32 bit number: %w", err)
			}
			amount, err := rpcLedger.AmountByCategory(uint32(category))
			if err != nil {
				return err
			}
			fmt.Printf("category=%d, amount=%d\n", category, amount)
			return nil
		},
	}
	amountByTemplateCmd = &cobra.Command{
		Use:   "amount-template [template]",
		Short: "Prints the summed quantity of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("template must be a number: %w", err)
			}
			amount, err := rpcLedger.AmountByTemplate(template)
			if err != nil {
				return err
			}
			fmt.Printf("template=%d, amount=%d\n", template, amount)
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all items of the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := rpcLedger.ToList()
			if err != nil {
				return err
			}
			return printJSON(items)
		},
	}
	verifyCmd = &cobra.Command{
		Use:   "verify [ops]",
		Short: "Checks whether a batch would currently be accepted",
		Long:  `Checks whether a batch would currently be accepted. The batch is a JSON list of [kind, key, category, template, amount] tuples, kind 1 increments and kind 2 decrements (e.g. '[[2,"sword",0,0,1],[1,"shield",2,200,1]]')`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := ledger.DecodeOps([]byte(args[0]))
			if err != nil {
				return err
			}
			ok, err := rpcLedger.VerifyOps(ops)
			if err != nil {
				return err
			}
			fmt.Printf("ops=%d, feasible=%t\n", len(ops), ok)
			return nil
		},
	}
	doCmd = &cobra.Command{
		Use:   "do [ops]",
		Short: "Applies a batch atomically and prints its effects",
		Long:  `Applies a batch atomically and prints its effects as [kind, [key, category, template, quantity]] tuples (1 = incremented, 2 = decremented, 3 = created, 4 = deleted). The batch uses the same format as 'verify'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := ledger.DecodeOps([]byte(args[0]))
			if err != nil {
				return err
			}
			effects, err := rpcLedger.DoOps(ops)
			if err != nil {
				return err
			}
			out, err := ledger.EncodeEffects(effects)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints metadata about the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcLedger.GetInfo()
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
)

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
