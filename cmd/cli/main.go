// Command enr is the operator-facing CLI: small, local demonstrations of
// the credit ledger and entropy pricing wired in core/.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"enr-network/core"
)

func main() {
	rootCmd := &cobra.Command{Use: "enr"}
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(transferCmd())
	rootCmd.AddCommand(priceCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// demoLedger stands up a single-process ledger seeded with a genesis balance
// for the node id the caller names, used by the balance/transfer demos below.
// A real deployment reads balances from a running enrnode's bridge instead;
// this CLI has no RPC surface to reach one.
func demoLedger(genesisNode core.NodeId, genesis uint64) *core.Ledger {
	pool := core.NewRevivalPool()
	ledger := core.NewLedger(pool)
	ledger.Credit(core.NodeAccount(genesisNode), core.NewCredits(genesis))
	return ledger
}

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance [node-hex]",
		Short: "show a demo node's genesis-seeded balance",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Println("usage: enr balance <node-hex>")
				return
			}
			node, err := core.NodeIdFromHex(args[0])
			if err != nil {
				fmt.Println("invalid node id:", err)
				return
			}
			ledger := demoLedger(node, 1000)
			fmt.Printf("%s: %s\n", node, ledger.Balance(core.NodeAccount(node)))
		},
	}
	return cmd
}

func transferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer [from-hex] [to-hex] [amount]",
		Short: "simulate a single transfer against a freshly seeded demo ledger",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 3 {
				fmt.Println("usage: enr transfer <from-hex> <to-hex> <amount>")
				return
			}
			from, err := core.NodeIdFromHex(args[0])
			if err != nil {
				fmt.Println("invalid from node id:", err)
				return
			}
			to, err := core.NodeIdFromHex(args[1])
			if err != nil {
				fmt.Println("invalid to node id:", err)
				return
			}
			var amount uint64
			if _, err := fmt.Sscanf(args[2], "%d", &amount); err != nil {
				fmt.Println("invalid amount:", err)
				return
			}

			ledger := demoLedger(from, 1000)
			transferId := core.NewTransferId(core.NodeAccount(from), core.NodeAccount(to), core.NewCredits(amount), 1)
			record, err := ledger.Transfer(transferId, core.NodeAccount(from), core.NodeAccount(to), core.NewCredits(amount), nil, nil)
			if err != nil {
				fmt.Println("transfer failed:", err)
				return
			}
			fmt.Printf("transferred %s (entropy tax %s); new balances: from=%s to=%s\n",
				record.Amount, record.EntropyCost,
				ledger.Balance(core.NodeAccount(from)), ledger.Balance(core.NodeAccount(to)))
		},
	}
	return cmd
}

func priceCmd() *cobra.Command {
	var network, compute, storage, temporal float64
	cmd := &cobra.Command{
		Use:   "price",
		Short: "quote the dynamic entropy-adjusted price for the given component scores",
		Run: func(cmd *cobra.Command, args []string) {
			calc := core.NewEntropyCalculator()
			account := core.EntropyAccount{Network: network, Compute: compute, Storage: storage, Temporal: temporal}.Clamped()
			multiplier := calc.PriceMultiplier(account)
			quote := core.DynamicQuote(core.DefaultDynamicPriceConfig().BasePrice, multiplier)
			fmt.Printf("entropy=%+v multiplier=%.3f quote=%s\n", account, multiplier, quote.TotalPrice)
		},
	}
	cmd.Flags().Float64Var(&network, "network", 0, "network entropy score [0,10]")
	cmd.Flags().Float64Var(&compute, "compute", 0, "compute entropy score [0,10]")
	cmd.Flags().Float64Var(&storage, "storage", 0, "storage entropy score [0,10]")
	cmd.Flags().Float64Var(&temporal, "temporal", 0, "temporal entropy score [0,10]")
	return cmd
}
