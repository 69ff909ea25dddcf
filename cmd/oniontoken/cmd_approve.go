package main

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/fancy"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
)

func newApproveCommand(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <keyFile> <spender> <amount>",
		Short: "Set the allowance of a spender over the key holder's tokens",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCmd(doAllowanceOp(rc, cmd.OutOrStdout(), ledgerdb.ApproveOp, args[0], args[1], args[2]))
		},
	}
}

func newAllowanceChangeCommand(rc *rootConfig, increase bool) *cobra.Command {
	use, short, newOp := "decrease-allowance", "Lower the allowance of a spender", ledgerdb.DecreaseAllowanceOp
	if increase {
		use, short, newOp = "increase-allowance", "Raise the allowance of a spender", ledgerdb.IncreaseAllowanceOp
	}
	return &cobra.Command{
		Use:   use + " <keyFile> <spender> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCmd(doAllowanceOp(rc, cmd.OutOrStdout(), newOp, args[0], args[1], args[2]))
		},
	}
}

func doAllowanceOp(rc *rootConfig, w io.Writer, newOp func(owner, spender common.Address, amount *big.Int) ledgerdb.Op, keyPath, spenderArg, amountArg string) error {
	spender, err := convertAddress(spenderArg, "spender")
	if err != nil {
		return err
	}
	amount, err := convertAmount(amountArg)
	if err != nil {
		return err
	}
	owner, err := loadKeyAddress(keyPath)
	if err != nil {
		return err
	}

	return rc.applyOp(w, newOp(owner, spender, amount), func(ledger *token.Ledger) {
		fancy.Ffield(w, fancy.Info, "Spender", spender)
		fancy.Ffield(w, fancy.Info, "Current allowance", oniontoken.PrettyONION(ledger.Allowance(owner, spender)))
	})
}
