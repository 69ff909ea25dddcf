package main

import (
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/fancy"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
)

func newTransferCommand(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <keyFile> <to> <amount>",
		Short: "Transfer tokens from the key holder to another account",
		Long:  "Transfer tokens from the key holder to another account. Amounts accept onion, gwei or wei suffixes; wei is assumed.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCmd(doTransfer(rc, cmd.OutOrStdout(), args[0], args[1], args[2]))
		},
	}
}

func doTransfer(rc *rootConfig, w io.Writer, keyPath, toArg, amountArg string) error {
	to, err := convertAddress(toArg, "recipient")
	if err != nil {
		return err
	}
	amount, err := convertAmount(amountArg)
	if err != nil {
		return err
	}
	from, err := loadKeyAddress(keyPath)
	if err != nil {
		return err
	}

	op := ledgerdb.TransferOp(from, to, amount)
	return rc.applyOp(w, op, func(ledger *token.Ledger) {
		printBalances(w, ledger, from, to)
	})
}

func newTransferFromCommand(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer-from <keyFile> <from> <to> <amount>",
		Short: "Spend an allowance granted to the key holder",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCmd(doTransferFrom(rc, cmd.OutOrStdout(), args[0], args[1], args[2], args[3]))
		},
	}
}

func doTransferFrom(rc *rootConfig, w io.Writer, keyPath, fromArg, toArg, amountArg string) error {
	from, err := convertAddress(fromArg, "owner")
	if err != nil {
		return err
	}
	to, err := convertAddress(toArg, "recipient")
	if err != nil {
		return err
	}
	amount, err := convertAmount(amountArg)
	if err != nil {
		return err
	}
	spender, err := loadKeyAddress(keyPath)
	if err != nil {
		return err
	}

	op := ledgerdb.TransferFromOp(spender, from, to, amount)
	return rc.applyOp(w, op, func(ledger *token.Ledger) {
		printBalances(w, ledger, from, to)
		fancy.Ffield(w, fancy.Info, "Allowance", oniontoken.PrettyONION(ledger.Allowance(from, spender)))
	})
}

func printBalances(w io.Writer, ledger *token.Ledger, from, to common.Address) {
	fancy.Ffield(w, fancy.Info, "From", from)
	fancy.Ffield(w, fancy.Info, "From balance", oniontoken.PrettyONION(ledger.BalanceOf(from)))
	fancy.Ffield(w, fancy.Info, "To", to)
	fancy.Ffield(w, fancy.Info, "To balance", oniontoken.PrettyONION(ledger.BalanceOf(to)))
}
