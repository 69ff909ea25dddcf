package main

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"storj.io/onion-token/pkg/contract"
	"storj.io/onion-token/pkg/fancy"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
)

var stateChangingCommands = map[string]string{
	"transfer":          "transfer",
	"transferFrom":      "transfer-from",
	"approve":           "approve",
	"increaseAllowance": "increase-allowance",
	"decreaseAllowance": "decrease-allowance",
}

func newCallCommand(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "call <from> <calldata>",
		Short: "Execute ABI encoded view call data against the ledger",
		Long: "Execute ABI encoded view call data against the ledger and print the decoded result.\n" +
			"State changing calls are refused; use the matching command instead.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := convertAddress(args[0], "caller")
			if err != nil {
				return err
			}
			input, err := hexutil.Decode(args[1])
			if err != nil {
				return usageErr.New("invalid call data: %v", err)
			}
			return checkCmd(rc.withLedger(func(_ *ledgerdb.DB, ledger *token.Ledger) error {
				return doCall(cmd.OutOrStdout(), ledger, from, input)
			}))
		},
	}
}

func doCall(w io.Writer, ledger *token.Ledger, from common.Address, input []byte) error {
	c, err := contract.At(ledger)
	if err != nil {
		return err
	}
	if len(input) < 4 {
		return usageErr.New("call data is shorter than a selector")
	}
	method, err := c.ABI().MethodById(input[:4])
	if err != nil {
		return usageErr.Wrap(err)
	}
	if !method.IsConstant() {
		return usageErr.New("%s changes state; use the %q command", method.Name, stateChangingCommands[method.Name])
	}

	result, err := c.Call(from, input)
	if err != nil {
		return err
	}
	values, err := method.Outputs.Unpack(result.Output)
	if err != nil {
		return err
	}

	fancy.Ffield(w, fancy.Info, "Contract", c.Address())
	fancy.Ffield(w, fancy.Info, "Method", method.Sig)
	for i, value := range values {
		fancy.Ffield(w, fancy.Ok, fmt.Sprintf("Output %d (%s)", i, method.Outputs[i].Type), value)
	}
	fancy.Ffield(w, fancy.Plain, "Raw", hexutil.Encode(result.Output))
	return nil
}
