package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/fancy"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
	"storj.io/onion-token/pkg/units"
)

func newBalanceCommand(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Print the balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := convertAddress(args[0], "account")
			if err != nil {
				return err
			}
			return checkCmd(rc.withLedger(func(_ *ledgerdb.DB, ledger *token.Ledger) error {
				fancy.Ffield(cmd.OutOrStdout(), fancy.Info, account.String(), units.Pretty(ledger.BalanceOf(account)))
				return nil
			}))
		},
	}
}

func newAllowanceCommand(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "allowance <owner> <spender>",
		Short: "Print how much a spender may transfer on behalf of an owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := convertAddress(args[0], "owner")
			if err != nil {
				return err
			}
			spender, err := convertAddress(args[1], "spender")
			if err != nil {
				return err
			}
			return checkCmd(rc.withLedger(func(_ *ledgerdb.DB, ledger *token.Ledger) error {
				fancy.Ffield(cmd.OutOrStdout(), fancy.Info, "Allowance", units.Pretty(ledger.Allowance(owner, spender)))
				return nil
			}))
		},
	}
}

type infoConfig struct {
	*rootConfig
	Accounts bool
}

func newInfoCommand(rc *rootConfig) *cobra.Command {
	config := &infoConfig{rootConfig: rc}
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the token parameters and supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCmd(config.withLedger(func(db *ledgerdb.DB, ledger *token.Ledger) error {
				return printInfo(cmd.OutOrStdout(), config, db, ledger)
			}))
		},
	}
	cmd.Flags().BoolVarP(&config.Accounts, "accounts", "a", false, "Also list every account balance")
	return cmd
}

func printInfo(w io.Writer, config *infoConfig, db *ledgerdb.DB, ledger *token.Ledger) error {
	md, err := db.Metadata(config.Ctx)
	if err != nil {
		return err
	}
	fancy.Ffield(w, fancy.Info, "Name", ledger.Name())
	fancy.Ffield(w, fancy.Info, "Symbol", ledger.Symbol())
	fancy.Ffield(w, fancy.Info, "Decimals", ledger.Decimals())
	fancy.Ffield(w, fancy.Info, "Owner", ledger.Owner())
	fancy.Ffield(w, fancy.Info, "Cap", oniontoken.PrettyONION(ledger.Cap()))
	fancy.Ffield(w, fancy.Info, "Block reward", oniontoken.PrettyONION(ledger.BlockReward()))
	fancy.Ffield(w, fancy.Info, "Total supply", oniontoken.PrettyONION(ledger.TotalSupply()))
	fancy.Ffield(w, fancy.Info, "Deployed at", md.Genesis.DeployedAt)
	fancy.Ffield(w, fancy.Info, "Accounts", len(ledger.Accounts()))
	if config.Accounts {
		for _, account := range ledger.Accounts() {
			fancy.Ffield(w, fancy.Plain, account.String(), oniontoken.PrettyONION(ledger.BalanceOf(account)))
		}
	}
	return nil
}

// withLedger opens the database read-only and replays the ledger for fn.
func (rc *rootConfig) withLedger(fn func(db *ledgerdb.DB, ledger *token.Ledger) error) (err error) {
	log, err := openLog(rc.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := rc.openDB(rc.Ctx, log, true)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	ledger, err := db.Ledger(rc.Ctx)
	if err != nil {
		return err
	}
	return fn(db, ledger)
}
