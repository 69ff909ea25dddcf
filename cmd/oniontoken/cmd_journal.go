package main

import (
	"io"

	"github.com/spf13/cobra"

	"storj.io/onion-token/pkg/fancy"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
	"storj.io/onion-token/pkg/units"
)

func newJournalCommand(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "journal",
		Short: "List the accepted operations in application order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCmd(rc.withLedger(func(db *ledgerdb.DB, _ *token.Ledger) error {
				return printJournal(cmd.OutOrStdout(), rc, db)
			}))
		},
	}
}

func printJournal(w io.Writer, rc *rootConfig, db *ledgerdb.DB) error {
	entries, err := db.Entries(rc.Ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fancy.Finfof(w, "%6d %s %-18s %s -> %s %s (by %s)\n",
			entry.Seq, entry.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"), entry.Kind,
			entry.From, entry.To, units.Format(entry.Amount), entry.Caller)
	}

	stats, err := db.Stats(rc.Ctx)
	if err != nil {
		return err
	}
	fancy.Finfoln(w)
	fancy.Ffield(w, fancy.Info, "Entries", stats.Entries)
	for _, kind := range ledgerdb.Kinds {
		fancy.Ffield(w, fancy.Info, string(kind), stats.ByKind[kind])
	}
	fancy.Ffield(w, fancy.Info, "Accounts touched", stats.Accounts)
	return nil
}
