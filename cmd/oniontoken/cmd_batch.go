package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/batch"
	"storj.io/onion-token/pkg/fancy"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
	"storj.io/onion-token/pkg/units"
)

type batchConfig struct {
	*rootConfig
	Sort bool
}

func newTransferBatchCommand(rc *rootConfig) *cobra.Command {
	config := &batchConfig{rootConfig: rc}
	cmd := &cobra.Command{
		Use:   "transfer-batch <keyFile> <csvFile>",
		Short: "Transfer tokens from the key holder to every row of an addr,amount CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCmd(doTransferBatch(config, cmd.OutOrStdout(), args[0], args[1]))
		},
	}
	cmd.Flags().BoolVar(&config.Sort, "sort", false, "Transfer in address order instead of file order")
	return cmd
}

func doTransferBatch(config *batchConfig, w io.Writer, keyPath, csvPath string) (err error) {
	rows, err := batch.Load(csvPath)
	if err != nil {
		return usageErr.New("unable to load batch: %v", err)
	}
	if len(rows) == 0 {
		return usageErr.New("batch %q has no rows", csvPath)
	}
	if config.Sort {
		batch.SortRows(rows)
	}
	from, err := loadKeyAddress(keyPath)
	if err != nil {
		return err
	}

	log, err := openLog(config.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := config.openDB(config.Ctx, log, false)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	ledger, err := db.Ledger(config.Ctx)
	if err != nil {
		return err
	}

	total := batch.Total(rows)
	balance := ledger.BalanceOf(from)
	fancy.Ffield(w, fancy.Info, "From", from)
	fancy.Ffield(w, fancy.Info, "Transfers", len(rows))
	fancy.Ffield(w, fancy.Info, "Total", oniontoken.PrettyONION(total))
	fancy.Ffield(w, fancy.Info, "Balance", oniontoken.PrettyONION(balance))
	if total.Cmp(balance) > 0 {
		fancy.Ferrorln(w, "Balance does not cover the batch")
		return token.ErrInsufficientBalance.New("batch needs %s but %s holds %s", total, from, balance)
	}

	if err := config.promptConfirm(fmt.Sprintf("Apply %d transfers", len(rows))); err != nil {
		return err
	}

	for i, row := range rows {
		entry, err := db.Apply(config.Ctx, ledger, ledgerdb.TransferOp(from, row.Address, row.Amount))
		if err != nil {
			fancy.Ferrorf(w, "Rejected line %d: %v\n", row.Line, err)
			return errs.New("batch stopped at line %d after %d of %d transfers: %v", row.Line, i, len(rows), err)
		}
		log.Debug("Batch transfer recorded",
			zap.Int("line", row.Line),
			zap.Int64("seq", entry.Seq),
			zap.Stringer("to", row.Address),
			zap.Stringer("amount", units.AmountFromBigInt(row.Amount, units.WEI).ONION()))
		fancy.Finfof(w, "[%d/%d] %s to %s (journal entry %d)\n", i+1, len(rows), oniontoken.PrettyONION(row.Amount), row.Address, entry.Seq)
	}

	fancy.Fokln(w, fmt.Sprintf("Transferred %s in %d transfers.", oniontoken.PrettyONION(total), len(rows)))
	return nil
}
