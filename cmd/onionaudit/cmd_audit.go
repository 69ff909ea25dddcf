package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/kyokomi/emoji/v2"
	"github.com/zeebo/clingy"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/audit"
	"storj.io/onion-token/pkg/config"
	"storj.io/onion-token/pkg/fancy"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/receipts"
)

type cmdAudit struct {
	config       string
	ledger       string
	force        bool
	receiptsPath string
	verbose      bool
}

func (cmd *cmdAudit) Setup(params clingy.Parameters) {
	cmd.config = stringFlag(params, "config", "The configuration file (defaults are used when empty)", "")
	cmd.ledger = stringFlag(params, "ledger", "The ledger database (overrides [ledger] path)", "")
	cmd.force = toggleFlag(params, "force", "Force writing the receipts even if the audit found problems", false)
	cmd.receiptsPath = stringFlag(params, "receipts", "Path on disk to write the receipts CSV to", "")
	cmd.verbose = toggleFlag(params, "verbose", "Log ledger database activity at debug level", false)
}

func (cmd *cmdAudit) Execute(ctx context.Context) (err error) {
	stdout := clingy.Stdout(ctx)
	stderr := clingy.Stderr(ctx)
	sink := &auditSink{out: stdout, err: stderr}

	cfg := config.Default()
	if cmd.config != "" {
		cfg, err = config.Load(cmd.config)
		if err != nil {
			return fmt.Errorf("unable to load config: %w", err)
		}
	}
	ledgerPath := cfg.Ledger.Path
	if cmd.ledger != "" {
		ledgerPath = config.ToPath(cmd.ledger)
	}

	log, err := openConsoleLog(cmd.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := ledgerdb.OpenDB(ctx, log.Named("ledgerdb"), ledgerPath.String(), true)
	if err != nil {
		return fmt.Errorf("failed to open ledger database: %w", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	var rcpts receipts.Buffer
	stats, err := audit.Run(ctx, db, sink, &rcpts)
	if err != nil {
		return err
	}
	log.Debug("Audit finished", zap.Int64("entries", stats.Entries), zap.Int64("problems", stats.Problems))

	printStats(stdout, stats)
	bad := stats.Problems > 0

	if bad {
		fancy.Finfoln(stdout)
		fancy.Ferrorln(stdout, "There were one or more problems with the ledger")
	}

	switch {
	case cmd.receiptsPath == "":
	case !bad || cmd.force:
		fancy.Finfof(stdout, "Writing receipts to %s...\n", cmd.receiptsPath)
		if err := os.WriteFile(cmd.receiptsPath, rcpts.Finalize(), 0644); err != nil {
			return errs.Wrap(err)
		}
	default:
		fancy.Fwarnln(stdout, "Skipping writing receipts due to ledger problems (force writing with --force)")
	}

	if bad {
		return errs.New("audit found %d problems", stats.Problems)
	}
	_, _ = emoji.Fprintln(stdout, ":white_check_mark: Done.")
	return nil
}

func printStats(w io.Writer, stats *audit.Stats) {
	fancy.Finfoln(w)
	fancy.Finfoln(w, "Journal stats:")
	fancy.Ffield(w, fancy.Info, "Entries", stats.Entries)
	fancy.Ffield(w, fancy.Info, "Applied", stats.Applied)
	fancy.Ffield(w, errorIfNonZero(stats.Rejected), "Rejected", stats.Rejected)
	fancy.Ffield(w, warnIfNonZero(stats.Gaps), "Gaps", stats.Gaps)

	kinds := maps.Keys(stats.ByKind)
	slices.Sort(kinds)
	for _, kind := range kinds {
		fancy.Ffield(w, fancy.Info, "  "+string(kind), stats.ByKind[kind])
	}

	fancy.Finfoln(w)
	fancy.Finfoln(w, "Supply:")
	fancy.Ffield(w, fancy.Info, "Accounts", stats.Accounts)
	fancy.Ffield(w, fancy.Info, "Total supply", oniontoken.PrettyONION(stats.TotalSupply))
	fancy.Ffield(w, fancy.Info, "Cap", oniontoken.PrettyONION(stats.Cap))
	fancy.Ffield(w, errorIfNonZero(stats.Problems), "Problems", stats.Problems)
}

type auditSink struct {
	out io.Writer
	err io.Writer
}

func (s *auditSink) ReportStatusf(format string, args ...any) {
	fancy.Finfoln(s.out, emoji.Sprintf(":mag: "+format, args...))
}

func (s *auditSink) ReportWarnf(format string, args ...any) {
	fancy.Fwarnln(s.err, emoji.Sprintf(":warning: "+format, args...))
}

func (s *auditSink) ReportErrorf(format string, args ...any) {
	fancy.Ferrorln(s.err, emoji.Sprintf(":x: "+format, args...))
}

func errorIfNonZero[T constraints.Integer](v T) fancy.Level {
	if v != 0 {
		return fancy.Error
	}
	return fancy.Info
}

func warnIfNonZero[T constraints.Integer](v T) fancy.Level {
	if v != 0 {
		return fancy.Warn
	}
	return fancy.Info
}
