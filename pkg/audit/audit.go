// Package audit replays a ledger database entry by entry and checks the
// supply invariants of the rebuilt ledger.
package audit

import (
	"context"
	"math/big"
	"time"

	"github.com/zeebo/errs"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/receipts"
	"storj.io/onion-token/pkg/units"
)

type Sink interface {
	ReportStatusf(format string, args ...interface{})
	ReportWarnf(format string, args ...interface{})
	ReportErrorf(format string, args ...interface{})
}

type Stats struct {
	Entries  int64
	Applied  int64
	Rejected int64
	Gaps     int64
	ByKind   map[ledgerdb.Kind]int64

	Accounts    int
	TotalSupply *big.Int
	Cap         *big.Int

	// Problems counts every error reported to the sink.
	Problems int64
}

// Run audits db. Applied entries are emitted to rcpts when it is not nil.
// An error is returned only when the audit could not run; findings are
// reported through sink and counted in the stats.
func Run(ctx context.Context, db *ledgerdb.DB, sink Sink, rcpts *receipts.Buffer) (*Stats, error) {
	sink.ReportStatusf("Loading genesis...")
	ledger, genesis, err := db.Genesis(ctx)
	if err != nil {
		return nil, err
	}

	sink.ReportStatusf("Fetching journal...")
	entries, err := db.Entries(ctx)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	stats := &Stats{
		Entries: int64(len(entries)),
		ByKind:  make(map[ledgerdb.Kind]int64),
	}
	problem := func(format string, args ...interface{}) {
		stats.Problems++
		sink.ReportErrorf(format, args...)
	}

	var prevSeq int64
	last := time.Now()
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		which := i + 1
		now := time.Now()
		if which == len(entries) || now.Sub(last) > time.Second {
			last = now
			sink.ReportStatusf("Replaying journal (%d/%d)...", which, len(entries))
		}

		if entry.Seq != prevSeq+1 {
			sink.ReportWarnf("Journal gap between entries %d and %d", prevSeq, entry.Seq)
			stats.Gaps++
		}
		prevSeq = entry.Seq

		if err := entry.Apply(ledger); err != nil {
			problem("Journal entry %d (%s of %s from %s to %s by %s) does not apply: %v",
				entry.Seq, entry.Kind, units.Pretty(entry.Amount),
				entry.From, entry.To, entry.Caller, err)
			stats.Rejected++
			continue
		}
		stats.Applied++
		stats.ByKind[entry.Kind]++
		if rcpts != nil {
			rcpts.Emit(entry.Seq, string(entry.Kind), entry.From, entry.To, units.AmountFromBigInt(entry.Amount, units.WEI).Decimal(units.ONION))
		}
	}

	sink.ReportStatusf("Checking supply...")
	sum := new(big.Int)
	accounts := ledger.Accounts()
	for _, account := range accounts {
		balance := ledger.BalanceOf(account)
		if balance.Sign() < 0 {
			problem("Account %s has a negative balance %s", account, balance)
		}
		sum.Add(sum, balance)
	}
	stats.Accounts = len(accounts)
	stats.TotalSupply = ledger.TotalSupply()
	stats.Cap = ledger.Cap()

	if sum.Cmp(stats.TotalSupply) != 0 {
		problem("Sum of balances %s does not match total supply %s",
			oniontoken.PrettyONION(sum), oniontoken.PrettyONION(stats.TotalSupply))
	}
	switch stats.TotalSupply.Cmp(stats.Cap) {
	case 1:
		problem("Total supply %s exceeds the cap %s",
			oniontoken.PrettyONION(stats.TotalSupply), oniontoken.PrettyONION(stats.Cap))
	case -1:
		problem("Total supply %s is below the cap %s although the whole cap is minted at genesis",
			oniontoken.PrettyONION(stats.TotalSupply), oniontoken.PrettyONION(stats.Cap))
	}
	if ledger.Owner() != genesis.Owner {
		problem("Ledger owner %s does not match genesis owner %s", ledger.Owner(), genesis.Owner)
	}
	if genesis.Decimals != oniontoken.Decimals {
		problem("Genesis records %d decimals; expected %d", genesis.Decimals, oniontoken.Decimals)
	}

	return stats, nil
}
