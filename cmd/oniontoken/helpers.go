package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/manifoldco/promptui"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/config"
	"storj.io/onion-token/pkg/fancy"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
	"storj.io/onion-token/pkg/units"
)

var (
	usageErr = errs.Class("usage")
)

func convertAddress(s, which string) (common.Address, error) {
	address, err := oniontoken.AddressFromString(s)
	if err != nil {
		return common.Address{}, usageErr.New("invalid %s address: %v", which, err)
	}
	return address, nil
}

func convertAmount(s string) (*big.Int, error) {
	amount, err := units.ParseAmount(s)
	if err != nil {
		return nil, usageErr.New("invalid amount: %v", err)
	}
	return amount.WEIInt(), nil
}

func loadKeyAddress(path string) (common.Address, error) {
	_, address, err := config.LoadETHKey(path, "key file")
	return address, err
}

func (rc *rootConfig) promptConfirm(label string) error {
	if rc.Yes {
		return nil
	}
	_, err := (&promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}).Run()
	if err != nil {
		return errors.New("aborted")
	}
	return nil
}

func (rc *rootConfig) openDB(ctx context.Context, log *zap.Logger, readOnly bool) (*ledgerdb.DB, error) {
	return ledgerdb.OpenDB(ctx, log, rc.Config.Ledger.Path.String(), readOnly)
}

// printEvents drains the notifications an operation produced.
func printEvents(w io.Writer, transfers <-chan token.TransferEvent, approvals <-chan token.ApprovalEvent) {
	for {
		select {
		case evt := <-approvals:
			fancy.Finfof(w, "Approval: %s may spend %s of %s\n", evt.Spender, oniontoken.PrettyONION(evt.Value), evt.Owner)
		case evt := <-transfers:
			fancy.Finfof(w, "Transfer: %s from %s to %s\n", oniontoken.PrettyONION(evt.Value), evt.From, evt.To)
		default:
			return
		}
	}
}

// applyOp applies op to the current ledger after confirmation and reports
// the resulting notifications.
func (rc *rootConfig) applyOp(w io.Writer, op ledgerdb.Op, describe func(ledger *token.Ledger)) (err error) {
	log, err := openLog(rc.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := rc.openDB(rc.Ctx, log, false)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	ledger, err := db.Ledger(rc.Ctx)
	if err != nil {
		return err
	}

	fancy.Ffield(w, fancy.Info, "Operation", op.Kind)
	fancy.Ffield(w, fancy.Info, "Caller", op.Caller)
	describe(ledger)
	fancy.Ffield(w, fancy.Info, "Amount", units.Pretty(op.Amount))

	if err := rc.promptConfirm(fmt.Sprintf("Apply %s", op.Kind)); err != nil {
		return err
	}

	transfers := make(chan token.TransferEvent, 2)
	approvals := make(chan token.ApprovalEvent, 2)
	transferSub := ledger.SubscribeTransfers(transfers)
	defer transferSub.Unsubscribe()
	approvalSub := ledger.SubscribeApprovals(approvals)
	defer approvalSub.Unsubscribe()

	entry, err := db.Apply(rc.Ctx, ledger, op)
	if err != nil {
		fancy.Ferrorf(w, "Rejected: %v\n", err)
		return err
	}
	printEvents(w, transfers, approvals)
	fancy.Fokln(w, fmt.Sprintf("Recorded as journal entry %d.", entry.Seq))
	return nil
}
