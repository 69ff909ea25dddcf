package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
	"storj.io/common/testcontext"

	"storj.io/onion-token/pkg/config"
	"storj.io/onion-token/pkg/contract"
	"storj.io/onion-token/pkg/ethtest"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
	"storj.io/onion-token/pkg/units"
)

func newTestRootConfig(t *testing.T) *rootConfig {
	dir := t.TempDir()
	rc := &rootConfig{
		Ctx:     testcontext.New(t),
		DataDir: dir,
		Yes:     true,
		Config:  config.Default(),
	}
	rc.Config.Ledger.Path = config.Path(filepath.Join(dir, "ledger.db"))
	return rc
}

func TestDeployTransferAndQuery(t *testing.T) {
	rc := newTestRootConfig(t)
	keysDir := t.TempDir()
	signers := ethtest.Signers(3)
	owner, addr1, addr2 := signers[0], signers[1], signers[2]
	ownerKey := owner.SaveKey(t, keysDir)
	addr1Key := addr1.SaveKey(t, keysDir)

	var out bytes.Buffer
	require.NoError(t, doDeploy(&deployConfig{rootConfig: rc, OwnerKeyPath: ownerKey}, &out))
	require.Contains(t, out.String(), "100000000 ONION")

	out.Reset()
	require.NoError(t, doTransfer(rc, &out, ownerKey, addr1.Address.Hex(), "100onion"))
	require.Contains(t, out.String(), "Recorded as journal entry 1.")
	require.Contains(t, out.String(), "Transfer: 100 ONION")

	out.Reset()
	err := doTransfer(rc, &out, addr1Key, addr2.Address.Hex(), "101onion")
	require.True(t, token.ErrInsufficientBalance.Has(err), "unexpected error: %v", err)
	require.Contains(t, out.String(), "Rejected")

	out.Reset()
	require.NoError(t, doAllowanceOp(rc, &out, ledgerdb.ApproveOp, addr1Key, addr2.Address.Hex(), "10onion"))
	require.Contains(t, out.String(), "Approval:")

	_, err = convertAmount("-1onion")
	require.True(t, usageErr.Has(err))
	_, err = convertAddress("nope", "recipient")
	require.True(t, usageErr.Has(err))

	out.Reset()
	info := &infoConfig{rootConfig: rc, Accounts: true}
	require.NoError(t, rc.withLedger(func(db *ledgerdb.DB, ledger *token.Ledger) error {
		require.Equal(t, "100", units.Format(ledger.BalanceOf(addr1.Address)))
		require.Equal(t, "10", units.Format(ledger.Allowance(addr1.Address, addr2.Address)))
		return printInfo(&out, info, db, ledger)
	}))
	require.Contains(t, out.String(), "Total supply")
	require.Contains(t, out.String(), addr1.Address.String())

	out.Reset()
	require.NoError(t, rc.withLedger(func(db *ledgerdb.DB, _ *token.Ledger) error {
		return printJournal(&out, rc, db)
	}))
	require.Contains(t, out.String(), "transfer")
	require.Contains(t, out.String(), "approve")
}

func TestCallRefusesStateChanges(t *testing.T) {
	signers := ethtest.Signers(2)
	owner, addr1 := signers[0], signers[1]
	ledger, err := token.New(owner.Address, units.Tokens(1000), units.Tokens(1))
	require.NoError(t, err)

	parsed, err := contract.OnionTokenMetaData.GetAbi()
	require.NoError(t, err)

	input, err := parsed.Pack("balanceOf", owner.Address)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, doCall(&out, ledger, addr1.Address, input))
	require.Contains(t, out.String(), units.Tokens(1000).String())

	input, err = parsed.Pack("transfer", addr1.Address, units.Tokens(1))
	require.NoError(t, err)
	err = doCall(&out, ledger, owner.Address, input)
	require.True(t, usageErr.Has(err))
	require.Contains(t, err.Error(), `"transfer"`)
	require.Equal(t, "0", ledger.BalanceOf(addr1.Address).String())

	err = doCall(&out, ledger, owner.Address, hexutil.MustDecode("0x01"))
	require.True(t, usageErr.Has(err))
}

func TestTransferBatch(t *testing.T) {
	rc := newTestRootConfig(t)
	keysDir := t.TempDir()
	signers := ethtest.Signers(3)
	owner, addr1, addr2 := signers[0], signers[1], signers[2]
	ownerKey := owner.SaveKey(t, keysDir)
	addr1Key := addr1.SaveKey(t, keysDir)

	var out bytes.Buffer
	require.NoError(t, doDeploy(&deployConfig{rootConfig: rc, OwnerKeyPath: ownerKey}, &out))

	csvPath := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(fmt.Sprintf("addr,amount\n%s,100\n%s,50\n%s,0.5\n",
		addr1.Address.Hex(), addr2.Address.Hex(), addr1.Address.Hex())), 0644))

	out.Reset()
	batchCfg := &batchConfig{rootConfig: rc}
	require.NoError(t, doTransferBatch(batchCfg, &out, ownerKey, csvPath))
	require.Contains(t, out.String(), "[3/3]")
	require.Contains(t, out.String(), "in 3 transfers")

	// addr1 holds 100.5 ONION, short of the 150.5 the batch needs.
	out.Reset()
	err := doTransferBatch(batchCfg, &out, addr1Key, csvPath)
	require.True(t, token.ErrInsufficientBalance.Has(err), "unexpected error: %v", err)

	require.NoError(t, rc.withLedger(func(db *ledgerdb.DB, ledger *token.Ledger) error {
		require.Equal(t, "100.5", units.Format(ledger.BalanceOf(addr1.Address)))
		require.Equal(t, "50", units.Format(ledger.BalanceOf(addr2.Address)))
		entries, err := db.Entries(rc.Ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		return nil
	}))

	err = doTransferBatch(batchCfg, &out, ownerKey, filepath.Join(t.TempDir(), "missing.csv"))
	require.True(t, usageErr.Has(err), "unexpected error: %v", err)
}
