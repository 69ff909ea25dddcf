package ethtest

import (
	"crypto/ecdsa"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type Account struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

func NewAccount() *Account {
	key := NewKey()
	return &Account{
		Key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func NewKey() *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(fmt.Sprintf("unable to generate key: %v", err))
	}
	return key
}

// Signers returns n fresh accounts, in the order a deployment harness would
// hand them out: the first is conventionally the deployer.
func Signers(n int) []*Account {
	accounts := make([]*Account, 0, n)
	for i := 0; i < n; i++ {
		accounts = append(accounts, NewAccount())
	}
	return accounts
}

// SaveKey writes the account key into dir (mode 0600) and returns the path.
func (acc *Account) SaveKey(tb testing.TB, dir string) string {
	path := filepath.Join(dir, acc.Address.Hex()+".key")
	require.NoError(tb, crypto.SaveECDSA(path, acc.Key))
	return path
}
