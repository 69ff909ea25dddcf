package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/csv"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kyokomi/emoji/v2"
	"github.com/zeebo/clingy"
	"github.com/zeebo/errs"
)

type cmdKeygen struct {
	dir      string
	accounts int
}

func (cmd *cmdKeygen) Setup(params clingy.Parameters) {
	cmd.accounts = intFlag(params, "accounts", "Number of extra accounts to write to accounts.csv", 0)
	cmd.dir = stringArg(params, "DIR", "Directory to write the keys to")
}

func (cmd *cmdKeygen) Execute(ctx context.Context) error {
	stdout := clingy.Stdout(ctx)

	ownerAddress, err := generateKeys(cmd.dir, cmd.accounts)
	if err != nil {
		return err
	}
	_, _ = emoji.Fprintf(stdout, ":key: Owner %s written to %s\n", ownerAddress, filepath.Join(cmd.dir, "owner.key"))
	if cmd.accounts > 0 {
		_, _ = emoji.Fprintf(stdout, ":busts_in_silhouette: %d accounts written to %s\n", cmd.accounts, filepath.Join(cmd.dir, "accounts.csv"))
	}
	return nil
}

// generateKeys writes owner.key (0600), owner-address and, when accounts is
// positive, accounts.csv with seq,address,key rows.
func generateKeys(dir string, accounts int) (string, error) {
	if accounts < 0 {
		return "", errs.New("accounts must not be negative")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errs.Wrap(err)
	}

	ownerKey, ownerAddress, err := makeAccount()
	if err != nil {
		return "", err
	}
	if err := writeNewFile(filepath.Join(dir, "owner.key"), []byte(ownerKey+"\n"), 0600); err != nil {
		return "", err
	}
	if err := writeNewFile(filepath.Join(dir, "owner-address"), []byte(ownerAddress+"\n"), 0644); err != nil {
		return "", err
	}
	if accounts == 0 {
		return ownerAddress, nil
	}

	accountsBytes := new(bytes.Buffer)
	accountsCSV := csv.NewWriter(accountsBytes)
	_ = accountsCSV.Write([]string{"seq", "address", "key"})
	for i := 0; i < accounts; i++ {
		key, address, err := makeAccount()
		if err != nil {
			return "", err
		}
		_ = accountsCSV.Write([]string{strconv.Itoa(i + 1), address, key})
	}
	accountsCSV.Flush()
	if err := accountsCSV.Error(); err != nil {
		return "", errs.Wrap(err)
	}
	if err := writeNewFile(filepath.Join(dir, "accounts.csv"), accountsBytes.Bytes(), 0600); err != nil {
		return "", err
	}
	return ownerAddress, nil
}

// writeNewFile refuses to overwrite existing keys.
func writeNewFile(path string, data []byte, mode os.FileMode) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return errs.Wrap(err)
	}
	defer func() { err = errs.Combine(err, f.Close()) }()
	_, err = f.Write(data)
	return errs.Wrap(err)
}

func makeAccount() (key, address string, err error) {
	rawKey, err := generateKey()
	if err != nil {
		return "", "", err
	}
	key = hex.EncodeToString(crypto.FromECDSA(rawKey))
	address = crypto.PubkeyToAddress(rawKey.PublicKey).Hex()
	return key, address, nil
}

func generateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	return key, errs.Wrap(err)
}
