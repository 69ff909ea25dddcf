package config

import (
	"crypto/ecdsa"
	"errors"
	"io/fs"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/errs"
)

// LoadKey loads the owner key. The file must not be accessible by group or
// others.
func (o Owner) LoadKey() (*ecdsa.PrivateKey, common.Address, error) {
	return LoadETHKey(string(o.KeyPath), "owner key_path")
}

// LoadETHKey loads a hex encoded secp256k1 private key. which names the key
// in error messages.
func LoadETHKey(path, which string) (*ecdsa.PrivateKey, common.Address, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.Address{}, errs.New("%s: %s not found", which, path)
		}
		return nil, common.Address{}, errs.New("unable to stat %s: %v", which, err)
	}

	if (fi.Mode() & 0177) != 0 {
		return nil, common.Address{}, errs.New("%s mode %#o is too permissive (set to 0600)", path, fi.Mode().Perm())
	}

	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, common.Address{}, errs.New("unable to load %s: %v", which, err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}
