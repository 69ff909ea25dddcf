// Package config loads the TOML configuration shared by the command line
// tools.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"

	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
	"storj.io/onion-token/pkg/units"
)

type MissingFieldsError = toml.StrictMissingError

type Config struct {
	Token  Token  `toml:"token"`
	Ledger Ledger `toml:"ledger"`
	Owner  Owner  `toml:"owner"`
	Server Server `toml:"server"`
}

type Token struct {
	Name   string `toml:"name"`
	Symbol string `toml:"symbol"`

	// Cap is the maximum supply. All of it is minted to the owner at deploy
	// time.
	Cap units.Amount `toml:"cap"`

	// BlockReward is recorded with the deployment. Nothing mints it.
	BlockReward units.Amount `toml:"block_reward"`
}

// Genesis returns the deployment parameters for a token owned by owner.
func (t Token) Genesis(owner common.Address) ledgerdb.Genesis {
	return ledgerdb.Genesis{
		Name:        t.Name,
		Symbol:      t.Symbol,
		Owner:       owner,
		Cap:         t.Cap.WEIInt(),
		BlockReward: t.BlockReward.WEIInt(),
	}
}

type Ledger struct {
	// Path is the SQLite database holding the genesis and journal.
	Path Path `toml:"path"`
}

type Owner struct {
	// KeyPath is the hex encoded private key of the deploying account.
	KeyPath Path `toml:"key_path"`
}

type Server struct {
	ListenAddress string   `toml:"listen_address"`
	ReadTimeout   Duration `toml:"read_timeout"`
	WriteTimeout  Duration `toml:"write_timeout"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Parse(data []byte) (Config, error) {
	const (
		defaultLedgerPath    = "~/.oniontoken/ledger.db"
		defaultOwnerKeyPath  = "~/.oniontoken/owner.key"
		defaultListenAddress = "127.0.0.1:8545"
		defaultReadTimeout   = Duration(10 * time.Second)
		defaultWriteTimeout  = Duration(10 * time.Second)
	)
	var (
		defaultCap         = units.RequireParseAmount("100000000onion")
		defaultBlockReward = units.RequireParseAmount("50onion")
	)

	config := Config{
		Token: Token{
			Name:        token.DefaultName,
			Symbol:      token.DefaultSymbol,
			Cap:         defaultCap,
			BlockReward: defaultBlockReward,
		},
		Ledger: Ledger{
			Path: ToPath(defaultLedgerPath),
		},
		Owner: Owner{
			KeyPath: ToPath(defaultOwnerKeyPath),
		},
		Server: Server{
			ListenAddress: defaultListenAddress,
			ReadTimeout:   defaultReadTimeout,
			WriteTimeout:  defaultWriteTimeout,
		},
	}

	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Token.Cap.IsZero() {
		return Config{}, errors.New("token cap must be greater than zero")
	}
	return config, nil
}

func DumpUnknownFields(err error) string {
	var sme *toml.StrictMissingError
	if errors.As(err, &sme) {
		return sme.String()
	}
	return ""
}
