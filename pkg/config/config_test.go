package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storj.io/onion-token/pkg/config"
	"storj.io/onion-token/pkg/ethtest"
	"storj.io/onion-token/pkg/units"
)

func homePath(t *testing.T, suffix string) config.Path {
	home, err := homedir.Dir()
	require.NoError(t, err)
	return config.Path(filepath.Join(home, suffix))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("./testdata/defaults.toml")
	t.Logf("unknown fields:\n%s", config.DumpUnknownFields(err))
	require.NoError(t, err)

	assert.Equal(t, "OnionToken", cfg.Token.Name)
	assert.Equal(t, "ONION", cfg.Token.Symbol)
	assert.Equal(t, "100000000onion", cfg.Token.Cap.String())
	assert.Equal(t, "50onion", cfg.Token.BlockReward.String())
	assert.Equal(t, config.Ledger{Path: homePath(t, ".oniontoken/ledger.db")}, cfg.Ledger)
	assert.Equal(t, config.Owner{KeyPath: homePath(t, ".oniontoken/owner.key")}, cfg.Owner)
	assert.Equal(t, config.Server{
		ListenAddress: "127.0.0.1:8545",
		ReadTimeout:   config.Duration(10 * time.Second),
		WriteTimeout:  config.Duration(10 * time.Second),
	}, cfg.Server)

	assert.Equal(t, cfg, config.Default())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := config.Load("./testdata/override.toml")
	require.NoError(t, err)

	assert.Equal(t, "Shallot", cfg.Token.Name)
	assert.Equal(t, "SHAL", cfg.Token.Symbol)
	assert.Equal(t, "21000000", units.Format(cfg.Token.Cap.WEIInt()))
	assert.Equal(t, "2.5", units.Format(cfg.Token.BlockReward.WEIInt()))
	assert.Equal(t, config.Path("/var/lib/oniontoken/ledger.db"), cfg.Ledger.Path)
	assert.Equal(t, homePath(t, "keys/owner.key"), cfg.Owner.KeyPath)
	assert.Equal(t, config.Server{
		ListenAddress: ":9000",
		ReadTimeout:   config.Duration(5 * time.Second),
		WriteTimeout:  config.Duration(time.Minute),
	}, cfg.Server)

	owner := ethtest.NewAccount()
	genesis := cfg.Token.Genesis(owner.Address)
	assert.Equal(t, owner.Address, genesis.Owner)
	assert.Equal(t, "SHAL", genesis.Symbol)
	assert.Equal(t, "21000000", units.Format(genesis.Cap))
}

func TestParse_Rejects(t *testing.T) {
	for _, tt := range []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "unknown field",
			data:    "[token]\nsupply = \"1onion\"\n",
			wantErr: "failed to unmarshal config",
		},
		{
			name:    "bad amount",
			data:    "[token]\ncap = \"lots\"\n",
			wantErr: "unsupported suffix",
		},
		{
			name:    "zero cap",
			data:    "[token]\ncap = \"0onion\"\n",
			wantErr: "token cap must be greater than zero",
		},
		{
			name:    "bad duration",
			data:    "[server]\nread_timeout = \"soon\"\n",
			wantErr: "failed to unmarshal config",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.data))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDumpUnknownFields(t *testing.T) {
	_, err := config.Parse([]byte("[ledger]\nfile = \"x\"\n"))
	require.Contains(t, config.DumpUnknownFields(err), "file")
}

func TestOwnerLoadKey(t *testing.T) {
	dir := t.TempDir()
	owner := ethtest.NewAccount()
	keyPath := owner.SaveKey(t, dir)

	_, address, err := config.Owner{KeyPath: config.Path(keyPath)}.LoadKey()
	require.NoError(t, err)
	require.Equal(t, owner.Address, address)

	require.NoError(t, os.Chmod(keyPath, 0644))
	_, _, err = config.Owner{KeyPath: config.Path(keyPath)}.LoadKey()
	require.Error(t, err)
	require.Contains(t, err.Error(), "too permissive")

	_, _, err = config.Owner{KeyPath: config.Path(filepath.Join(dir, "missing.key"))}.LoadKey()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestToPath(t *testing.T) {
	require.Equal(t, homePath(t, "a/b"), config.ToPath("~/a/b"))
	require.Equal(t, config.Path("/abs/path"), config.ToPath("/abs/path"))
	require.Equal(t, config.Path("relative"), config.ToPath("relative"))
}
