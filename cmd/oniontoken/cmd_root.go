package main

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"storj.io/onion-token/pkg/config"
)

type rootConfig struct {
	Ctx context.Context

	ConfigPath string
	DataDir    string
	LedgerPath string
	Yes        bool

	Config config.Config
}

func newRootCommand() *cobra.Command {
	rc := new(rootConfig)
	cmd := &cobra.Command{
		Use:   "oniontoken",
		Short: "Deploy and operate an OnionToken ledger",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			rc.Ctx = cmdCtx()
			return rc.load()
		},
		Version: getVersion(),
	}
	cmd.PersistentFlags().StringVarP(
		&rc.ConfigPath,
		"config", "c",
		"",
		"Path to the TOML configuration (defaults are used when empty)")
	cmd.PersistentFlags().StringVarP(
		&rc.DataDir,
		"data-dir", "",
		filepath.Join(homeDir, ".oniontoken"),
		"Directory to store data (e.g. logs)")
	cmd.PersistentFlags().StringVarP(
		&rc.LedgerPath,
		"ledger", "",
		"",
		"Path to the ledger database (overrides [ledger] path)")
	cmd.PersistentFlags().BoolVarP(
		&rc.Yes,
		"yes", "y",
		false,
		"Do not prompt for confirmation")

	cmd.AddCommand(newDeployCommand(rc))
	cmd.AddCommand(newTransferCommand(rc))
	cmd.AddCommand(newTransferFromCommand(rc))
	cmd.AddCommand(newTransferBatchCommand(rc))
	cmd.AddCommand(newApproveCommand(rc))
	cmd.AddCommand(newAllowanceChangeCommand(rc, true))
	cmd.AddCommand(newAllowanceChangeCommand(rc, false))
	cmd.AddCommand(newBalanceCommand(rc))
	cmd.AddCommand(newAllowanceCommand(rc))
	cmd.AddCommand(newInfoCommand(rc))
	cmd.AddCommand(newJournalCommand(rc))
	cmd.AddCommand(newCallCommand(rc))
	cmd.AddCommand(newServeCommand(rc))
	return cmd
}

func (rc *rootConfig) load() error {
	if rc.ConfigPath == "" {
		rc.Config = config.Default()
	} else {
		cfg, err := config.Load(rc.ConfigPath)
		if err != nil {
			if unknown := config.DumpUnknownFields(err); unknown != "" {
				return usageErr.New("%v\n%s", err, unknown)
			}
			return usageErr.Wrap(err)
		}
		rc.Config = cfg
	}
	if rc.LedgerPath != "" {
		rc.Config.Ledger.Path = config.ToPath(rc.LedgerPath)
	}
	return nil
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	return fmt.Sprintf("%s (built with %s)\n", buildInfo.Main.Version, runtime.Version())
}
