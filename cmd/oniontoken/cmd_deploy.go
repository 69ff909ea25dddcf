package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/config"
	"storj.io/onion-token/pkg/fancy"
	"storj.io/onion-token/pkg/ledgerdb"
)

type deployConfig struct {
	*rootConfig
	OwnerKeyPath string
}

func newDeployCommand(rootConfig *rootConfig) *cobra.Command {
	config := &deployConfig{
		rootConfig: rootConfig,
	}
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create the ledger database and mint the whole cap to the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCmd(doDeploy(config, cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringVarP(
		&config.OwnerKeyPath,
		"owner-key", "",
		"",
		"Owner key file (overrides [owner] key_path)")
	return cmd
}

func doDeploy(cfg *deployConfig, w io.Writer) (err error) {
	keyPath := cfg.Config.Owner.KeyPath
	if cfg.OwnerKeyPath != "" {
		keyPath = config.ToPath(cfg.OwnerKeyPath)
	}
	_, owner, err := config.Owner{KeyPath: keyPath}.LoadKey()
	if err != nil {
		return err
	}
	genesis := cfg.Config.Token.Genesis(owner)

	fancy.Ffield(w, fancy.Info, "Ledger", cfg.Config.Ledger.Path)
	fancy.Ffield(w, fancy.Info, "Name", genesis.Name)
	fancy.Ffield(w, fancy.Info, "Symbol", genesis.Symbol)
	fancy.Ffield(w, fancy.Info, "Owner", owner)
	fancy.Ffield(w, fancy.Info, "Cap", oniontoken.PrettyONION(genesis.Cap))
	fancy.Ffield(w, fancy.Info, "Block reward", oniontoken.PrettyONION(genesis.BlockReward))
	if err := cfg.promptConfirm("Deploy"); err != nil {
		return err
	}

	log, err := openLog(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := ledgerdb.NewDB(cfg.Ctx, log, cfg.Config.Ledger.Path.String())
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	ledger, err := db.Deploy(cfg.Ctx, genesis)
	if err != nil {
		return err
	}
	fancy.Fokln(w, "Deployed. Owner balance: "+oniontoken.PrettyONION(ledger.BalanceOf(owner)))
	return nil
}
