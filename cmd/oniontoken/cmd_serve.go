package main

import (
	"net"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/onion-token/pkg/server"
)

type serveConfig struct {
	*rootConfig
	ListenAddress string
}

func newServeCommand(rootConfig *rootConfig) *cobra.Command {
	config := &serveConfig{rootConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve balances, allowances and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCmd(doServe(config))
		},
	}
	cmd.Flags().StringVarP(
		&config.ListenAddress,
		"listen", "l",
		"",
		"Address to listen on (overrides [server] listen_address)")
	return cmd
}

func doServe(config *serveConfig) (err error) {
	log, err := openLog(config.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := config.openDB(config.Ctx, log, true)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	address := config.Config.Server.ListenAddress
	if config.ListenAddress != "" {
		address = config.ListenAddress
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errs.Wrap(err)
	}

	log.Info("Starting server", zap.String("ledger", config.Config.Ledger.Path.String()))
	return server.New(log.Named("server"), db, server.Config{
		ReadTimeout:  config.Config.Server.ReadTimeout.Duration(),
		WriteTimeout: config.Config.Server.WriteTimeout.Duration(),
	}).Serve(config.Ctx, listener)
}
