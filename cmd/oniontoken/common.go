package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mitchellh/go-homedir"

	"storj.io/onion-token/pkg/fancy"
)

var homeDir string

func init() {
	var err error
	homeDir, err = homedir.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to determine home directory: %v\n", err)
		os.Exit(1)
	}
}

func cmdCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		sig := <-ch
		fmt.Fprintf(os.Stderr, "Signal %q received; the ledger is left at its last recorded journal entry\n", sig)
		cancel()
	}()
	return ctx
}

func checkCmd(err error) error {
	switch {
	case err == nil:
		return nil
	case usageErr.Has(err):
		// If it is a usage error, return it directly so cobra command will
		// show usage. Otherwise, print and exit with non-zero exit status.
		return err
	}
	// other errors exit with 2
	fancy.Ferrorf(os.Stderr, "error: %+v\n", err)
	os.Exit(2)
	return err
}
