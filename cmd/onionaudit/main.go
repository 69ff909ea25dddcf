package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/zeebo/clingy"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ok, err := clingy.Environment{}.Run(ctx, commands)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed: %+v\n", err)
		return err
	}
	if !ok {
		return errors.New("usage error")
	}
	return nil
}

func commands(cmds clingy.Commands) {
	cmds.New("audit", "Replays the ledger journal and checks the supply invariants", new(cmdAudit))
	cmds.New("keygen", "Generates an owner key and test accounts", new(cmdKeygen))
}
