package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/crm-relay/cmd/crmctl/commands"
)

func main() {
	if err := run(); err != nil {
		commands.ReportError(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
