package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"secure.notes/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli.Version = version
	code := cli.Execute(ctx, cli.IO{}, os.Args[1:])

	stop()
	os.Exit(code)
}
