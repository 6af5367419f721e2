package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kkdl-dev/kkdl/internal/cli"
)

func main() {
	// Cancel in-flight requests on Ctrl+C; the .part files are left behind and overwritten next run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
