package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/teranos/autojson/cmd/autojsonctx/commands"
	"github.com/teranos/autojson/logger"
)

func main() {
	// Cancel an in-flight package load on Ctrl+C so the guard is released
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	logger.Cleanup()
	os.Exit(code)
}
