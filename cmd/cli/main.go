package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ryoozeen/RCS/cmd/cli/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	command.Execute(ctx)
}
