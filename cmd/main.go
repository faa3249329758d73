package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"antiposta.dev/testserver/internal/interfaces/cli"
	"antiposta.dev/testserver/internal/interfaces/di"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		// The command shuts the server down once ctx is done
		cancel()
	}()

	cli.Execute(ctx, di.NewCLIContainer())
}
