package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"emfpager/internal/app"
	"emfpager/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd(runApp)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func runApp(ctx context.Context, cfgm *config.Manager) error {
	a, err := app.New(cfgm)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
