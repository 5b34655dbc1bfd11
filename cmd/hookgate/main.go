package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/doeshing/hookgate/internal/infrastructure/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, rt, err := cli.NewRootCmd(cli.Options{Verbose: isVerbose()})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	execErr := root.ExecuteContext(ctx)
	if err := rt.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: audit flush:", err)
	}
	if execErr != nil {
		fmt.Fprintln(os.Stderr, "error:", execErr)
		return 1
	}
	return 0
}

func isVerbose() bool {
	return strings.EqualFold(os.Getenv("HOOKGATE_DEBUG"), "1") || strings.EqualFold(os.Getenv("HOOKGATE_DEBUG"), "true")
}
