package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/iudanet/tgbridge/internal/admin/cli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCommand(cli.NewApp(fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit)))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
