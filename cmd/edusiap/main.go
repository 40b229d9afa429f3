package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/denismitr/edusiap/internal/cli"
	"github.com/denismitr/edusiap/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand(os.Stdout, cli.BuildInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	})
	if err := cli.Execute(ctx, cmd); err != nil {
		fmt.Fprintf(os.Stderr, "edusiap: %v\n", err)

		var withExitCode interface{ ExitCode() int }
		if errors.As(err, &withExitCode) {
			stop()
			os.Exit(withExitCode.ExitCode())
		}
		stop()
		os.Exit(1)
	}
}
