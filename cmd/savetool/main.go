// Package main provides the saveline operator command for inspecting,
// exporting, deleting, and pruning campaign saves.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	platformcmd "github.com/eldermoor/saveline/internal/platform/cmd"
	"github.com/eldermoor/saveline/internal/platform/config"
	"github.com/eldermoor/saveline/internal/tools/savetool"
)

func main() {
	cfg, err := savetool.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceSavetool, func(ctx context.Context) error {
		return savetool.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	if err != nil {
		config.Exitf("Error: %v", err)
	}
}
