package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/wolfeidau/orgpurge/cmd/orgpurge/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug            bool    `help:"Enable debug mode."`
		LogLevel         string  `help:"log level override (debug, info, warn, error)" default:"" env:"LOG_LEVEL"`
		Tracing          bool    `help:"enable tracing and metrics export" default:"false" env:"ORGPURGE_TRACING"`
		TraceSampleRatio float64 `help:"fraction of root traces sampled" default:"1" env:"ORGPURGE_TRACE_SAMPLE_RATIO"`
		Version          kong.VersionFlag

		Invoke    commands.InvokeCmd    `cmd:"" help:"Invoke a single unit of work with a JSON payload"`
		Workflow  commands.WorkflowCmd  `cmd:"" help:"Run organization deletion workflows"`
		Worker    commands.WorkerCmd    `cmd:"" help:"Run a queue consumer"`
		Bootstrap commands.BootstrapCmd `cmd:"" help:"Create queues, topic, buckets and table for a stage (LocalStack)"`
		Migrate   commands.MigrateCmd   `cmd:"" help:"Apply the reference schema to the relational store"`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:            cli.Debug,
		LogLevel:         cli.LogLevel,
		Tracing:          cli.Tracing,
		TraceSampleRatio: cli.TraceSampleRatio,
		Version:          version,
	})
	cmd.FatalIfErrorf(err)
}
