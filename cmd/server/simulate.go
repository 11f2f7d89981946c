package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/simulator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	opts := simulator.DefaultOptions()
	var (
		backendURL string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate calls and play agents against a running router",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				level = zerolog.InfoLevel
			}
			zerolog.SetGlobalLevel(level)
			logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
				With().
				Str("service", "callsim").
				Logger()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().Str("backend_url", backendURL).Int("agents", opts.Agents).Msg("starting simulator")
			return simulator.New(simulator.NewClient(backendURL), opts, logger).Run(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&backendURL, "backend-url", "http://localhost:8080", "router base URL")
	f.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.IntVar(&opts.Agents, "agents", opts.Agents, "number of agents to register")
	f.Float64Var(&opts.CallsPerMin, "calls-per-min", opts.CallsPerMin, "call arrival rate")
	f.DurationVar(&opts.HandleTime, "handle-time", opts.HandleTime, "mean call handle time")
	f.DurationVar(&opts.Patience, "patience", opts.Patience, "mean wait before an impatient caller hangs up")
	f.Float64Var(&opts.AbandonRate, "abandon-rate", opts.AbandonRate, "share of queued callers that hang up")
	f.DurationVar(&opts.PollInterval, "poll", opts.PollInterval, "agent poll interval")
	f.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	return cmd
}
