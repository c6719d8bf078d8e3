package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/routebench/pkg/protocol"
	"github.com/pario-ai/routebench/pkg/suites"
)

func newServeCmd(configPath *string) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Speak the JSON command/event protocol over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			// stdout carries protocol events only.
			log.SetOutput(os.Stderr)

			weights := a.cfg.Recommend.Weights
			srv := protocol.New(protocol.Options{
				Client:       a.client,
				Catalog:      a.catalog,
				Suites:       a.suites,
				History:      a.history,
				HistoryLimit: a.cfg.History.MaxItems,
				Credentials:  protocol.NewMemoryCredentials(a.cfg.API.APIKey),
				Router:       a.router,
				Runner:       a.runnerOptions(),
				Recommend:    a.recommendOptions(),
				DefaultSuite: a.cfg.Recommend.Suite,
				Weights:      &weights,
			})

			ctx, stop := signalContext()
			defer stop()

			if watch {
				if err := a.suites.Watch(ctx, suites.DefaultDebounce, srv.NotifySuites); err != nil {
					log.Printf("suites: watch disabled: %v", err)
				}
			}

			log.Printf("routebench protocol server ready (config: %s)", *configPath)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "push a suites event when the custom suite file changes")
	return cmd
}
