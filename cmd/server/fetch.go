package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rl1809/invsnap/internal/adapter/handler"
	"github.com/rl1809/invsnap/internal/config"
	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/service"
)

func newFetchCommand(rootOpts *rootOptions) *cobra.Command {
	var withItems bool

	cmd := &cobra.Command{
		Use:   "fetch <marketplace>",
		Short: "Take one snapshot and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mp, err := domain.ParseMarketplace(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(rootOpts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
			sources, err := buildSources(cfg, logger)
			if err != nil {
				return err
			}

			opts := serviceOptions(cfg, logger)
			opts.QueueSize = 0
			svc := service.NewSnapshotService(sources, nil, nil, opts)
			defer svc.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			snap, err := svc.FetchFullState(ctx, mp)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(handler.NewSnapshotView(snap, withItems))
		},
	}

	cmd.Flags().BoolVar(&withItems, "items", false, "include every lot in the output")

	return cmd
}
