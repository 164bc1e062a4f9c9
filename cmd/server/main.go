package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "invsnap",
		Short: "Race-free inventory snapshots for BrickLink and BrickOwl",
		Long: `invsnap downloads a seller's marketplace inventory together with a
fingerprint of the order list, and only hands out snapshots during which no
order arrived.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "invsnap.yaml", "path to the YAML config file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newFetchCommand(opts))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}
