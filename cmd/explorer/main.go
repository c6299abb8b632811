package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agmipx/pkg/contracts"
)

func main() {
	root := &cobra.Command{
		Use:     "explorer",
		Short:   "Explore and reshape AgMIP model output",
		Version: contracts.GetFullVersionString(),
	}
	root.PersistentFlags().String("config", "", "config file (yaml or toml)")
	root.PersistentFlags().String("log-level", "", "override the configured log level")
	root.SilenceUsage = true

	addCommands(root)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
