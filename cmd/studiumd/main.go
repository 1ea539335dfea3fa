package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studiumlab/studium/internal/cli"
	"github.com/studiumlab/studium/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "studiumd",
		Short: "Studium daemon",
		Long:  "Studium daemon for running the module chat and document API server",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
