package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/knowctx/internal/cli"
	"github.com/cloo-solutions/knowctx/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "knowctxd",
		Short: "knowctx server and maintenance commands",
		Long:  "knowctxd runs the retrieval API, applies database migrations and loads knowledge files",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.IngestCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
