package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/knowctx/internal/cli"
	"github.com/cloo-solutions/knowctx/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "knowctx",
		Short: "knowctx CLI - retrieval and generation context from your knowledge base",
		Long: `knowctx talks to a knowctxd server to retrieve knowledge, resolve post
structures and prepare bounded generation contexts.

Environment variables:
  KNOWCTX_ORG_ID   Organization id (required)
  KNOWCTX_USER_ID  User id for user-scoped knowledge
  KNOWCTX_API_URL  API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	client.AddFlags(rootCmd)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.RetrieveCmd())
	rootCmd.AddCommand(client.StructureCmd())
	rootCmd.AddCommand(client.ContextCmd())
	rootCmd.AddCommand(client.TraceCmd())
	rootCmd.AddCommand(client.LogsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
