package main

import (
	"fmt"
	"os"

	"github.com/faqline/faqline/internal/cli"
	"github.com/faqline/faqline/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "faqline",
		Short: "Faqline CLI - FAQ answering for small businesses",
		Long: `Faqline CLI talks to a running faqline server.

Environment variables:
  FAQLINE_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.PublishCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
