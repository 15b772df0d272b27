package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func AskCmd() *cobra.Command {
	var (
		tenantID string
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask a question",
		Long:  "Send a customer message to the answer engine and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, tenantID, strings.Join(args, " "), debug)
		},
	}

	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "Tenant ID (required)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Show the decision debug headers")
	cmd.Flags().String("api-url", "", "Server base URL (overrides FAQLINE_API_URL)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

type askResponseData struct {
	Answer    string   `json:"answer"`
	NextSteps []string `json:"next_steps"`
}

func runAsk(cmd *cobra.Command, tenantID, message string, debug bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, headers, err := api.Post("/ask", map[string]string{
		"tenant_id": tenantID,
		"message":   message,
	})
	if err != nil {
		return err
	}

	var data askResponseData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	fmt.Println(data.Answer)
	for _, step := range data.NextSteps {
		fmt.Printf("  next: %s\n", step)
	}

	if debug {
		fmt.Println()
		for _, name := range []string{
			"x-debug-branch",
			"x-faq-hit",
			"x-retrieval-score",
			"x-retrieval-delta",
			"x-top-faq-id",
			"x-disambiguated",
		} {
			fmt.Printf("%s: %s\n", name, headers.Get(name))
		}
	}

	return nil
}
