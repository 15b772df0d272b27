package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func PublishCmd() *cobra.Command {
	var (
		tenantID string
		file     string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a tenant's FAQ item set",
		Long:  "Replace the tenant's FAQ items with the set read from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, tenantID, file)
		},
	}

	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "Tenant ID (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with {\"items\": [...]} (required)")
	cmd.Flags().String("api-url", "", "Server base URL (overrides FAQLINE_API_URL)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

type publishResponseData struct {
	Items        int `json:"items"`
	JobsEnqueued int `json:"jobs_enqueued"`
}

func runPublish(cmd *cobra.Command, tenantID, file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read items file: %w", err)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid items file: %w", err)
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, _, err := api.Post("/tenants/"+tenantID+"/publish", body)
	if err != nil {
		return err
	}

	var data publishResponseData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Published %d items (%d embedding jobs enqueued)\n", data.Items, data.JobsEnqueued)
	return nil
}
