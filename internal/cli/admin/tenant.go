package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/faqline/faqline/internal/config"
	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/repository"
)

func TenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
		Long:  "Create and list tenants, manage capability blocklists",
	}

	cmd.AddCommand(TenantCreateCmd())
	cmd.AddCommand(TenantListCmd())
	cmd.AddCommand(TenantBlockCmd())
	cmd.AddCommand(TenantBackfillCmd())

	return cmd
}

func TenantCreateCmd() *cobra.Command {
	var blocked []string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new tenant",
		Long:  "Create a new tenant with the specified name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runTenantCreate(args[0], blocked, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().StringSliceVar(&blocked, "block", nil, "Services the tenant does not offer (repeatable)")

	return cmd
}

func runTenantCreate(name string, blocked []string, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenant := &domain.Tenant{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(name),
		BlockedServices: blocked,
	}
	if tenant.Name == "" {
		return fmt.Errorf("tenant name cannot be empty")
	}

	repo := repository.NewTenantRepository(pool)
	if err := repo.Create(ctx, tenant); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":               tenant.ID,
			"name":             tenant.Name,
			"blocked_services": tenant.BlockedServices,
			"created_at":       tenant.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Tenant created: %s (%s)\n", tenant.Name, tenant.ID)
	}

	return nil
}

func TenantListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all tenants",
		Long:  "List all tenants in the system",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runTenantList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runTenantList(outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := repository.NewTenantRepository(pool)
	tenants, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(tenants))
		for i, t := range tenants {
			data[i] = map[string]interface{}{
				"id":               t.ID,
				"name":             t.Name,
				"blocked_services": t.BlockedServices,
				"created_at":       t.CreatedAt,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(tenants) == 0 {
			fmt.Println("No tenants found")
			return nil
		}
		fmt.Println("Tenants:")
		for _, t := range tenants {
			fmt.Printf("  %s: %s (created: %s)\n", t.ID, t.Name, t.CreatedAt.Format("2006-01-02 15:04:05"))
			if len(t.BlockedServices) > 0 {
				fmt.Printf("    blocked: %s\n", strings.Join(t.BlockedServices, ", "))
			}
		}
	}

	return nil
}

func TenantBlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block <tenant-id> [service...]",
		Short: "Replace a tenant's capability blocklist",
		Long:  "Replace the list of services the tenant does not offer; pass no services to clear it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTenantBlock(args[0], args[1:])
		},
	}

	return cmd
}

func runTenantBlock(tenantID string, services []string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := repository.NewTenantRepository(pool)
	if err := repo.SetBlockedServices(ctx, tenantID, services); err != nil {
		return fmt.Errorf("failed to update blocklist: %w", err)
	}

	if len(services) == 0 {
		fmt.Printf("Blocklist cleared for tenant %s\n", tenantID)
	} else {
		fmt.Printf("Blocklist for tenant %s: %s\n", tenantID, strings.Join(services, ", "))
	}
	return nil
}

func TenantBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill <tenant-id>",
		Short: "Re-enqueue embedding jobs for items missing vectors",
		Long:  "Enqueue backfill jobs for every enabled item of the tenant that has no embedding yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTenantBackfill(args[0])
		},
	}

	return cmd
}

func runTenantBackfill(tenantID string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)
	if _, err := tenantRepo.GetByID(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to resolve tenant: %w", err)
	}

	itemRepo := repository.NewFAQItemRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)

	items, err := itemRepo.ListMissingEmbeddings(ctx, tenantID, 0)
	if err != nil {
		return fmt.Errorf("failed to list items missing embeddings: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("All items already have embeddings")
		return nil
	}

	for _, item := range items {
		job := &domain.EmbeddingJob{
			ID:       uuid.NewString(),
			ItemID:   item.ID,
			TenantID: tenantID,
			Status:   domain.EmbeddingJobStatusPending,
		}
		if err := jobRepo.Create(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue job for item %s: %w", item.ID, err)
		}
	}

	fmt.Printf("Enqueued %d embedding jobs for tenant %s\n", len(items), tenantID)
	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
