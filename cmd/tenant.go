package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	tenantDatamodel "github.com/frahmantamala/evaluation-sync/internal/core/datamodel/tenant"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Tenant administration",
}

var createTenantCmd = &cobra.Command{
	Use:   "create [id] [name]",
	Short: "Register a tenant",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		t := &tenantDatamodel.Tenant{
			ID:           args[0],
			Name:         args[1],
			Status:       tenantDatamodel.StatusActive,
			MaxEmployees: tenantMaxEmployees,
		}
		if tenantExpiresIn > 0 {
			expires := time.Now().Add(tenantExpiresIn)
			t.ExpiresAt = &expires
		}
		if err := deps.Tenants.Create(context.Background(), t); err != nil {
			return fmt.Errorf("create tenant: %w", err)
		}
		fmt.Printf("tenant %s created\n", t.ID)
		return nil
	},
}

var setTenantStatusCmd = &cobra.Command{
	Use:       "set-status [id] [active|suspended|expired]",
	Short:     "Change a tenant's status",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{tenantDatamodel.StatusActive, tenantDatamodel.StatusSuspended, tenantDatamodel.StatusExpired},
	RunE: func(_ *cobra.Command, args []string) error {
		switch args[1] {
		case tenantDatamodel.StatusActive, tenantDatamodel.StatusSuspended, tenantDatamodel.StatusExpired:
		default:
			return fmt.Errorf("unknown status %q", args[1])
		}

		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		if err := deps.Tenants.UpdateStatus(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("update tenant status: %w", err)
		}
		fmt.Printf("tenant %s is now %s\n", args[0], args[1])
		return nil
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "token [id]",
	Short: "Issue a service token for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		if deps.Issuer == nil {
			return fmt.Errorf("directory.service_token_secret is not configured")
		}
		token, err := deps.Issuer.Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var (
	tenantMaxEmployees int
	tenantExpiresIn    time.Duration
)

func init() {
	createTenantCmd.Flags().IntVar(&tenantMaxEmployees, "max-employees", 0, "employee quota, 0 for unlimited")
	createTenantCmd.Flags().DurationVar(&tenantExpiresIn, "expires-in", 0, "subscription length, 0 for no expiry")

	tenantCmd.AddCommand(createTenantCmd)
	tenantCmd.AddCommand(setTenantStatusCmd)
	tenantCmd.AddCommand(issueTokenCmd)

	rootCmd.AddCommand(tenantCmd)
}
