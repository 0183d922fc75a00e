package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/evaluation-sync/internal/relationship"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync one tenant now",
	Long:  `Fetch the tenant's directory snapshot, replace its evaluation replica and regenerate relationships, then print the outcome as JSON`,
	RunE:  runSync,
}

var relationshipsCmd = &cobra.Command{
	Use:   "relationships",
	Short: "Relationship commands",
}

var exportRelationshipsCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a tenant's relationships to an xlsx workbook",
	RunE:  runExport,
}

var generateRelationshipsCmd = &cobra.Command{
	Use:   "generate",
	Short: "Regenerate a tenant's relationships from its current replica",
	RunE:  runGenerate,
}

var (
	tenantID   string
	exportPath string
	timeout    time.Duration
)

func runSync(_ *cobra.Command, _ []string) error {
	deps, err := initializeOneShotDependencies()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	outcome, err := deps.Sync.Sync(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("sync tenant %s: %w", tenantID, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}

func runGenerate(_ *cobra.Command, _ []string) error {
	deps, err := initializeOneShotDependencies()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rels, err := deps.Relationships.GenerateForTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("generate relationships for %s: %w", tenantID, err)
	}
	fmt.Printf("generated %d relationships for tenant %s\n", len(rels), tenantID)
	return nil
}

func runExport(_ *cobra.Command, _ []string) error {
	deps, err := initializeOneShotDependencies()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rels, names, err := deps.Relationships.Roster(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load relationships of %s: %w", tenantID, err)
	}

	path := exportPath
	if path == "" {
		path = fmt.Sprintf("relationships-%s.xlsx", tenantID)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := relationship.Export(f, rels, names); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Printf("wrote %d relationships to %s\n", len(rels), path)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{syncCmd, exportRelationshipsCmd, generateRelationshipsCmd} {
		c.Flags().StringVarP(&tenantID, "tenant", "t", "", "tenant id")
		c.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline")
		_ = c.MarkFlagRequired("tenant")
	}
	exportRelationshipsCmd.Flags().StringVarP(&exportPath, "out", "o", "", "output file (default relationships-<tenant>.xlsx)")

	relationshipsCmd.AddCommand(exportRelationshipsCmd)
	relationshipsCmd.AddCommand(generateRelationshipsCmd)

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(relationshipsCmd)
}
