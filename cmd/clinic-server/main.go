package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/carepoint/clinic/internal/config"
	"github.com/carepoint/clinic/internal/domain/triage"
	"github.com/carepoint/clinic/internal/platform/db"
	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic decision support API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(assessCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// withMigrator loads config, opens a pool and hands a migrator for dir to fn.
func withMigrator(dir string, fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			out := cmd.OutOrStdout()

			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				fmt.Fprintf(out, "Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			out := cmd.OutOrStdout()

			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(out, schema, statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinic tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create and migrate a tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			schema, err := db.SchemaFor(name)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Creating tenant schema: %s\n", schema)
			n, err := db.CreateTenantSchema(ctx, pool, name, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Tenant created, %d migration(s) applied.\n", n)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func assessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Classify vital signs offline",
	}

	vitalsCmd := &cobra.Command{
		Use:   "vitals",
		Short: "Assess a single set of vital signs and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := readingFromFlags(cmd)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(vitals.Assess(r))
		},
	}
	f := vitalsCmd.Flags()
	f.Float64("temp", 0, "Temperature in degrees Celsius")
	f.Int("sys", 0, "Systolic blood pressure (mmHg)")
	f.Int("dia", 0, "Diastolic blood pressure (mmHg)")
	f.Int("hr", 0, "Heart rate (bpm)")
	f.Float64("weight", 0, "Weight in kg")
	f.Float64("height", 0, "Height in cm")
	cmd.AddCommand(vitalsCmd)

	sheetCmd := &cobra.Command{
		Use:   "sheet",
		Short: "Assess every row of a triage workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			if in == "" || out == "" {
				return fmt.Errorf("--in and --out are required")
			}
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			result, err := triage.AssessWorkbook(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("assess %s: %w", in, err)
			}
			if err := os.WriteFile(out, result, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	sheetCmd.Flags().String("in", "", "Input .xlsx workbook")
	sheetCmd.Flags().String("out", "", "Output .xlsx workbook")
	cmd.AddCommand(sheetCmd)

	return cmd
}

// readingFromFlags leaves a measurement nil unless its flag was given.
func readingFromFlags(cmd *cobra.Command) vitals.Reading {
	f := cmd.Flags()
	floatFlag := func(name string) *float64 {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetFloat64(name)
		return &v
	}
	intFlag := func(name string) *int {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetInt(name)
		return &v
	}
	return vitals.Reading{
		TemperatureC: floatFlag("temp"),
		Systolic:     intFlag("sys"),
		Diastolic:    intFlag("dia"),
		HeartRate:    intFlag("hr"),
		WeightKg:     floatFlag("weight"),
		HeightCm:     floatFlag("height"),
	}
}
