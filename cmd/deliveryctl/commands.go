package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	catalogstore "sitecarbon/internal/catalog/store"
	ingesthandler "sitecarbon/internal/ingest/handler"
	"sitecarbon/internal/platform/postgres"
	"sitecarbon/internal/reconcile/handler"
	id "sitecarbon/pkg/domain"
	"sitecarbon/pkg/requestcontext"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg.DatabaseURL == "" {
				return errNoDatabase
			}
			db, err := postgres.Open(cmd.Context(), e.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "schema applied")
			return nil
		},
	}
}

func newSeedCmd(e *env) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert a demo reference catalog for one project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pid := id.ProjectID(uuid.New())
			if projectID != "" {
				var err error
				if pid, err = id.ParseProjectID(projectID); err != nil {
					return fmt.Errorf("invalid --project: %w", err)
				}
			}
			if e.cfg.DatabaseURL == "" {
				return errNoDatabase
			}
			db, err := postgres.Open(cmd.Context(), e.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := catalogstore.NewPostgres(db).Seed(cmd.Context(), catalogstore.DemoSeed(pid)); err != nil {
				return err
			}
			return e.writeJSON(map[string]string{"project_id": pid.String()})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project UUID (generated when omitted)")
	return cmd
}

func newTemplateCmd(e *env) *cobra.Command {
	var projectID, format, out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the delivery upload template for a project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pid, err := id.ParseProjectID(projectID)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var body []byte
			switch strings.ToLower(format) {
			case "csv":
				text, err := a.Templates.CSV(cmd.Context(), pid)
				if err != nil {
					return err
				}
				body = []byte(text)
			case "xlsx":
				if body, err = a.Templates.XLSX(cmd.Context(), pid); err != nil {
					return err
				}
			default:
				return fmt.Errorf("--format must be csv or xlsx, got %q", format)
			}

			if out == "" || out == "-" {
				_, err = e.out.Write(body)
				return err
			}
			return os.WriteFile(out, body, 0o644)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project UUID (required)")
	cmd.Flags().StringVar(&format, "format", "csv", "Template format: csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when omitted)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newUploadCmd(e *env) *cobra.Command {
	var projectID, mapping string
	var preview bool
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a CSV or XLSX delivery file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := id.ParseProjectID(projectID)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			cols, err := ingesthandler.ParseMapping(mapping)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rows, err := ingesthandler.ParseFile(data, filepath.Base(args[0]), cols)
			if err != nil {
				return err
			}

			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := requestcontext.WithRequestID(cmd.Context(), "cli-"+uuid.NewString())
			if preview {
				res, err := a.Ingest.Preview(ctx, pid, rows)
				if err != nil {
					return err
				}
				return e.writeJSON(ingesthandler.FromPreview(res))
			}
			result, err := a.Ingest.Upload(ctx, pid, rows)
			if werr := e.writeJSON(result); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project UUID (required)")
	cmd.Flags().StringVar(&mapping, "mapping", "", `Extra header mapping as JSON, e.g. {"Supplier Name":"supplier"}`)
	cmd.Flags().BoolVar(&preview, "preview", false, "Resolve rows without storing them")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newPendingCmd(e *env) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List raw deliveries awaiting reconciliation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pid, err := id.ParseProjectID(projectID)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			raws, err := a.Reconcile.List(cmd.Context(), pid)
			if err != nil {
				return err
			}
			return e.writeJSON(handler.FromRawDeliveries(raws))
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project UUID (required)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newResolveCmd(e *env) *cobra.Command {
	var req handler.ResolveRequest
	cmd := &cobra.Command{
		Use:   "resolve RAW_DELIVERY_ID",
		Short: "Promote a raw delivery using operator supplied references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawID, err := id.ParseRawDeliveryID(args[0])
			if err != nil {
				return err
			}
			req.Normalize()
			if err := req.Validate(); err != nil {
				return err
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := requestcontext.WithRequestID(cmd.Context(), "cli-"+uuid.NewString())
			delivery, err := a.Reconcile.Resolve(ctx, rawID, req.Resolution())
			if err != nil {
				return err
			}
			return e.writeJSON(handler.ResolveResponse{Success: true, Delivery: delivery})
		},
	}
	cmd.Flags().StringVar(&req.ContractorID, "contractor", "", "Contractor UUID")
	cmd.Flags().StringVar(&req.LocationID, "location", "", "Design package (location) UUID")
	cmd.Flags().StringVar(&req.CostCodeID, "cost-code", "", "Cost code UUID")
	cmd.Flags().StringVar(&req.MaterialID, "material", "", "Material UUID")
	cmd.Flags().StringVar(&req.SupplierID, "supplier", "", "Supplier UUID")
	cmd.Flags().StringVar(&req.UnitID, "unit", "", "Unit UUID")
	cmd.Flags().StringVar(&req.DeliveryDate, "delivery-date", "", "Delivery date (YYYY-MM-DD), used when the uploaded date is missing or unreadable")
	return cmd
}
