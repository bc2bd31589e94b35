// Package template renders the delivery upload template for a project. The
// template carries the project's reference lists as comment rows so the person
// filling it in can see which names will resolve.
package template

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	catalog "sitecarbon/internal/catalog/models"
	"sitecarbon/internal/ingest/models"
	id "sitecarbon/pkg/domain"
)

// CommentMarker starts every guidance row. Upload parsers skip rows whose
// first cell begins with it.
const CommentMarker = "#"

// SheetName is the worksheet used by the XLSX template.
const SheetName = "Deliveries"

// Example row values for the scalar columns.
const (
	ExampleDate        = "2024-01-15"
	ExampleDocket      = "DOC-12345"
	ExampleQuantity    = "125.5"
	ExampleTotalCost   = "15000"
	ExampleDescription = "High strength concrete for foundations"
	ExampleOrigin      = "2000"
)

// CatalogLoader loads the reference catalog for a project.
type CatalogLoader interface {
	Load(ctx context.Context, projectID id.ProjectID) (*catalog.Catalog, error)
}

type Generator struct {
	loader CatalogLoader
	logger *slog.Logger
}

type Option func(*Generator)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

func New(loader CatalogLoader, opts ...Option) *Generator {
	g := &Generator{loader: loader, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CSV renders the template as comma-separated text.
func (g *Generator) CSV(ctx context.Context, projectID id.ProjectID) (string, error) {
	cat, err := g.load(ctx, projectID)
	if err != nil {
		return "", err
	}
	return RenderCSV(Rows(cat))
}

// XLSX renders the template as a single-sheet workbook.
func (g *Generator) XLSX(ctx context.Context, projectID id.ProjectID) ([]byte, error) {
	cat, err := g.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return RenderXLSX(Rows(cat))
}

func (g *Generator) load(ctx context.Context, projectID id.ProjectID) (*catalog.Catalog, error) {
	cat, err := g.loader.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if missing := cat.UnavailableCategories(); len(missing) > 0 {
		g.logger.WarnContext(ctx, "template rendered with incomplete catalog",
			"project_id", projectID.String(),
			"unavailable", missing,
		)
	}
	return cat, nil
}

// Rows builds the template rows: banner, blank, guidance rows, blank, header,
// and an example row when every reference list has an entry.
func Rows(cat *catalog.Catalog) [][]string {
	rows := [][]string{
		{"Project:", cat.ProjectName()},
		{},
		guidance("Contractors", names(cat.Contractors, func(c catalog.Contractor) string { return c.Name })),
		guidance("Design Packages", names(cat.DesignPackages, func(d catalog.DesignPackage) string { return d.Name })),
		guidance("Cost Codes", names(cat.CostCodes, func(c catalog.CostCode) string { return c.Name })),
		guidance("Material Types", names(cat.MaterialTypes, func(t catalog.MaterialType) string { return t.Name })),
		guidance("Suppliers", names(cat.Suppliers, func(s catalog.Supplier) string { return s.Name })),
		guidance("Units", names(cat.Units, catalog.Unit.Label)),
		{},
		models.Labels(),
	}
	if cat.Complete() {
		rows = append(rows, exampleRow(cat))
	}
	return rows
}

// IsComment reports whether a row is a guidance row.
func IsComment(row []string) bool {
	return len(row) > 0 && strings.HasPrefix(strings.TrimSpace(row[0]), CommentMarker)
}

func guidance(title string, values []string) []string {
	row := make([]string, 0, len(values)+1)
	row = append(row, fmt.Sprintf("%s Available %s:", CommentMarker, title))
	return append(row, values...)
}

func names[T any](items []T, name func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = name(it)
	}
	return out
}

// exampleRow uses the first entry of each list. The first material's own
// supplier and type are preferred so the example resolves as written.
func exampleRow(cat *catalog.Catalog) []string {
	mat := cat.Materials[0]
	supplier := cat.Suppliers[0].Name
	for _, s := range cat.Suppliers {
		if s.ID == mat.SupplierID {
			supplier = s.Name
			break
		}
	}
	materialType := cat.MaterialTypes[0].Name
	for _, t := range cat.MaterialTypes {
		if t.ID == mat.MaterialTypeID {
			materialType = t.Name
			break
		}
	}
	unit := cat.Units[0].Symbol
	if unit == "" {
		unit = cat.Units[0].Name
	}

	row := models.RawRow{
		Contractor:          cat.Contractors[0].Name,
		DeliveryDate:        ExampleDate,
		DesignPackage:       cat.DesignPackages[0].Name,
		CostCode:            cat.CostCodes[0].Name,
		DocketNumber:        ExampleDocket,
		MaterialType:        materialType,
		Supplier:            supplier,
		Material:            mat.Name,
		Unit:                unit,
		Quantity:            ExampleQuantity,
		TotalCost:           ExampleTotalCost,
		MaterialDescription: ExampleDescription,
		Origin:              ExampleOrigin,
	}
	return row.Values()
}

// RenderCSV writes rows as CSV. Fields containing commas, quotes or line
// breaks are quoted.
func RenderCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("writing csv template: %w", err)
	}
	return buf.String(), nil
}

// RenderXLSX writes rows into the Deliveries sheet of a new workbook.
func RenderXLSX(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("naming template sheet: %w", err)
	}

	headerRow := 0
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return nil, fmt.Errorf("writing template row %d: %w", i+1, err)
		}
		if row[0] == models.Columns[0].Label {
			headerRow = i + 1
		}
	}

	if headerRow > 0 {
		style, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		})
		if err == nil {
			_ = f.SetRowStyle(SheetName, headerRow, headerRow, style)
		}
	}
	_ = f.SetColWidth(SheetName, "A", "A", 28)
	_ = f.SetColWidth(SheetName, "B", "M", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding xlsx template: %w", err)
	}
	return buf.Bytes(), nil
}
