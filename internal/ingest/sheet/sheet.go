// Package sheet turns uploaded CSV or XLSX files into raw delivery rows.
//
// Both formats follow the same rules: rows whose first cell starts with "#"
// are guidance and skipped, anything above the header row (the project
// banner) is skipped, header cells are matched by label, field key or legacy
// alias regardless of case, and rows with no content are dropped.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"sitecarbon/internal/ingest/models"
	"sitecarbon/internal/template"
)

// Format is an upload file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	ErrNoHeader          = errors.New("header row not found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// minHeaderMatches is how many recognised cells make a record the header row.
const minHeaderMatches = 2

// Parser reads upload files. The zero value uses the standard column names.
type Parser struct {
	mapping map[string]string
}

type Option func(*Parser)

// WithColumn maps a field key to a header used in the file, for uploads whose
// headers do not follow the template.
func WithColumn(key, header string) Option {
	return func(p *Parser) {
		if p.mapping == nil {
			p.mapping = make(map[string]string)
		}
		p.mapping[normalize(header)] = key
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Detect picks a format from the file content, falling back to the file
// extension when the content is ambiguous.
func Detect(data []byte, filename string) (Format, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is(xlsxMIME):
		return FormatXLSX, nil
	case mt.Is("text/csv"), mt.Is("text/plain"):
		return FormatCSV, nil
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		if mt.Is("application/zip") {
			return FormatXLSX, nil
		}
	case ".csv", ".txt":
		if len(data) == 0 {
			return FormatCSV, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
}

// Parse reads data in the given format.
func (p *Parser) Parse(data []byte, format Format) ([]models.RawRow, error) {
	switch format {
	case FormatCSV:
		return p.ParseCSV(bytes.NewReader(data))
	case FormatXLSX:
		return p.ParseXLSX(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ParseCSV reads comma-separated text. Quoted fields may contain commas,
// quotes and line breaks.
func (p *Parser) ParseCSV(r io.Reader) ([]models.RawRow, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return p.Rows(records)
}

// ParseXLSX reads the first worksheet of a workbook.
func (p *Parser) ParseXLSX(r io.Reader) ([]models.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return p.Rows(records)
}

// Rows maps already-split records onto raw rows.
func (p *Parser) Rows(records [][]string) ([]models.RawRow, error) {
	headerAt, keys := -1, []string(nil)
	for i, rec := range records {
		if template.IsComment(rec) {
			continue
		}
		if k, n := p.headerKeys(rec); n >= minHeaderMatches {
			headerAt, keys = i, k
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrNoHeader
	}

	var rows []models.RawRow
	for _, rec := range records[headerAt+1:] {
		if template.IsComment(rec) {
			continue
		}
		var row models.RawRow
		for i, key := range keys {
			if key == "" || i >= len(rec) {
				continue
			}
			row.Set(key, strings.TrimSpace(rec[i]))
		}
		if row.IsBlank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// headerKeys maps each cell to a field key. Unknown and repeated columns map
// to "".
func (p *Parser) headerKeys(rec []string) ([]string, int) {
	keys := make([]string, len(rec))
	seen := make(map[string]bool, len(rec))
	matched := 0
	for i, cell := range rec {
		key, ok := p.lookup(cell)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys[i] = key
		matched++
	}
	return keys, matched
}

func (p *Parser) lookup(cell string) (string, bool) {
	n := normalize(cell)
	if n == "" {
		return "", false
	}
	if key, ok := p.mapping[n]; ok {
		return key, true
	}
	key, ok := headerIndex[n]
	return key, ok
}

var headerIndex = func() map[string]string {
	m := make(map[string]string)
	for _, c := range models.Columns {
		m[normalize(c.Label)] = c.Key
		m[normalize(c.Key)] = c.Key
		for _, a := range c.Aliases {
			m[normalize(a)] = c.Key
		}
	}
	return m
}()

func normalize(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	return strings.Join(strings.Fields(s), " ")
}
