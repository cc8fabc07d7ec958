package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// Extractor converts an uploaded byte stream (CSV, spreadsheet or PDF) into
// an ordered sequence of rows with canonical column names.
type Extractor struct {
	pdf PDFExtractor
}

func NewExtractor() *Extractor {
	return &Extractor{pdf: NewRealPDFExtractor()}
}

// NewExtractorWithPDF injects a PDFExtractor, used by tests.
func NewExtractorWithPDF(p PDFExtractor) *Extractor {
	return &Extractor{pdf: p}
}

// Extract dispatches by file extension and returns the data rows keyed by
// normalized header. An empty (but non-nil) slice means the parse succeeded
// structurally but produced no usable rows; that case is finalized by the
// orchestrator, not here.
func (e *Extractor) Extract(data []byte, filename, delimiter string) ([]Row, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		table, err := parseCSV(data, delimiter)
		if err != nil {
			return nil, err
		}
		return rowsFromTable(table), nil
	case ".xlsx":
		table, err := parseXLSX(data)
		if err != nil {
			return nil, err
		}
		return rowsFromTable(table), nil
	case ".xls":
		table, err := parseXLS(data)
		if err != nil {
			return nil, err
		}
		return rowsFromTable(table), nil
	case ".pdf":
		text, err := e.pdf.ExtractText(data)
		if err != nil {
			return nil, err
		}
		return rowsFromPDFText(text), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// parseCSV parses delimited text. Any delimiter that is not exactly one
// character is coerced to comma.
func parseCSV(data []byte, delimiter string) ([][]string, error) {
	comma := ','
	if utf8.RuneCountInString(delimiter) == 1 {
		comma, _ = utf8.DecodeRuneInString(delimiter)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error al leer CSV: %w", err)
	}
	return records, nil
}

// parseXLSX reads the first sheet, first row as header.
func parseXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error al abrir XLSX: %w", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("error al leer hoja XLSX: %w", err)
	}
	return rows, nil
}

func parseXLS(data []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error al abrir XLS: %w", err)
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, fmt.Errorf("error al leer hoja XLS: %v", err)
	}
	var table [][]string
	for _, xlsRow := range sheet.GetRows() {
		var vals []string
		for _, col := range xlsRow.GetCols() {
			vals = append(vals, col.GetString())
		}
		table = append(table, vals)
	}
	return table, nil
}

// rowsFromTable normalizes the header row and maps each data row onto it.
// Blank rows are dropped; short rows are padded implicitly (missing cells
// simply stay absent from the Row).
func rowsFromTable(table [][]string) []Row {
	rows := []Row{}
	if len(table) == 0 {
		return rows
	}
	headers := make([]string, len(table[0]))
	for i, h := range table[0] {
		headers[i] = NormalizeHeader(h)
	}
	for _, record := range table[1:] {
		if isBlankRecord(record) {
			continue
		}
		row := Row{}
		for i, cell := range record {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			row[headers[i]] = cell
		}
		rows = append(rows, row)
	}
	return rows
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// Keywords that identify a genuine header line in a PDF table.
var pdfHeaderKeywords = []string{
	"rut", "cliente", "identificador", "instrumento", "mercado",
	"descripcion", "pais", "factor",
}

// rowsFromPDFText infers tabular structure from unstructured PDF text.
//
// Per line, column separation strategies are attempted in fixed priority
// order: a literal '|' delimiter, then runs of two or more whitespace
// characters, then the whole line as a single column. All rows are padded to
// the maximum column count observed so the result is rectangular. The first
// row is treated as a header only when at least two header keywords appear in
// its concatenated text; otherwise synthetic names (col_0, col_1, ...) are
// assigned and every row is data.
func rowsFromPDFText(text string) []Row {
	var table [][]string
	maxCols := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cells := splitPDFLine(line)
		if len(cells) > maxCols {
			maxCols = len(cells)
		}
		table = append(table, cells)
	}
	if len(table) == 0 {
		return []Row{}
	}
	for i, row := range table {
		for len(row) < maxCols {
			row = append(row, "")
		}
		table[i] = row
	}

	if pdfHeaderScore(table[0]) >= 2 {
		return rowsFromTable(table)
	}

	// No recognizable header: synthesize column names and keep all rows.
	synthetic := make([][]string, 0, len(table)+1)
	names := make([]string, maxCols)
	for i := range names {
		names[i] = fmt.Sprintf("col_%d", i)
	}
	synthetic = append(synthetic, names)
	synthetic = append(synthetic, table...)
	return rowsFromTable(synthetic)
}

func splitPDFLine(line string) []string {
	var parts []string
	if strings.Contains(line, "|") {
		parts = strings.Split(line, "|")
	} else if multiSpaceRe.MatchString(line) {
		parts = multiSpaceRe.Split(line, -1)
	} else {
		parts = []string{line}
	}
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

// pdfHeaderScore counts header keywords present in the concatenated first
// row.
func pdfHeaderScore(first []string) int {
	joined := strings.ToLower(strings.Join(first, " "))
	joined = accentReplacer.Replace(joined)
	count := 0
	for _, kw := range pdfHeaderKeywords {
		if strings.Contains(joined, kw) {
			count++
		}
	}
	return count
}
