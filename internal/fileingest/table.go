package fileingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"shipclass/internal/models"
	"shipclass/internal/util"
)

// Output columns appended to every classified table.
const (
	ColumnType     = "type"
	ColumnCategory = "category"
	ColumnID       = "id"
)

// DefaultSheet is the sheet name used when writing new workbooks.
const DefaultSheet = "Sheet1"

var ErrUnsupportedFormat = errors.New("unsupported table format")

// Format is a table file codec selected by extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf returns the codec for path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q (expected .csv or .xlsx)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Table is a flat header + rows view of the first (or selected) sheet of a file.
// Every row has exactly len(Headers) cells and no header is empty.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of header name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// RequireColumns checks that every name is a header of t. All absent columns
// are reported at once in a *models.MissingColumnError.
func (t *Table) RequireColumns(names []string) error {
	var missing []string
	for _, n := range names {
		if t.ColumnIndex(n) < 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &models.MissingColumnError{Missing: missing, Available: append([]string(nil), t.Headers...)}
}

// Records converts rows to records. offset is added to each 0-based row index.
func (t *Table) Records(offset int) []models.Record {
	records := make([]models.Record, len(t.Rows))
	for i, row := range t.Rows {
		fields := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			// First occurrence wins for duplicated headers.
			if _, dup := fields[h]; !dup {
				fields[h] = row[j]
			}
		}
		records[i] = models.Record{Index: offset + i, Fields: fields}
	}
	return records
}

// SetColumn writes values into column name, overwriting it in place when it
// already exists and appending it otherwise.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Headers = append(t.Headers, name)
		idx = len(t.Headers) - 1
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], "")
		}
	}
	for i, v := range values {
		t.Rows[i][idx] = v
	}
	return nil
}

// Annotate adds the type, category and id columns from labeled, which must be
// in row order.
func (t *Table) Annotate(labeled []models.LabeledRecord) error {
	types := make([]string, len(labeled))
	cats := make([]string, len(labeled))
	ids := make([]string, len(labeled))
	for i, lr := range labeled {
		types[i] = lr.Type
		cats[i] = lr.Category
		ids[i] = lr.Code
	}
	if err := t.SetColumn(ColumnType, types); err != nil {
		return err
	}
	if err := t.SetColumn(ColumnCategory, cats); err != nil {
		return err
	}
	return t.SetColumn(ColumnID, ids)
}

// Slice returns a table sharing headers with rows [start, end).
func (t *Table) Slice(start, end int) *Table {
	return &Table{Headers: t.Headers, Rows: t.Rows[start:end]}
}

// ReadTable loads path. sheet selects a workbook sheet; "" means the first one.
func ReadTable(path, sheet string) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	var raw [][]string
	switch format {
	case FormatCSV:
		raw, err = readCSV(path)
	case FormatXLSX:
		raw, err = readXLSX(path, sheet)
	}
	if err != nil {
		return nil, err
	}
	return newTable(raw), nil
}

// WriteTable stores t at path using the codec of its extension.
func WriteTable(path string, t *Table, sheet string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	switch format {
	case FormatCSV:
		return writeCSV(path, t)
	default:
		return writeXLSX(path, t, sheet)
	}
}

// newTable keeps every data row, blank ones included, so the output lines up
// with the input row for row. Columns are as wide as the widest row; a column
// without a header gets "Unnamed: <index>". Trailing columns that are empty in
// every row are dropped.
func newTable(raw [][]string) *Table {
	t := &Table{}
	if len(raw) == 0 {
		return t
	}

	width := 0
	for _, r := range raw {
		for j := len(r) - 1; j >= width; j-- {
			if strings.TrimSpace(r[j]) != "" {
				width = j + 1
				break
			}
		}
	}

	t.Headers = make([]string, width)
	for j := range t.Headers {
		if j < len(raw[0]) {
			t.Headers[j] = util.CleanCell(raw[0][j])
		}
		if t.Headers[j] == "" {
			t.Headers[j] = unnamedHeader(j)
		}
	}

	t.Rows = make([][]string, 0, len(raw)-1)
	for _, r := range raw[1:] {
		row := make([]string, width)
		for j := 0; j < width && j < len(r); j++ {
			row[j] = util.CleanCell(r[j])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func unnamedHeader(col int) string {
	return fmt.Sprintf("Unnamed: %d", col)
}

func readCSV(path string) ([][]string, error) {
	isBinary, err := util.IsLikelyBinary(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if isBinary {
		return nil, fmt.Errorf("%w: %s looks binary, not CSV", ErrUnsupportedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	// Cells are cleaned after parsing so typographic quotes never reach the CSV tokenizer.
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV %s: %w", path, err)
	}
	return rows, nil
}

func writeCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Headers); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnf("Failed to close workbook %s: %v", path, err)
		}
	}()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, path, err)
	}
	return rows, nil
}

func writeXLSX(path string, t *Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	name := DefaultSheet
	if sheet != "" && sheet != DefaultSheet {
		f.SetSheetName(DefaultSheet, sheet)
		name = sheet
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer for %s: %w", path, err)
	}
	if err := writeXLSXRow(sw, 1, t.Headers); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	for i, row := range t.Rows {
		if err := writeXLSXRow(sw, i+2, row); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func writeXLSXRow(sw *excelize.StreamWriter, rowNum int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return sw.SetRow(cell, values)
}
