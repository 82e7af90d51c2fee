// Package spreadsheet reads guest rosters from XLSX/CSV files and writes them back as XLSX.
package spreadsheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither XLSX nor CSV
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format, expected .xlsx or .csv")

// Table is an ordered set of rows keyed by header name
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// Import reads the first sheet of an XLSX file or a CSV file.
// Row 1 holds the headers; blank cells are omitted and blank rows skipped.
func Import(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	return ImportReader(f, filepath.Base(path))
}

// ImportReader is Import over an already opened stream; name selects the format
func ImportReader(r io.Reader, name string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return importXLSX(r)
	case ".csv":
		return importCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

func importXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return buildTable(rows), nil
}

func importCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	// Excel writes a UTF-8 BOM in front of CSV exports.
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}

	firstLine, _ := br.Peek(br.Buffered())
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if delimiter(firstLine) == ';' {
		cr.Comma = ';'
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	return buildTable(rows), nil
}

// delimiter picks ';' when the header line has more semicolons than commas
func delimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		return ';'
	}
	return ','
}

func buildTable(rows [][]string) *Table {
	t := &Table{Rows: make([]map[string]string, 0)}
	if len(rows) == 0 {
		return t
	}

	seen := make(map[string]bool)
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		if seen[h] {
			h = fmt.Sprintf("%s (%d)", h, i+1)
		}
		seen[h] = true
		t.Headers = append(t.Headers, h)
	}

	for _, row := range rows[1:] {
		item := make(map[string]string)
		for col, header := range t.Headers {
			if col < len(row) {
				if v := strings.TrimSpace(row[col]); v != "" {
					item[header] = v
				}
			}
		}
		if len(item) > 0 {
			t.Rows = append(t.Rows, item)
		}
	}
	return t
}
