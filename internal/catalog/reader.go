package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Encodings accepted for CSV catalogs.
const (
	EncodingUTF8        = "utf8"
	EncodingWindows1252 = "windows1252"
)

type ReadOptions struct {
	Delimiter rune
	Encoding  string
}

// ReadFile reads a .csv/.txt or .xlsx catalog file.
func ReadFile(path string, opts ReadOptions) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(file)
	case ".csv", ".txt", ".tsv":
		return ReadCSV(file, opts)
	default:
		return nil, fmt.Errorf("unsupported catalog file type %q", filepath.Ext(path))
	}
}

// ReadCSV parses a delimited catalog. Every column is read as text so UPCs
// keep their leading zeros.
func ReadCSV(r io.Reader, opts ReadOptions) ([]Record, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if strings.EqualFold(opts.Encoding, EncodingWindows1252) {
		r = charmap.Windows1252.NewDecoder().Reader(r)
	}

	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(opts.Delimiter),
		dataframe.WithLazyQuotes(true),
		dataframe.DetectTypes(false),
	)
	if err := df.Error(); err != nil {
		if strings.Contains(err.Error(), "empty DataFrame") {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if df.Nrow() == 0 {
		return nil, ErrEmptyFile
	}

	cols := resolveColumns(df.Names())
	if _, ok := cols["upc"]; !ok {
		return nil, fmt.Errorf("catalog has no upc column (headers: %s)", strings.Join(df.Names(), ", "))
	}

	records := make([]Record, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		records = append(records, DfRowToRecord(df, i, cols))
	}
	return records, nil
}

// ReadXLSX parses the first sheet of a workbook; the first row is the
// header.
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	cols := resolveColumns(rows[0])
	if _, ok := cols["upc"]; !ok {
		return nil, fmt.Errorf("catalog has no upc column (headers: %s)", strings.Join(rows[0], ", "))
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		records = append(records, RowToRecord(row, cols))
	}
	return records, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
