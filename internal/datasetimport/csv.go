package datasetimport

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// timestampLayouts are the timestamp spellings found in dataset folders.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// record is a CSV row keyed by lower-cased header.
type record map[string]string

func (r record) str(column string) string {
	return strings.TrimSpace(r[column])
}

// readCSV reads a header-first CSV file of fsys.
func readCSV(fsys fs.FS, name string) ([]record, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("file", name).
			Build()
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, parseError(name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	records := make([]record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(record, len(header))
		for i, v := range row {
			if i < len(header) {
				rec[header[i]] = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// require checks that every column is present in the first record.
func require(name string, records []record, columns ...string) error {
	if len(records) == 0 {
		return parseError(name, errors.NewStd("no data row"))
	}
	for _, c := range columns {
		if _, ok := records[0][c]; !ok {
			return parseError(name, fmt.Errorf("missing column %q", c))
		}
	}
	return nil
}

func parseFloat(name, column, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, parseError(name, fmt.Errorf("column %s: %q is not a number", column, raw))
	}
	return v, nil
}

func parseInt(name, column, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, parseError(name, fmt.Errorf("column %s: %q is not a number", column, raw))
	}
	return int(v), nil
}

func parseTimestamp(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, parseError(name, fmt.Errorf("%q is not a valid timestamp", raw))
}

func parseError(name string, err error) error {
	return errors.New(err).
		Category(errors.CategoryFileParsing).
		Context("file", name).
		Build()
}
