package importer

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// Canonical column names of an import row.
const (
	colDataset         = "dataset"
	colFilename        = "filename"
	colAnnotator       = "annotator"
	colConfiguration   = "configuration"
	colIsBox           = "is_box"
	colStartDatetime   = "start_datetime"
	colEndDatetime     = "end_datetime"
	colMinFrequency    = "min_frequency"
	colMaxFrequency    = "max_frequency"
	colLabel           = "label"
	colConfidenceLabel = "confidence_indicator_label"
	colConfidenceLevel = "confidence_indicator_level"
)

// aliases maps accepted header names to canonical columns.
var aliases = map[string]string{
	"dataset":                    colDataset,
	"filename":                   colFilename,
	"dataset_file":               colFilename,
	"annotator":                  colAnnotator,
	"detector":                   colAnnotator,
	"detector_config":            colConfiguration,
	"configuration":              colConfiguration,
	"is_box":                     colIsBox,
	"start_datetime":             colStartDatetime,
	"end_datetime":               colEndDatetime,
	"min_frequency":              colMinFrequency,
	"start_frequency":            colMinFrequency,
	"max_frequency":              colMaxFrequency,
	"end_frequency":              colMaxFrequency,
	"annotation":                 colLabel,
	"label":                      colLabel,
	"confidence_indicator_label": colConfidenceLabel,
	"confidence_indicator":       colConfidenceLabel,
	"confidence_indicator_level": colConfidenceLevel,
}

// Row is one data row keyed by canonical column.
type Row map[string]string

// Get returns the trimmed value of a column.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// ParseCSV reads a header-first CSV. Unknown columns are ignored.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Fields(errors.NonFieldKey, errors.CodeRequired, "The import file is empty.")
	}
	if err != nil {
		return nil, parseError(err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[i] = aliases[name]
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError(err)
		}
		if blank(record) {
			continue
		}
		row := make(Row, len(columns))
		for i, value := range record {
			if i < len(columns) && columns[i] != "" {
				row[columns[i]] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseError(err error) error {
	return errors.New(err).
		Category(errors.CategoryFileParsing).
		Context("operation", "parse_import_csv").
		Build()
}
