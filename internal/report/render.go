package report

import (
	"bufio"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// Content types of the rendered tables.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteCSV writes the table with values joined by commas and rows ended by
// newlines. Values are not quoted, so they must not contain commas.
func WriteCSV(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(t.Header, ",") + "\n"); err != nil {
		return renderError(err, "csv")
	}
	for _, row := range t.Rows {
		if _, err := bw.WriteString(strings.Join(row, ",") + "\n"); err != nil {
			return renderError(err, "csv")
		}
	}
	if err := bw.Flush(); err != nil {
		return renderError(err, "csv")
	}
	return nil
}

// WriteXLSX writes the table as a single sheet workbook.
func WriteXLSX(w io.Writer, t *Table, sheet string) error {
	if err := writeXLSX(w, t, sheet); err != nil {
		return renderError(err, "xlsx")
	}
	return nil
}

func writeXLSX(w io.Writer, t *Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	if err := f.SetSheetRow(sheet, "A1", &t.Header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func renderError(err error, format string) error {
	return errors.New(err).
		Category(errors.CategoryReport).
		Context("operation", "render_report").
		Context("format", format).
		Build()
}
