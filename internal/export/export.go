// Package export writes a device time series as a spreadsheet, one row
// per timestamp and one column per field.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"agrosense/internal/models"
)

const (
	SheetName       = "Sensor Data"
	TimestampColumn = "timestamp"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Table is the tabular form of a series. Missing readings are nil.
type Table struct {
	Columns []string
	Rows    [][]any
}

// BuildTable lays out points with the timestamp first, then every field in
// the order it first appears in the series
func BuildTable(points []models.DataPoint, loc *time.Location) Table {
	if loc == nil {
		loc = time.Local
	}

	columns := []string{TimestampColumn}
	index := map[string]int{}
	for _, p := range points {
		for _, k := range p.Readings.Keys() {
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
	}

	rows := make([][]any, 0, len(points))
	for _, p := range points {
		row := make([]any, len(columns))
		row[0] = p.Time().In(loc).Format(TimestampLayout)
		for k, v := range p.Readings {
			if v.IsNumber() {
				if f, ok := v.Finite(); ok {
					row[index[k]] = f
				}
				continue
			}
			row[index[k]] = v.Interface()
		}
		rows = append(rows, row)
	}
	return Table{Columns: columns, Rows: rows}
}

// Filename returns "<prefix>-YYYY-MM-DD.<ext>"
func Filename(prefix string, day time.Time, ext string) string {
	return fmt.Sprintf("%s-%s.%s", prefix, day.Format("2006-01-02"), ext)
}

// WriteXLSX writes the series as a workbook with a single sheet
func WriteXLSX(w io.Writer, points []models.DataPoint, loc *time.Location) error {
	table := BuildTable(points, loc)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes the series with the same columns as WriteXLSX
func WriteCSV(w io.Writer, points []models.DataPoint, loc *time.Location) error {
	table := BuildTable(points, loc)

	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
