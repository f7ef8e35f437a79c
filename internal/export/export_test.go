package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"agrosense/internal/export"
	"agrosense/internal/models"
)

func series() []models.DataPoint {
	return []models.DataPoint{
		{Timestamp: 1700000000000, Readings: models.SensorReading{"temperature": models.Number(25)}},
		{Timestamp: 1700003600000, Readings: models.SensorReading{
			"temperature": models.Number(35.5),
			"humidity":    models.Number(61),
			"pump":        models.Bool(true),
		}},
	}
}

func TestBuildTableColumnsInFirstSeenOrder(t *testing.T) {
	table := export.BuildTable(series(), time.UTC)

	assert.Equal(t, []string{"timestamp", "temperature", "humidity", "pump"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []any{"2023-11-14 22:13:20", 25.0, nil, nil}, table.Rows[0])
	assert.Equal(t, []any{"2023-11-14 23:13:20", 35.5, 61.0, true}, table.Rows[1])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, series(), time.UTC))

	want := "timestamp,temperature,humidity,pump\n" +
		"2023-11-14 22:13:20,25,,\n" +
		"2023-11-14 23:13:20,35.5,61,true\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteXLSX(&buf, series(), time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{export.SheetName}, f.GetSheetList())
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"timestamp", "temperature", "humidity", "pump"}, rows[0])
	assert.Equal(t, "2023-11-14 23:13:20", rows[2][0])
	assert.Equal(t, "35.5", rows[2][1])
}

func TestEmptySeries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, nil, time.UTC))
	assert.Equal(t, "timestamp\n", buf.String())
}

func TestFilename(t *testing.T) {
	day := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "AgroSense-Slave(A)-2024-03-09.xlsx", export.Filename("AgroSense-Slave(A)", day, "xlsx"))
}
