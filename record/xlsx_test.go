package record

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook builds an xlsx fixture with a header row and the given
// data rows on the default sheet.
func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "customers.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func headerCells() []interface{} {
	cells := make([]interface{}, len(RequiredFields))
	for i, f := range RequiredFields {
		cells[i] = f
	}
	return cells
}

func rowCells(id string, tenure int) []interface{} {
	return []interface{}{
		id, "Male", 0, "Yes", "No", tenure,
		"Yes", "No", "Fiber optic", "No", "No", "No",
		"No", "Yes", "Yes", "Month-to-month", "Yes", "Electronic check",
		85.5, strconv.Itoa(tenure * 85),
	}
}

func TestOpenWorkbookBatch(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		headerCells(),
		rowCells("TEST001", 2),
		rowCells("TEST002", 45),
		{}, // trailing blank row
	})

	stream, err := Open(path, ModeBatch, testTarget)
	require.NoError(t, err)
	defer stream.Close()

	recs, rowErrs := drain(t, stream)
	require.Len(t, recs, 2)
	assert.Empty(t, rowErrs)
	assert.Equal(t, "TEST001", recs[0].CustomerID)
	assert.Equal(t, 45, recs[1].Tenure)
	assert.Equal(t, "Fiber optic", recs[0].InternetService)
}

func TestOpenWorkbookSingle(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		headerCells(),
		rowCells("TEST001", 2),
	})

	rec, err := LoadSingle(path, testTarget)
	require.NoError(t, err)
	assert.Equal(t, "TEST001", rec.CustomerID)
	assert.Equal(t, 85.5, rec.MonthlyCharges)
}

func TestOpenWorkbookRejectsLabelColumn(t *testing.T) {
	header := append(headerCells(), testTarget)
	path := writeWorkbook(t, [][]interface{}{
		header,
		append(rowCells("TEST001", 2), "Yes"),
	})

	_, err := Open(path, ModeBatch, testTarget)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label")
}

func TestOpenWorkbookRowFailure(t *testing.T) {
	bad := rowCells("TEST002", 45)
	bad[5] = "lots" // tenure

	path := writeWorkbook(t, [][]interface{}{
		headerCells(),
		rowCells("TEST001", 2),
		bad,
	})

	stream, err := Open(path, ModeBatch, testTarget)
	require.NoError(t, err)
	defer stream.Close()

	recs, rowErrs := drain(t, stream)
	require.Len(t, recs, 1)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, "TEST002", rowErrs[0].CustomerID)
	assert.Equal(t, 2, rowErrs[0].Row)
}
