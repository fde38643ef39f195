package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

const testTarget = "Churn"

// drain consumes a stream, separating valid records from row failures.
func drain(t *testing.T, stream *Stream) ([]*CustomerRecord, []*RowError) {
	t.Helper()
	var recs []*CustomerRecord
	var rowErrs []*RowError
	for stream.Next() {
		if rowErr := stream.RowErr(); rowErr != nil {
			rowErrs = append(rowErrs, rowErr)
			continue
		}
		recs = append(recs, stream.Record())
	}
	require.NoError(t, stream.Err())
	return recs, rowErrs
}

func TestOpenCSVBatch(t *testing.T) {
	stream, err := Open("testdata/customers.csv", ModeBatch, testTarget)
	require.NoError(t, err)
	defer stream.Close()

	recs, rowErrs := drain(t, stream)
	require.Len(t, recs, 3)
	assert.Empty(t, rowErrs)

	first := recs[0]
	assert.Equal(t, "TEST001", first.CustomerID)
	assert.Equal(t, "Male", first.Gender)
	assert.Equal(t, 2, first.Tenure)
	assert.Equal(t, "Month-to-month", first.Contract)
	assert.Equal(t, 85.5, first.MonthlyCharges)
	assert.Equal(t, RawValue("171.0"), first.TotalCharges)

	// Zero-tenure customer with blank TotalCharges is still valid.
	assert.Equal(t, "TEST003", recs[2].CustomerID)
	assert.Equal(t, RawValue(""), recs[2].TotalCharges)
}

func TestOpenCSVBatchPartialFailures(t *testing.T) {
	stream, err := Open("testdata/customers_partial.csv", ModeBatch, testTarget)
	require.NoError(t, err)
	defer stream.Close()

	recs, rowErrs := drain(t, stream)

	require.Len(t, recs, 2)
	assert.Equal(t, "TEST001", recs[0].CustomerID)
	assert.Equal(t, "TEST004", recs[1].CustomerID)

	require.Len(t, rowErrs, 2)
	assert.Equal(t, 2, rowErrs[0].Row)
	assert.Equal(t, "TEST002", rowErrs[0].CustomerID)
	var validationErr *pkgerrors.ValidationError
	assert.ErrorAs(t, rowErrs[0].Err, &validationErr)

	assert.Equal(t, 3, rowErrs[1].Row)
	var parseErr *pkgerrors.ParseError
	assert.ErrorAs(t, rowErrs[1].Err, &parseErr)
}

func TestOpenCSVDuplicateIDs(t *testing.T) {
	stream, err := Open("testdata/duplicates.csv", ModeBatch, testTarget)
	require.NoError(t, err)
	defer stream.Close()

	recs, rowErrs := drain(t, stream)
	require.Len(t, recs, 3)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, "TEST001", rowErrs[0].CustomerID)
	assert.Contains(t, rowErrs[0].Err.Error(), "duplicate")
}

func TestOpenRejectsLabelColumn(t *testing.T) {
	_, err := Open("testdata/leakage.csv", ModeBatch, testTarget)
	require.Error(t, err)

	var validationErr *pkgerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, testTarget, validationErr.ParamName)
}

func TestOpenMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.csv")
	require.NoError(t, os.WriteFile(path, []byte("customerID,gender\nTEST001,Male\n"), 0o644))

	_, err := Open(path, ModeBatch, testTarget)
	require.Error(t, err)

	var parseErr *pkgerrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "tenure")
}

func TestOpenJSONBatch(t *testing.T) {
	stream, err := Open("testdata/customers.json", ModeBatch, testTarget)
	require.NoError(t, err)
	defer stream.Close()

	recs, rowErrs := drain(t, stream)

	// The middle object is missing Contract.
	require.Len(t, recs, 2)
	assert.Equal(t, "TEST001", recs[0].CustomerID)
	assert.Equal(t, "TEST003", recs[1].CustomerID)

	require.Len(t, rowErrs, 1)
	assert.Equal(t, "TEST002", rowErrs[0].CustomerID)
	var validationErr *pkgerrors.ValidationError
	require.ErrorAs(t, rowErrs[0].Err, &validationErr)
	assert.Equal(t, "Contract", validationErr.ParamName)

	// String, number, and null TotalCharges all come through raw.
	assert.Equal(t, RawValue("171.0"), recs[0].TotalCharges)
	assert.Equal(t, RawValue(""), recs[1].TotalCharges)
}

func TestOpenJSONRejectsLabelKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labeled.json")
	data, err := os.ReadFile("testdata/single.json")
	require.NoError(t, err)
	labeled := append([]byte(`[`), data...)
	labeled = append(labeled[:len(labeled)-2], []byte(",\n  \"Churn\": \"Yes\"\n}]\n")...)
	require.NoError(t, os.WriteFile(path, labeled, 0o644))

	stream, err := Open(path, ModeBatch, testTarget)
	require.NoError(t, err)
	defer stream.Close()

	assert.False(t, stream.Next())
	var validationErr *pkgerrors.ValidationError
	require.ErrorAs(t, stream.Err(), &validationErr)
	assert.Equal(t, testTarget, validationErr.ParamName)
}

func TestLoadSingle(t *testing.T) {
	rec, err := LoadSingle("testdata/single.json", testTarget)
	require.NoError(t, err)
	assert.Equal(t, "TEST001", rec.CustomerID)
	assert.Equal(t, RawValue("171.0"), rec.TotalCharges)
}

func TestLoadSingleCSV(t *testing.T) {
	rec, err := LoadSingle("testdata/single.csv", testTarget)
	require.NoError(t, err)
	assert.Equal(t, "TEST001", rec.CustomerID)
}

func TestSingleModeRejectsMultipleRecords(t *testing.T) {
	_, err := LoadSingle("testdata/customers.csv", testTarget)
	require.Error(t, err)

	var usageErr *pkgerrors.UsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Contains(t, usageErr.Message, "more than one")
}

func TestSingleModeRejectsEmptySource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	content := "customerID,gender,SeniorCitizen,Partner,Dependents,tenure,PhoneService,MultipleLines,InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies,Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadSingle(path, testTarget)
	require.Error(t, err)

	var usageErr *pkgerrors.UsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Contains(t, usageErr.Message, "no records")
}

func TestSingleModeRowFailureIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "customerID,gender,SeniorCitizen,Partner,Dependents,tenure,PhoneService,MultipleLines,InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies,Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges\n" +
		"TEST001,Male,0,Yes,No,abc,Yes,No,Fiber optic,No,No,No,No,Yes,Yes,Month-to-month,Yes,Electronic check,85.5,171.0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadSingle(path, testTarget)
	require.Error(t, err)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	var validationErr *pkgerrors.ValidationError
	assert.ErrorAs(t, rowErr.Err, &validationErr)
}

func TestOpenSniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "customers.dat")
	data, err := os.ReadFile("testdata/single.json")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(jsonPath, data, 0o644))

	rec, err := LoadSingle(jsonPath, testTarget)
	require.NoError(t, err)
	assert.Equal(t, "TEST001", rec.CustomerID)

	csvPath := filepath.Join(dir, "customers.txt")
	data, err = os.ReadFile("testdata/single.csv")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(csvPath, data, 0o644))

	rec, err = LoadSingle(csvPath, testTarget)
	require.NoError(t, err)
	assert.Equal(t, "TEST001", rec.CustomerID)
}

func TestOpenUnknownMode(t *testing.T) {
	_, err := Open("testdata/customers.csv", Mode("streamed"), testTarget)
	require.Error(t, err)

	var usageErr *pkgerrors.UsageError
	assert.ErrorAs(t, err, &usageErr)
}
