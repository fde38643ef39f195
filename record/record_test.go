package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

func validRecord() *CustomerRecord {
	return &CustomerRecord{
		CustomerID:       "TEST001",
		Gender:           "Male",
		SeniorCitizen:    0,
		Partner:          "Yes",
		Dependents:       "No",
		Tenure:           2,
		PhoneService:     "Yes",
		MultipleLines:    "No",
		InternetService:  "Fiber optic",
		OnlineSecurity:   "No",
		OnlineBackup:     "No",
		DeviceProtection: "No",
		TechSupport:      "No",
		StreamingTV:      "Yes",
		StreamingMovies:  "Yes",
		Contract:         "Month-to-month",
		PaperlessBilling: "Yes",
		PaymentMethod:    "Electronic check",
		MonthlyCharges:   85.5,
		TotalCharges:     "171.0",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validRecord().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CustomerRecord)
		param  string
	}{
		{"missing id", func(r *CustomerRecord) { r.CustomerID = "  " }, IDField},
		{"empty categorical", func(r *CustomerRecord) { r.Contract = "" }, "Contract"},
		{"senior citizen flag", func(r *CustomerRecord) { r.SeniorCitizen = 2 }, "SeniorCitizen"},
		{"negative tenure", func(r *CustomerRecord) { r.Tenure = -1 }, "tenure"},
		{"negative monthly charges", func(r *CustomerRecord) { r.MonthlyCharges = -0.5 }, "MonthlyCharges"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)
			err := rec.Validate()
			require.Error(t, err)

			var validationErr *pkgerrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.param, validationErr.ParamName)
		})
	}
}

func TestValidateBlankTotalCharges(t *testing.T) {
	rec := validRecord()
	rec.Tenure = 0
	rec.TotalCharges = ""
	assert.NoError(t, rec.Validate())
}

func TestRawValueUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want RawValue
	}{
		{"string", `"171.0"`, "171.0"},
		{"number", `171.5`, "171.5"},
		{"blank string", `" "`, " "},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v RawValue
			require.NoError(t, json.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestFieldClassification(t *testing.T) {
	assert.True(t, IsCategoricalField("Contract"))
	assert.False(t, IsCategoricalField("tenure"))
	assert.True(t, IsNumericField("MonthlyCharges"))
	assert.True(t, IsNumericField("TotalCharges"))
	assert.False(t, IsNumericField("gender"))
	assert.Len(t, RequiredFields, 20)
}

func TestNumericValueExcludesTotalCharges(t *testing.T) {
	rec := validRecord()
	_, ok := rec.NumericValue("TotalCharges")
	assert.False(t, ok)

	v, ok := rec.NumericValue("tenure")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}
