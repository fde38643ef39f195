// Package record parses raw, human-entered customer records from
// delimited-text tables, spreadsheet workbooks, and structured-text
// documents, validating each record against the required field set before
// it can reach the feature encoder.
package record

import (
	"encoding/json"
	"strconv"
	"strings"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// IDField is the identifier column, required and unique within a batch.
const IDField = "customerID"

// CategoricalFields are the attribute fields drawn from fixed
// enumerations and covered by fitted label encoders.
var CategoricalFields = []string{
	"gender", "Partner", "Dependents",
	"PhoneService", "MultipleLines", "InternetService",
	"OnlineSecurity", "OnlineBackup", "DeviceProtection",
	"TechSupport", "StreamingTV", "StreamingMovies",
	"Contract", "PaperlessBilling", "PaymentMethod",
}

// NumericFields are the attribute fields fed to the model as numbers.
// TotalCharges may arrive as text needing coercion and is kept raw until
// encoding.
var NumericFields = []string{
	"SeniorCitizen", "tenure", "MonthlyCharges", "TotalCharges",
}

// RequiredFields is the full input schema: identifier plus 19 attributes.
var RequiredFields = buildRequiredFields()

func buildRequiredFields() []string {
	fields := []string{
		IDField,
		"gender", "SeniorCitizen", "Partner", "Dependents", "tenure",
		"PhoneService", "MultipleLines", "InternetService",
		"OnlineSecurity", "OnlineBackup", "DeviceProtection",
		"TechSupport", "StreamingTV", "StreamingMovies",
		"Contract", "PaperlessBilling", "PaymentMethod",
		"MonthlyCharges", "TotalCharges",
	}
	return fields
}

// IsCategoricalField reports whether name is a label-encoded field.
func IsCategoricalField(name string) bool {
	for _, f := range CategoricalFields {
		if f == name {
			return true
		}
	}
	return false
}

// IsNumericField reports whether name is a numeric field.
func IsNumericField(name string) bool {
	for _, f := range NumericFields {
		if f == name {
			return true
		}
	}
	return false
}

// RawValue holds a field that may arrive as JSON text or as a JSON
// number; the telco export writes TotalCharges both ways, and blank for
// brand-new customers.
type RawValue string

// UnmarshalJSON accepts a string, a number, or null.
func (v *RawValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = RawValue(s)
		return nil
	}
	*v = RawValue(data)
	return nil
}

// CustomerRecord is one raw input row. Field names and JSON tags follow
// the telco export schema.
type CustomerRecord struct {
	CustomerID       string   `json:"customerID"`
	Gender           string   `json:"gender"`
	SeniorCitizen    int      `json:"SeniorCitizen"`
	Partner          string   `json:"Partner"`
	Dependents       string   `json:"Dependents"`
	Tenure           int      `json:"tenure"`
	PhoneService     string   `json:"PhoneService"`
	MultipleLines    string   `json:"MultipleLines"`
	InternetService  string   `json:"InternetService"`
	OnlineSecurity   string   `json:"OnlineSecurity"`
	OnlineBackup     string   `json:"OnlineBackup"`
	DeviceProtection string   `json:"DeviceProtection"`
	TechSupport      string   `json:"TechSupport"`
	StreamingTV      string   `json:"StreamingTV"`
	StreamingMovies  string   `json:"StreamingMovies"`
	Contract         string   `json:"Contract"`
	PaperlessBilling string   `json:"PaperlessBilling"`
	PaymentMethod    string   `json:"PaymentMethod"`
	MonthlyCharges   float64  `json:"MonthlyCharges"`
	TotalCharges     RawValue `json:"TotalCharges"`
}

// CategoricalValue returns the raw value of a label-encoded field.
func (r *CustomerRecord) CategoricalValue(field string) (string, bool) {
	switch field {
	case "gender":
		return r.Gender, true
	case "Partner":
		return r.Partner, true
	case "Dependents":
		return r.Dependents, true
	case "PhoneService":
		return r.PhoneService, true
	case "MultipleLines":
		return r.MultipleLines, true
	case "InternetService":
		return r.InternetService, true
	case "OnlineSecurity":
		return r.OnlineSecurity, true
	case "OnlineBackup":
		return r.OnlineBackup, true
	case "DeviceProtection":
		return r.DeviceProtection, true
	case "TechSupport":
		return r.TechSupport, true
	case "StreamingTV":
		return r.StreamingTV, true
	case "StreamingMovies":
		return r.StreamingMovies, true
	case "Contract":
		return r.Contract, true
	case "PaperlessBilling":
		return r.PaperlessBilling, true
	case "PaymentMethod":
		return r.PaymentMethod, true
	}
	return "", false
}

// NumericValue returns the value of a numeric field. TotalCharges is not
// served here: it stays raw until the encoder coerces it.
func (r *CustomerRecord) NumericValue(field string) (float64, bool) {
	switch field {
	case "SeniorCitizen":
		return float64(r.SeniorCitizen), true
	case "tenure":
		return float64(r.Tenure), true
	case "MonthlyCharges":
		return r.MonthlyCharges, true
	}
	return 0, false
}

// Validate enforces the record invariant: every required field present
// and parseable. TotalCharges alone may be blank (zero-tenure customers).
func (r *CustomerRecord) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return pkgerrors.NewValidationError(IDField, "identifier is required", r.CustomerID)
	}
	for _, field := range CategoricalFields {
		v, _ := r.CategoricalValue(field)
		if strings.TrimSpace(v) == "" {
			return pkgerrors.NewValidationError(field, "required field is empty", v)
		}
	}
	if r.SeniorCitizen != 0 && r.SeniorCitizen != 1 {
		return pkgerrors.NewValidationError("SeniorCitizen", "must be 0 or 1", r.SeniorCitizen)
	}
	if r.Tenure < 0 {
		return pkgerrors.NewValidationError("tenure", "must be non-negative", r.Tenure)
	}
	if r.MonthlyCharges < 0 {
		return pkgerrors.NewValidationError("MonthlyCharges", "must be non-negative", r.MonthlyCharges)
	}
	return nil
}

// fromRow builds a record from one tabular row given a header index.
func fromRow(header map[string]int, row []string) (*CustomerRecord, error) {
	get := func(field string) string {
		i := header[field]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	senior, err := strconv.Atoi(get("SeniorCitizen"))
	if err != nil {
		return nil, pkgerrors.NewValidationError("SeniorCitizen", "not an integer", get("SeniorCitizen"))
	}
	tenure, err := strconv.Atoi(get("tenure"))
	if err != nil {
		return nil, pkgerrors.NewValidationError("tenure", "not an integer", get("tenure"))
	}
	monthly, err := strconv.ParseFloat(get("MonthlyCharges"), 64)
	if err != nil {
		return nil, pkgerrors.NewValidationError("MonthlyCharges", "not a number", get("MonthlyCharges"))
	}

	rec := &CustomerRecord{
		CustomerID:       get(IDField),
		Gender:           get("gender"),
		SeniorCitizen:    senior,
		Partner:          get("Partner"),
		Dependents:       get("Dependents"),
		Tenure:           tenure,
		PhoneService:     get("PhoneService"),
		MultipleLines:    get("MultipleLines"),
		InternetService:  get("InternetService"),
		OnlineSecurity:   get("OnlineSecurity"),
		OnlineBackup:     get("OnlineBackup"),
		DeviceProtection: get("DeviceProtection"),
		TechSupport:      get("TechSupport"),
		StreamingTV:      get("StreamingTV"),
		StreamingMovies:  get("StreamingMovies"),
		Contract:         get("Contract"),
		PaperlessBilling: get("PaperlessBilling"),
		PaymentMethod:    get("PaymentMethod"),
		MonthlyCharges:   monthly,
		TotalCharges:     RawValue(get("TotalCharges")),
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}
