package model

// PatientSummary is one row of the clinician dashboard.
//
// AvgGlucose and LastReading are nil when the patient has no readings in the
// window. Error is set when the summary for this patient could not be
// computed; the other rows of the listing are unaffected.
type PatientSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone,omitempty"`
	LastReading   *float64 `json:"last_reading"`
	AvgGlucose    *float64 `json:"avg_glucose"`
	ReadingsCount int      `json:"readings_count"`
	Error         string   `json:"error,omitempty"`
}
