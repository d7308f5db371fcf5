// Package analytics provides public SDK types for fieldcast forecasts.
package analytics

import "time"

// ForecastRecord is the persisted forecast for one (group, activity,
// predicted date) key. Regenerating the same key replaces the record.
type ForecastRecord struct {
	ID             string    `json:"id"`
	GroupID        string    `json:"group_id"`
	Activity       string    `json:"activity"`
	PredictedDate  time.Time `json:"predicted_date"`
	PredictedHours float64   `json:"predicted_hours"`
	MAPEPercent    float64   `json:"mape_percent"`
	Alpha          float64   `json:"alpha"`
	Beta           float64   `json:"beta"`
	Gamma          float64   `json:"gamma"`
	Level          float64   `json:"level"`
	Trend          float64   `json:"trend"`
	Method         string    `json:"method"` // "holt_winters", "double_exponential"
	Policy         string    `json:"policy"`
	Observations   int       `json:"observations"`
	GeneratedAt    time.Time `json:"generated_at"`
	Display        *Duration `json:"display,omitempty"`
}

// Duration is the presentation view of a forecast value.
type Duration struct {
	Hours   float64 `json:"hours"`
	Minutes float64 `json:"minutes"` // rounded to 2 decimal places
	Text    string  `json:"text" example:"0 jam 22 menit"`
}

// StepRow is one row of the audit table behind a forecast.
type StepRow struct {
	Index    int      `json:"index"`
	Label    string   `json:"label"`
	Actual   float64  `json:"actual"`
	Level    float64  `json:"level"`
	Trend    float64  `json:"trend"`
	Seasonal float64  `json:"seasonal"`
	Forecast float64  `json:"forecast"`
	Error    float64  `json:"error"`
	AbsError float64  `json:"abs_error"`
	APE      *float64 `json:"ape_percent,omitempty"`
	Phase    string   `json:"phase"` // "train", "test"
}

// StepReport is the audit table with the run summary.
type StepReport struct {
	GroupID      string    `json:"group_id"`
	Activity     string    `json:"activity"`
	Policy       string    `json:"policy"`
	Method       string    `json:"method"`
	Alpha        float64   `json:"alpha"`
	Beta         float64   `json:"beta"`
	Gamma        float64   `json:"gamma"`
	Period       int       `json:"period"`
	TrainCount   int       `json:"train_count"`
	TestCount    int       `json:"test_count"`
	MAPEPercent  float64   `json:"mape_percent"`
	Value        float64   `json:"value_hours"`
	Next         float64   `json:"next_hours"`
	Searched     bool      `json:"searched"`
	Rows         []StepRow `json:"rows"`
	Display      *Duration `json:"display,omitempty"`
}
