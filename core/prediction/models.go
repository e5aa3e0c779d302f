package prediction

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

// Performance labels as the model emits them.
const (
	PerformanceHigh   = "High"
	PerformanceMedium = "Medium"
	PerformanceLow    = "Low"
)

// Form option lists; these mirror the categories the model was trained
// on (anything else would be encoded as unknown server-side).
var (
	GenderOptions        = []string{"female", "male"}
	RaceEthnicityOptions = []string{"group A", "group B", "group C", "group D", "group E"}
	ParentalEducationOptions = []string{
		"some high school",
		"high school",
		"some college",
		"associate's degree",
		"bachelor's degree",
		"master's degree",
	}
	LunchOptions           = []string{"standard", "free/reduced"}
	TestPreparationOptions = []string{"none", "completed"}
)

// Input is the eight-field prediction form as it goes over the wire.
type Input struct {
	Gender            string `json:"gender" validate:"required"`
	RaceEthnicity     string `json:"race_ethnicity" validate:"required"`
	ParentalEducation string `json:"parental_education" validate:"required"`
	Lunch             string `json:"lunch" validate:"required"`
	TestPreparation   string `json:"test_preparation" validate:"required"`
	MathScore         int    `json:"math_score" validate:"gte=0,lte=100"`
	ReadingScore      int    `json:"reading_score" validate:"gte=0,lte=100"`
	WritingScore      int    `json:"writing_score" validate:"gte=0,lte=100"`
}

func (in *Input) Validate(validate *validator.Validate) error {
	in.Gender = core.CleanString(in.Gender, true /* lower */)
	in.Lunch = core.CleanString(in.Lunch, true /* lower */)
	in.TestPreparation = core.CleanString(in.TestPreparation, true /* lower */)
	in.RaceEthnicity = core.CleanString(in.RaceEthnicity)
	in.ParentalEducation = core.CleanString(in.ParentalEducation)

	if err := validate.Struct(in); err != nil {
		return err
	}

	var flds []core.FieldError
	checks := []struct {
		field   string
		value   string
		options []string
	}{
		{"gender", in.Gender, GenderOptions},
		{"race_ethnicity", in.RaceEthnicity, RaceEthnicityOptions},
		{"parental_education", in.ParentalEducation, ParentalEducationOptions},
		{"lunch", in.Lunch, LunchOptions},
		{"test_preparation", in.TestPreparation, TestPreparationOptions},
	}
	for _, chk := range checks {
		if !contains(chk.options, chk.value) {
			flds = append(flds, core.FieldError{Field: chk.field, Error: "not a known option"})
		}
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// DisplayData returns the form keyed by the display names the server
// echoes back in input_data.
func (in Input) DisplayData() map[string]interface{} {
	return map[string]interface{}{
		"gender":                      in.Gender,
		"race/ethnicity":              in.RaceEthnicity,
		"parental level of education": in.ParentalEducation,
		"lunch":                       in.Lunch,
		"test preparation course":     in.TestPreparation,
		"math score":                  in.MathScore,
		"reading score":               in.ReadingScore,
		"writing score":               in.WritingScore,
	}
}

func contains(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}

// Record is one model run. Immutable once created; appended to history
// server-side, never mutated or deleted by the client.
//
// Timestamp stays a string: the server emits bare ISO datetimes without
// a zone, which time.Time refuses to parse.
type Record struct {
	Prediction string                 `json:"prediction"`
	Confidence float64                `json:"confidence"`
	InputData  map[string]interface{} `json:"input_data"`
	Timestamp  string                 `json:"timestamp,omitempty"`
}

// Stats is the aggregate snapshot; it is fully replaced (never merged)
// on each fetch.
type Stats struct {
	TotalPredictions        int            `json:"total_predictions"`
	PerformanceDistribution map[string]int `json:"performance_distribution"`
	AverageConfidence       float64        `json:"average_confidence"`
}
