package scan

import (
	"github.com/franckalain/halalscan/internal/annotate"
	"github.com/franckalain/halalscan/internal/ecodes"
	"github.com/franckalain/halalscan/internal/models"
)

// AnnotatedIngredient is one ingredient string split into segments
type AnnotatedIngredient struct {
	Text     string             `json:"text"`
	Segments []annotate.Segment `json:"segments"`
}

// Report is a scan result's ingredients annotated with its own e-codes
type Report struct {
	Ingredients []AnnotatedIngredient `json:"ingredients"`
	ECodes      []ecodes.CodeClass    `json:"eCodes"`
	HaramCodes  int                   `json:"haramCodes"`
}

// NewReport annotates every ingredient of result against result.ECodes. The
// matcher is compiled once for the whole result.
func NewReport(result models.ScanResult, table *ecodes.Table) Report {
	m := annotate.Compile(result.ECodes)

	report := Report{
		Ingredients: make([]AnnotatedIngredient, 0, len(result.Ingredients)),
		ECodes:      table.Summarize(result.ECodes),
	}
	for _, ingredient := range result.Ingredients {
		report.Ingredients = append(report.Ingredients, AnnotatedIngredient{
			Text:     ingredient,
			Segments: m.Annotate(ingredient, table),
		})
	}
	for _, c := range report.ECodes {
		if c.Classification == ecodes.Haram {
			report.HaramCodes++
		}
	}
	return report
}
