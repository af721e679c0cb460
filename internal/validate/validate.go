package validate

import (
	"github.com/lysithea/pkg/models"
)

// Validate compares an adapted artifact against the required capability
// set and produces a fresh report. score is the satisfied fraction of the
// required set; passed requires every capability to hold. Violations are
// ordered by the required capability order so reports are deterministic.
func Validate(artifact *models.AdaptedArtifact, required []models.Capability) *models.ValidationReport {
	report := &models.ValidationReport{}
	if len(required) == 0 {
		report.Passed = true
		report.Score = 1.0
		return report
	}

	satisfied := 0
	for _, cap := range required {
		ok, reason := Detect(artifact.Body, cap)
		if ok {
			satisfied++
			continue
		}
		report.Violations = append(report.Violations, models.Violation{
			Capability: cap,
			Reason:     reason,
		})
	}

	report.Score = float64(satisfied) / float64(len(required))
	report.Passed = report.Score == 1.0
	return report
}
