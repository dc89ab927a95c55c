// Package progression derives chantier completion and the display bucket
// used to group chantiers on the dashboard. Everything here is pure; the
// service layer is responsible for persisting the results.
package progression

import (
	"math"

	"chantier-tracker/internal/models"
)

// Compute returns the 0..100 completion of a chantier. A finished chantier is
// always at 100 regardless of its interventions.
func Compute(status models.ChantierStatus, interventions []models.InterventionStatus) int {
	if status == models.ChantierTermine {
		return 100
	}
	total := len(interventions)
	if total == 0 {
		return 0
	}
	done := 0
	for _, s := range interventions {
		if s == models.InterventionTerminee {
			done++
		}
	}
	return Ratio(done, total)
}

// Ratio is round(100*done/total), half away from zero.
func Ratio(done, total int) int {
	if total <= 0 {
		return 0
	}
	return Clamp(int(math.Round(100 * float64(done) / float64(total))))
}

// Clamp bounds an explicit progression override to 0..100.
func Clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Statuses extracts the status of every intervention.
func Statuses(list []models.Intervention) []models.InterventionStatus {
	out := make([]models.InterventionStatus, 0, len(list))
	for _, iv := range list {
		out = append(out, iv.Status)
	}
	return out
}
