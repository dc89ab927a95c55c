package progression

import (
	"time"

	"chantier-tracker/internal/models"
)

// DisplayBucket is the dashboard column a chantier is shown in. Besides the
// two derived buckets it may carry any raw chantier status.
type DisplayBucket string

const (
	BucketTermine  DisplayBucket = "termine"
	BucketEnCours  DisplayBucket = "en_cours"
	BucketPlanifie DisplayBucket = "planifie"
)

// urgentPriorities force a chantier into the en_cours column. The stored
// priority enum only knows "critique"; the other two come from imported data.
var urgentPriorities = map[models.ChantierPriority]struct{}{
	"urgent":                {},
	"high":                  {},
	models.PriorityCritique: {},
}

// DisplayStatus buckets a chantier for display. It never changes stored data.
func DisplayStatus(c models.Chantier, now time.Time) DisplayBucket {
	if c.Status == models.ChantierTermine || c.Progression >= 100 {
		return BucketTermine
	}
	if _, ok := urgentPriorities[c.Priority]; ok {
		return BucketEnCours
	}
	if c.Status == models.ChantierEnAttente {
		if c.StartDate == nil || c.StartDate.After(now) {
			return BucketPlanifie
		}
		return BucketEnCours
	}
	return DisplayBucket(c.Status)
}

// Group splits chantiers into display buckets, keeping input order inside
// each bucket.
func Group(list []models.Chantier, now time.Time) map[DisplayBucket][]models.Chantier {
	out := make(map[DisplayBucket][]models.Chantier)
	for _, c := range list {
		b := DisplayStatus(c, now)
		out[b] = append(out[b], c)
	}
	return out
}
