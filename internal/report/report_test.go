package report

import (
	"bytes"
	"testing"
	"time"

	"chantier-tracker/internal/models"

	"github.com/stretchr/testify/require"
)

func TestChantierPDF(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	start := now.AddDate(0, -1, 0)
	tech := &models.User{FirstName: "Marc", LastName: "Petit", Email: "marc@test.local"}

	c := models.Chantier{
		Title:       "Rénovation appartement",
		Address:     "12 rue Victor Hugo, Lyon",
		Budget:      42000,
		Priority:    models.PriorityHaute,
		Status:      models.ChantierEnCours,
		Progression: 50,
		StartDate:   &start,
		Client:      &models.Client{Name: "Famille Bernard"},
		Interventions: []models.Intervention{
			{Title: "Démolition cloison", Status: models.InterventionTerminee, Duration: 6, Price: 800, Date: &start, Technicien: tech},
			{Title: "Pose placo", Status: models.InterventionPlanifiee, Duration: 8, Price: 1200},
		},
	}

	out, err := ChantierPDF(c, now)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	empty, err := ChantierPDF(models.Chantier{Title: "Vide"}, now)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(empty, []byte("%PDF")))
}

func TestHelpers(t *testing.T) {
	require.Equal(t, "-", orDash("  "))
	require.Equal(t, "-", date(nil))
	require.Equal(t, "12.50 EUR", money(12.5))
	require.Equal(t, "", clientName(nil))
	require.Equal(t, "Marc Petit", userName(&models.User{FirstName: "Marc", LastName: "Petit"}))
}
