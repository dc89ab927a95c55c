package services

import (
	"context"
	"testing"

	"chantier-tracker/internal/models"

	"github.com/stretchr/testify/require"
)

func TestClientCreateNormalizesAndValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clients.Create(ctx, f.admin, ClientInput{
		Name:  "  Bâtir Plus  ",
		Email: " Contact@BatirPlus.FR ",
		Siret: "123 456 789 00012",
	})
	require.NoError(t, err)
	require.Equal(t, "Bâtir Plus", c.Name)
	require.Equal(t, "contact@batirplus.fr", c.Email)
	require.Equal(t, "12345678900012", c.Siret)

	_, err = f.clients.Create(ctx, f.admin, ClientInput{Name: "X", Email: "nope", Siret: "12AB"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, Violations{"name": "min_length_2", "email": "invalid", "siret": "invalid"}, ve.Fields)
}

func TestClientUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.clients.Create(ctx, f.admin, ClientInput{Name: "Mairie de Lyon", Email: "travaux@lyon.fr"})
	require.NoError(t, err)

	_, err = f.clients.Create(ctx, f.admin, ClientInput{Name: "MAIRIE DE LYON"})
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.clients.Create(ctx, f.admin, ClientInput{Name: "Autre", Email: "TRAVAUX@lyon.fr"})
	require.ErrorIs(t, err, ErrConflict)

	// saving a client under its own name is not a conflict
	updated, err := f.clients.Update(ctx, f.admin, first.ID, ClientInput{Name: "Mairie de Lyon", City: "Lyon"})
	require.NoError(t, err)
	require.Equal(t, "Lyon", updated.City)
}

func TestClientRenameChecksUniquenessInTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nord, err := f.clients.Create(ctx, f.admin, ClientInput{Name: "Atelier Nord"})
	require.NoError(t, err)
	sud, err := f.clients.Create(ctx, f.admin, ClientInput{Name: "Atelier Sud"})
	require.NoError(t, err)

	wait := f.duringFirstQuery(t, "clients", func() error {
		_, err := f.clients.Update(ctx, f.admin, sud.ID, ClientInput{Name: "Atelier Central"})
		return err
	})
	_, err = f.clients.Update(ctx, f.admin, nord.ID, ClientInput{Name: "Atelier Central"})
	require.NoError(t, err)
	require.ErrorIs(t, wait(), ErrConflict)

	got, err := f.clients.Get(ctx, sud.ID)
	require.NoError(t, err)
	require.Equal(t, "Atelier Sud", got.Name)

	_, err = f.clients.Update(ctx, f.admin, 4242, ClientInput{Name: "Inconnu"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClientDeleteDetachesChantiers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.clients.Create(ctx, f.admin, ClientInput{Name: "Famille Martin"})
	require.NoError(t, err)
	ch, err := f.chantiers.Create(ctx, f.admin, ChantierInput{Title: "Véranda", ClientID: &c.ID})
	require.NoError(t, err)

	require.NoError(t, f.clients.Delete(ctx, f.admin, c.ID))

	got, err := f.chantiers.Get(ctx, ch.ID)
	require.NoError(t, err)
	require.Nil(t, got.ClientID)

	_, err = f.clients.Get(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.clients.Delete(ctx, f.admin, c.ID), ErrNotFound)
}

func TestClientListAndFind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, in := range []ClientInput{
		{Name: "Zénith Immobilier", City: "Nantes"},
		{Name: "Atelier Bois", City: "Rennes"},
		{Name: "Boulangerie Petit", City: "Nantes"},
	} {
		_, err := f.clients.Create(ctx, f.admin, in)
		require.NoError(t, err)
	}

	page, err := f.clients.List(ctx, "", 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	require.Equal(t, "Atelier Bois", page.Items[0].Name)

	page, err = f.clients.List(ctx, "nantes", 1, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 1)

	c, err := f.clients.FindByName(ctx, "  atelier BOIS ")
	require.NoError(t, err)
	require.Equal(t, "Rennes", c.City)

	_, err = f.clients.FindByName(ctx, "Inconnu")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAuditListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.clients.Create(ctx, f.admin, ClientInput{Name: "Client Audit"})
	require.NoError(t, err)
	f.chantier(t, "Chantier audité")

	logs, err := f.audit.List(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, EntityChantier, logs[0].Entity, "newest first")
	require.NotNil(t, logs[0].User)

	logs, err = f.audit.List(ctx, AuditFilter{Entity: EntityClient, EntityID: c.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "create", logs[0].Action)

	logs, err = f.audit.List(ctx, AuditFilter{UserID: 9999})
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestAuditRecordNilLogger(t *testing.T) {
	var a *AuditLogger
	require.NotPanics(t, func() {
		a.Record(context.Background(), Actor{UserID: 1, Role: models.RoleAdmin}, EntityClient, 1, "create", "", nil)
	})
}
