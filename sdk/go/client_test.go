package spycatsdk_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spycats/internal/breeds"
	"spycats/internal/db"
	"spycats/internal/engine"
	"spycats/internal/migrate"
	"spycats/internal/server"
	spycatsdk "spycats/sdk/go"
)

func newClient(t *testing.T) *spycatsdk.Client {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrate.Migrate(conn, dialect))
	e := engine.New(conn, dialect, breeds.NewValidator(breeds.StaticRegistry{"Abyssinian", "Bengal"}, breeds.Options{}))
	handler, err := server.New(server.Config{Engine: e})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return spycatsdk.New(srv.URL + server.DefaultBasePath)
}

func TestClientLifecycle(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	tom, err := c.CreateCat(ctx, spycatsdk.NewCat{Name: "Tom", YearsOfExperience: 3, Breed: "Abyssinian", Salary: 1000})
	require.NoError(t, err)

	_, err = c.CreateCat(ctx, spycatsdk.NewCat{Name: "Odd", Breed: "Dragon"})
	var apiErr *spycatsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "validation_failed", apiErr.Code)

	m, err := c.CreateMission(ctx, []spycatsdk.NewTarget{{Name: "A", Country: "FR"}, {Name: "B", Country: "DE"}})
	require.NoError(t, err)
	require.Len(t, m.Targets, 2)

	m, err = c.AssignCat(ctx, m.ID, tom.ID)
	require.NoError(t, err)
	require.NotNil(t, m.Cat)
	assert.Equal(t, tom.ID, m.Cat.ID)

	avail, err := c.AvailableCats(ctx)
	require.NoError(t, err)
	assert.Empty(t, avail)

	require.Error(t, c.DeleteMission(ctx, m.ID))

	done := true
	for _, tg := range m.Targets {
		_, err := c.UpdateTarget(ctx, tg.ID, spycatsdk.TargetUpdate{Complete: &done})
		require.NoError(t, err)
	}
	m, err = c.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, m.Complete)

	notes := "late"
	_, err = c.UpdateTarget(ctx, m.Targets[0].ID, spycatsdk.TargetUpdate{Notes: &notes})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "target_locked", apiErr.Code)

	updated, err := c.UpdateCatSalary(ctx, tom.ID, 1200)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, updated.Salary)

	cats, err := c.ListCats(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	missions, err := c.ListMissions(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, missions, 1)

	tg, err := c.GetTarget(ctx, m.Targets[1].ID)
	require.NoError(t, err)
	assert.True(t, tg.Complete)

	require.NoError(t, c.DeleteCat(ctx, tom.ID))
	_, err = c.GetCat(ctx, tom.ID)
	assert.True(t, spycatsdk.IsNotFound(err))
}
