package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"spycats/internal/breeds"
	"spycats/internal/db"
	"spycats/internal/domain"
	"spycats/internal/engine"
	"spycats/internal/metrics"
	"spycats/internal/migrate"
	"spycats/internal/repo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubBreeds struct {
	known map[string]bool
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubBreeds) Check(_ context.Context, breed string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.known[strings.ToLower(breed)], nil
}

type testEnv struct {
	Engine engine.Engine
	Breeds *stubBreeds
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, dialect, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err, "open db")
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrate.Migrate(conn, dialect), "migrate")
	stub := &stubBreeds{known: map[string]bool{"abyssinian": true, "bengal": true}}
	eng := engine.New(conn, dialect, stub)
	eng.Logger = zaptest.NewLogger(t)
	eng.Metrics = metrics.New()
	return testEnv{Engine: eng, Breeds: stub, Ctx: context.Background()}
}

func (env testEnv) cat(t *testing.T, name string) domain.Cat {
	t.Helper()
	c, err := env.Engine.CreateCat(env.Ctx, engine.CatCreateOptions{Name: name, YearsOfExperience: 2, Breed: "Bengal", Salary: 500})
	require.NoError(t, err)
	return c
}

func (env testEnv) mission(t *testing.T, n int) domain.Mission {
	t.Helper()
	targets := make([]domain.NewTarget, n)
	for i := range targets {
		targets[i] = domain.NewTarget{Name: fmt.Sprintf("T%d", i), Country: "FR"}
	}
	m, err := env.Engine.CreateMission(env.Ctx, targets)
	require.NoError(t, err)
	return m
}

func (env testEnv) completeAll(t *testing.T, m domain.Mission) {
	t.Helper()
	done := true
	for _, tg := range m.Targets {
		_, err := env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: tg.ID, Complete: &done})
		require.NoError(t, err)
	}
}

func TestCreateCatValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateCat(env.Ctx, engine.CatCreateOptions{Name: "Neg", YearsOfExperience: -1, Breed: "Bengal"})
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "years_of_experience", ve.Field)

	_, err = env.Engine.CreateCat(env.Ctx, engine.CatCreateOptions{Name: "Neg", Breed: "Bengal", Salary: -0.01})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "salary", ve.Field)
	assert.Equal(t, 0, env.Breeds.calls, "numeric checks run before the registry")

	_, err = env.Engine.CreateCat(env.Ctx, engine.CatCreateOptions{Name: "Odd", Breed: "Dragon"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "breed", ve.Field)

	cats, err := env.Engine.ListCats(env.Ctx, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestCreateCatRegistryDownIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	env.Breeds.err = fmt.Errorf("%w: dial tcp: refused", breeds.ErrRegistryUnavailable)
	_, err := env.Engine.CreateCat(env.Ctx, engine.CatCreateOptions{Name: "Tom", Breed: "Abyssinian"})
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, errors.Is(err, breeds.ErrRegistryUnavailable))
}

func TestCreateCatMatchesBreedCaseInsensitively(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.Engine.CreateCat(env.Ctx, engine.CatCreateOptions{Name: "Tom", Breed: "aBySsInIaN", YearsOfExperience: 0, Salary: 0})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.Equal(t, "aBySsInIaN", c.Breed)
}

func TestUpdateSalary(t *testing.T) {
	env := newTestEnv(t)
	c := env.cat(t, "Tom")

	for _, s := range []float64{0, 1234.5, 99} {
		updated, err := env.Engine.UpdateCatSalary(env.Ctx, c.ID, s)
		require.NoError(t, err)
		assert.Equal(t, s, updated.Salary)
		got, err := env.Engine.GetCat(env.Ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, s, got.Salary)
	}

	_, err := env.Engine.UpdateCatSalary(env.Ctx, c.ID, -5)
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	got, err := env.Engine.GetCat(env.Ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 99.0, got.Salary)

	_, err = env.Engine.UpdateCatSalary(env.Ctx, c.ID+100, 10)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestDeleteCat(t *testing.T) {
	env := newTestEnv(t)
	c := env.cat(t, "Tom")
	m := env.mission(t, 1)
	_, err := env.Engine.AssignCat(env.Ctx, m.ID, c.ID)
	require.NoError(t, err)

	ok, err := env.Engine.DeleteCat(env.Ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = env.Engine.GetCat(env.Ctx, c.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)

	ok, err = env.Engine.DeleteCat(env.Ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := env.Engine.GetMission(env.Ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CatID)
	assert.Nil(t, got.Cat)
}

func TestListWindow(t *testing.T) {
	env := newTestEnv(t)
	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, env.cat(t, fmt.Sprintf("cat-%d", i)).ID)
		env.mission(t, 1)
	}

	cats, err := env.Engine.ListCats(env.Ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, ids[1], cats[0].ID)
	assert.Equal(t, ids[2], cats[1].ID)

	cats, err = env.Engine.ListCats(env.Ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, cats)

	cats, err = env.Engine.ListCats(env.Ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, cats)

	missions, err := env.Engine.ListMissions(env.Ctx, 3, 100)
	require.NoError(t, err)
	require.Len(t, missions, 2)
	assert.Less(t, missions[0].ID, missions[1].ID)
	assert.Len(t, missions[0].Targets, 1)

	_, err = env.Engine.ListCats(env.Ctx, -1, 10)
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	_, err = env.Engine.ListMissions(env.Ctx, 0, -1)
	require.ErrorAs(t, err, &ve)
}

func TestCreateMissionTargetBounds(t *testing.T) {
	env := newTestEnv(t)
	for _, n := range []int{0, 4, 7} {
		targets := make([]domain.NewTarget, n)
		for i := range targets {
			targets[i] = domain.NewTarget{Name: "x", Country: "y"}
		}
		_, err := env.Engine.CreateMission(env.Ctx, targets)
		var ve *engine.ValidationError
		require.ErrorAs(t, err, &ve, "n=%d", n)
		assert.Equal(t, "targets", ve.Field)
	}
	missions, err := env.Engine.ListMissions(env.Ctx, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, missions)

	for _, n := range []int{1, 2, 3} {
		m := env.mission(t, n)
		assert.False(t, m.Complete)
		assert.Nil(t, m.CatID)
		require.Len(t, m.Targets, n)
		for i, tg := range m.Targets {
			assert.Equal(t, fmt.Sprintf("T%d", i), tg.Name)
			assert.Equal(t, m.ID, tg.MissionID)
			assert.False(t, tg.Complete)
		}
	}
}

func TestCreateMissionKeepsNotesAndOrder(t *testing.T) {
	env := newTestEnv(t)
	m, err := env.Engine.CreateMission(env.Ctx, []domain.NewTarget{
		{Name: "B", Country: "DE", Notes: "watch the bakery"},
		{Name: "A", Country: "FR"},
	})
	require.NoError(t, err)
	got, err := env.Engine.GetMission(env.Ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, got.Targets, 2)
	assert.Equal(t, "B", got.Targets[0].Name)
	assert.Equal(t, "watch the bakery", got.Targets[0].Notes)
	assert.Equal(t, "", got.Targets[1].Notes)
}

func TestAssignCat(t *testing.T) {
	env := newTestEnv(t)
	c := env.cat(t, "Tom")
	m1 := env.mission(t, 1)
	m2 := env.mission(t, 1)

	got, err := env.Engine.AssignCat(env.Ctx, m1.ID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CatID)
	assert.Equal(t, c.ID, *got.CatID)
	require.NotNil(t, got.Cat)
	assert.Equal(t, "Tom", got.Cat.Name)
	assert.False(t, got.Complete)

	_, err = env.Engine.AssignCat(env.Ctx, m1.ID, c.ID)
	require.NoError(t, err, "reassigning to the same mission must not self-block")

	_, err = env.Engine.AssignCat(env.Ctx, m2.ID, c.ID)
	var ae *engine.AssignmentError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, engine.ErrCatBusy)
	assert.Equal(t, m1.ID, ae.ActiveMissionID)

	after, err := env.Engine.GetMission(env.Ctx, m2.ID)
	require.NoError(t, err)
	assert.Nil(t, after.CatID)

	env.completeAll(t, m1)
	got, err = env.Engine.AssignCat(env.Ctx, m2.ID, c.ID)
	require.NoError(t, err, "cat with only complete missions is free")
	assert.Equal(t, c.ID, *got.CatID)
}

func TestAssignCatMissingEntities(t *testing.T) {
	env := newTestEnv(t)
	c := env.cat(t, "Tom")
	m := env.mission(t, 1)

	_, err := env.Engine.AssignCat(env.Ctx, m.ID+50, c.ID)
	var ae *engine.AssignmentError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	_, err = env.Engine.AssignCat(env.Ctx, m.ID, c.ID+50)
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestAssignCatConcurrentRace(t *testing.T) {
	env := newTestEnv(t)
	c := env.cat(t, "Tom")
	missions := []domain.Mission{env.mission(t, 1), env.mission(t, 1), env.mission(t, 1), env.mission(t, 1)}

	var wg sync.WaitGroup
	errs := make([]error, len(missions))
	for i, m := range missions {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = env.Engine.AssignCat(env.Ctx, id, c.ID)
		}(i, m.ID)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, engine.ErrCatBusy)
	}
	assert.Equal(t, 1, successes)
}

func TestListAvailableCats(t *testing.T) {
	env := newTestEnv(t)
	idle := env.cat(t, "Idle")
	busy := env.cat(t, "Busy")
	retired := env.cat(t, "Retired")

	m1 := env.mission(t, 1)
	_, err := env.Engine.AssignCat(env.Ctx, m1.ID, busy.ID)
	require.NoError(t, err)
	m2 := env.mission(t, 2)
	_, err = env.Engine.AssignCat(env.Ctx, m2.ID, retired.ID)
	require.NoError(t, err)
	env.completeAll(t, m2)

	cats, err := env.Engine.ListAvailableCats(env.Ctx)
	require.NoError(t, err)
	var names []string
	for _, c := range cats {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{idle.Name, retired.Name}, names)
}

func TestDeleteMission(t *testing.T) {
	env := newTestEnv(t)
	c := env.cat(t, "Tom")
	free := env.mission(t, 3)
	assigned := env.mission(t, 1)
	_, err := env.Engine.AssignCat(env.Ctx, assigned.ID, c.ID)
	require.NoError(t, err)

	ok, err := env.Engine.DeleteMission(env.Ctx, assigned.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = env.Engine.GetMission(env.Ctx, assigned.ID)
	require.NoError(t, err)

	env.completeAll(t, assigned)
	ok, err = env.Engine.DeleteMission(env.Ctx, assigned.ID)
	require.NoError(t, err)
	assert.False(t, ok, "completed missions with a cat stay undeletable")

	ok, err = env.Engine.DeleteMission(env.Ctx, free.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = env.Engine.GetMission(env.Ctx, free.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
	for _, tg := range free.Targets {
		_, err := env.Engine.GetTarget(env.Ctx, tg.ID)
		require.ErrorIs(t, err, repo.ErrNotFound)
	}

	ok, err = env.Engine.DeleteMission(env.Ctx, free.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateTargetAppliesOnlyProvidedFields(t *testing.T) {
	env := newTestEnv(t)
	m := env.mission(t, 2)
	tg := m.Targets[0]

	notes := "spotted at the cafe"
	got, err := env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: tg.ID, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, got.Notes)
	assert.False(t, got.Complete)

	done := true
	got, err = env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: tg.ID, Complete: &done})
	require.NoError(t, err)
	assert.Equal(t, notes, got.Notes)
	assert.True(t, got.Complete)

	mission, err := env.Engine.GetMission(env.Ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, mission.Complete, "one target still open")

	stored, err := env.Engine.GetTarget(env.Ctx, tg.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestUpdateTargetLocked(t *testing.T) {
	env := newTestEnv(t)
	m := env.mission(t, 2)
	done := true
	notes := "late edit"

	_, err := env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: m.Targets[0].ID, Complete: &done})
	require.NoError(t, err)

	_, err = env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: m.Targets[0].ID, Notes: &notes})
	var re *engine.RejectedError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, engine.ErrTargetLocked)

	stored, err := env.Engine.GetTarget(env.Ctx, m.Targets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Notes)

	_, err = env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: m.Targets[0].ID + 100, Notes: &notes})
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUpdateTargetReopenBeforeMissionCompletes(t *testing.T) {
	env := newTestEnv(t)
	m := env.mission(t, 2)
	undone := false
	got, err := env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: m.Targets[1].ID, Complete: &undone})
	require.NoError(t, err)
	assert.False(t, got.Complete)
}

func TestRecomputeCompletion(t *testing.T) {
	env := newTestEnv(t)
	m := env.mission(t, 3)

	got, err := env.Engine.RecomputeCompletion(env.Ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Complete)

	done := true
	for i, tg := range m.Targets {
		_, err := env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: tg.ID, Complete: &done})
		require.NoError(t, err)
		got, err = env.Engine.GetMission(env.Ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, i == len(m.Targets)-1, got.Complete, "after %d completions", i+1)
	}

	got, err = env.Engine.RecomputeCompletion(env.Ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Complete)

	_, err = env.Engine.RecomputeCompletion(env.Ctx, m.ID+99)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestMissionLifecycleScenario(t *testing.T) {
	env := newTestEnv(t)

	tom, err := env.Engine.CreateCat(env.Ctx, engine.CatCreateOptions{Name: "Tom", YearsOfExperience: 3, Breed: "Abyssinian", Salary: 1000})
	require.NoError(t, err)
	assert.NotZero(t, tom.ID)

	m, err := env.Engine.CreateMission(env.Ctx, []domain.NewTarget{{Name: "A", Country: "FR"}, {Name: "B", Country: "DE"}})
	require.NoError(t, err)
	assert.False(t, m.Complete)
	require.Len(t, m.Targets, 2)

	_, err = env.Engine.AssignCat(env.Ctx, m.ID, tom.ID)
	require.NoError(t, err)

	second := env.mission(t, 1)
	_, err = env.Engine.AssignCat(env.Ctx, second.ID, tom.ID)
	var ae *engine.AssignmentError
	require.ErrorAs(t, err, &ae)

	done := true
	_, err = env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: m.Targets[0].ID, Complete: &done})
	require.NoError(t, err)
	got, err := env.Engine.GetMission(env.Ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Complete)

	_, err = env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: m.Targets[1].ID, Complete: &done})
	require.NoError(t, err)
	got, err = env.Engine.GetMission(env.Ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Complete)

	notes := "too late"
	for _, tg := range m.Targets {
		_, err := env.Engine.UpdateTarget(env.Ctx, engine.TargetUpdateOptions{ID: tg.ID, Notes: &notes})
		var re *engine.RejectedError
		require.ErrorAs(t, err, &re)
	}
}
