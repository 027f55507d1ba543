package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"spycats/internal/breeds"
	"spycats/internal/db"
	"spycats/internal/domain"
	"spycats/internal/metrics"
	"spycats/internal/repo"
)

// Default list window.
const (
	DefaultSkip  = 0
	DefaultLimit = 100
)

// BreedChecker confirms a breed name with the external registry.
type BreedChecker interface {
	Check(ctx context.Context, breed string) (bool, error)
}

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Breeds  BreedChecker
	Metrics *metrics.Recorder
	Logger  *zap.Logger
	Now     func() time.Time
}

func New(conn *sql.DB, dialect db.Dialect, checker BreedChecker) Engine {
	return Engine{
		DB:     conn,
		Repo:   repo.New(conn, dialect),
		Breeds: checker,
		Logger: zap.NewNop(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// finish records the outcome of an operation started at start.
func (e Engine) finish(op string, start time.Time, errp *error) {
	err := *errp
	result := metrics.ResultSuccess
	switch {
	case err == nil:
	case rejected(err):
		result = metrics.ResultRejected
		e.log().Info("operation rejected", zap.String("operation", op), zap.Error(err))
	default:
		result = metrics.ResultError
		e.log().Error("operation failed", zap.String("operation", op), zap.Error(err))
	}
	e.Metrics.Observe(op, result, e.now().Sub(start))
}

func validateWindow(skip, limit int) error {
	if skip < 0 {
		return &ValidationError{Field: "skip", Message: "must be non-negative"}
	}
	if limit < 0 {
		return &ValidationError{Field: "limit", Message: "must be non-negative"}
	}
	return nil
}

// CatCreateOptions are parameters for recruiting a cat.
type CatCreateOptions struct {
	Name              string
	YearsOfExperience int
	Breed             string
	Salary            float64
}

// CreateCat validates the numeric fields, then the breed, then persists the cat.
func (e Engine) CreateCat(ctx context.Context, opts CatCreateOptions) (cat domain.Cat, err error) {
	defer e.finish("create_cat", e.now(), &err)
	if opts.YearsOfExperience < 0 {
		return domain.Cat{}, &ValidationError{Field: "years_of_experience", Message: "must be non-negative"}
	}
	if opts.Salary < 0 {
		return domain.Cat{}, &ValidationError{Field: "salary", Message: "must be non-negative"}
	}
	if err := e.checkBreed(ctx, opts.Breed); err != nil {
		return domain.Cat{}, err
	}
	cat, err = e.Repo.InsertCat(ctx, domain.Cat{
		Name:              opts.Name,
		YearsOfExperience: opts.YearsOfExperience,
		Breed:             opts.Breed,
		Salary:            opts.Salary,
	})
	if err != nil {
		return domain.Cat{}, fmt.Errorf("insert cat: %w", err)
	}
	return cat, nil
}

func (e Engine) checkBreed(ctx context.Context, breed string) error {
	if e.Breeds == nil {
		return &ValidationError{Field: "breed", Message: "no breed registry configured", Err: breeds.ErrRegistryUnavailable}
	}
	ok, err := e.Breeds.Check(ctx, breed)
	if err != nil {
		e.log().Warn("breed validation failed closed", zap.String("breed", breed), zap.Error(err))
		return &ValidationError{Field: "breed", Message: fmt.Sprintf("could not verify breed %q: registry unavailable", breed), Err: err}
	}
	if !ok {
		return &ValidationError{Field: "breed", Message: fmt.Sprintf("unknown breed %q", breed)}
	}
	return nil
}

func (e Engine) GetCat(ctx context.Context, id int64) (domain.Cat, error) {
	return e.Repo.GetCat(ctx, id)
}

func (e Engine) ListCats(ctx context.Context, skip, limit int) ([]domain.Cat, error) {
	if err := validateWindow(skip, limit); err != nil {
		return nil, err
	}
	return e.Repo.ListCats(ctx, skip, limit)
}

// ListAvailableCats returns cats with no incomplete mission.
func (e Engine) ListAvailableCats(ctx context.Context) ([]domain.Cat, error) {
	return e.Repo.ListAvailableCats(ctx)
}

// UpdateCatSalary changes the only field of a cat that is mutable after creation.
func (e Engine) UpdateCatSalary(ctx context.Context, id int64, salary float64) (cat domain.Cat, err error) {
	defer e.finish("update_cat_salary", e.now(), &err)
	if salary < 0 {
		return domain.Cat{}, &ValidationError{Field: "salary", Message: "must be non-negative"}
	}
	if err := e.Repo.UpdateCatSalary(ctx, id, salary); err != nil {
		return domain.Cat{}, err
	}
	return e.Repo.GetCat(ctx, id)
}

// DeleteCat removes the cat unconditionally. Missions it was assigned to become unassigned.
func (e Engine) DeleteCat(ctx context.Context, id int64) (deleted bool, err error) {
	defer e.finish("delete_cat", e.now(), &err)
	tx, err := e.Repo.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.LockCatTx(ctx, tx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	n, err := e.Repo.UnassignCatTx(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("unassign cat: %w", err)
	}
	if err := e.Repo.DeleteCatTx(ctx, tx, id); err != nil {
		return false, fmt.Errorf("delete cat: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	if n > 0 {
		e.log().Info("missions unassigned", zap.Int64("cat_id", id), zap.Int64("missions", n))
	}
	return true, nil
}

// CreateMission stores an unassigned mission with its targets in one transaction.
func (e Engine) CreateMission(ctx context.Context, targets []domain.NewTarget) (m domain.Mission, err error) {
	defer e.finish("create_mission", e.now(), &err)
	if len(targets) < domain.MinTargets || len(targets) > domain.MaxTargets {
		return domain.Mission{}, &ValidationError{
			Field:   "targets",
			Message: fmt.Sprintf("a mission needs between %d and %d targets, got %d", domain.MinTargets, domain.MaxTargets, len(targets)),
		}
	}
	tx, err := e.Repo.BeginTx(ctx)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()

	m, err = e.Repo.InsertMissionTx(ctx, tx)
	if err != nil {
		return domain.Mission{}, fmt.Errorf("insert mission: %w", err)
	}
	for i, nt := range targets {
		t, err := e.Repo.InsertTargetTx(ctx, tx, m.ID, nt)
		if err != nil {
			return domain.Mission{}, fmt.Errorf("insert target %d: %w", i, err)
		}
		m.Targets = append(m.Targets, t)
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}
	return m, nil
}

func (e Engine) GetMission(ctx context.Context, id int64) (domain.Mission, error) {
	return e.Repo.GetMission(ctx, id)
}

func (e Engine) ListMissions(ctx context.Context, skip, limit int) ([]domain.Mission, error) {
	if err := validateWindow(skip, limit); err != nil {
		return nil, err
	}
	return e.Repo.ListMissions(ctx, skip, limit)
}

// AssignCat links a cat to a mission. The existence checks, the active-mission
// check and the write share one transaction with the cat row locked.
func (e Engine) AssignCat(ctx context.Context, missionID, catID int64) (m domain.Mission, err error) {
	defer e.finish("assign_cat", e.now(), &err)
	tx, err := e.Repo.BeginTx(ctx)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.LockMissionTx(ctx, tx, missionID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Mission{}, &AssignmentError{MissionID: missionID, CatID: catID, Err: fmt.Errorf("mission %d: %w", missionID, err)}
		}
		return domain.Mission{}, err
	}
	if _, err := e.Repo.LockCatTx(ctx, tx, catID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Mission{}, &AssignmentError{MissionID: missionID, CatID: catID, Err: fmt.Errorf("cat %d: %w", catID, err)}
		}
		return domain.Mission{}, err
	}
	activeID, err := e.Repo.ActiveMissionIDTx(ctx, tx, catID, missionID)
	switch {
	case err == nil:
		return domain.Mission{}, &AssignmentError{MissionID: missionID, CatID: catID, ActiveMissionID: activeID, Err: ErrCatBusy}
	case !errors.Is(err, repo.ErrNotFound):
		return domain.Mission{}, err
	}
	if err := e.Repo.SetMissionCatTx(ctx, tx, missionID, &catID); err != nil {
		return domain.Mission{}, fmt.Errorf("assign cat: %w", err)
	}
	m, err = e.Repo.GetMissionTx(ctx, tx, missionID)
	if err != nil {
		return domain.Mission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}
	return m, nil
}

// DeleteMission removes an unassigned mission and its targets. It reports false
// when the mission is missing or has a cat assigned.
func (e Engine) DeleteMission(ctx context.Context, id int64) (deleted bool, err error) {
	defer e.finish("delete_mission", e.now(), &err)
	tx, err := e.Repo.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	m, err := e.Repo.LockMissionTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if m.Assigned() {
		e.log().Info("mission not deletable while assigned", zap.Int64("mission_id", id), zap.Int64("cat_id", *m.CatID))
		return false, nil
	}
	if err := e.Repo.DeleteMissionTx(ctx, tx, id); err != nil {
		return false, fmt.Errorf("delete mission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// RecomputeCompletion sets the mission's complete flag to the conjunction of its targets' flags.
func (e Engine) RecomputeCompletion(ctx context.Context, missionID int64) (m domain.Mission, err error) {
	defer e.finish("recompute_completion", e.now(), &err)
	tx, err := e.Repo.BeginTx(ctx)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.LockMissionTx(ctx, tx, missionID); err != nil {
		return domain.Mission{}, err
	}
	if err := e.recomputeTx(ctx, tx, missionID); err != nil {
		return domain.Mission{}, err
	}
	m, err = e.Repo.GetMissionTx(ctx, tx, missionID)
	if err != nil {
		return domain.Mission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}
	return m, nil
}

func (e Engine) recomputeTx(ctx context.Context, tx *sql.Tx, missionID int64) error {
	targets, err := e.Repo.ListTargetsTx(ctx, tx, missionID)
	if err != nil {
		return err
	}
	complete := true
	for _, t := range targets {
		complete = complete && t.Complete
	}
	if err := e.Repo.SetMissionCompleteTx(ctx, tx, missionID, complete); err != nil {
		return fmt.Errorf("set mission complete: %w", err)
	}
	return nil
}

func (e Engine) GetTarget(ctx context.Context, id int64) (domain.Target, error) {
	return e.Repo.GetTarget(ctx, id)
}

// TargetUpdateOptions carries the fields to change; nil fields are left as they are.
type TargetUpdateOptions struct {
	ID       int64
	Notes    *string
	Complete *bool
}

// UpdateTarget applies the provided fields to an unlocked target and recomputes
// the owning mission's completion in the same transaction.
func (e Engine) UpdateTarget(ctx context.Context, opts TargetUpdateOptions) (t domain.Target, err error) {
	defer e.finish("update_target", e.now(), &err)
	tx, err := e.Repo.BeginTx(ctx)
	if err != nil {
		return domain.Target{}, err
	}
	defer tx.Rollback()

	t, err = e.Repo.LockTargetTx(ctx, tx, opts.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Target{}, &RejectedError{TargetID: opts.ID, Err: fmt.Errorf("target %d: %w", opts.ID, err)}
		}
		return domain.Target{}, err
	}
	m, err := e.Repo.LockMissionTx(ctx, tx, t.MissionID)
	if err != nil {
		return domain.Target{}, fmt.Errorf("load mission %d: %w", t.MissionID, err)
	}
	if t.Locked(m.Complete) {
		reason := fmt.Errorf("%w: target complete", ErrTargetLocked)
		if m.Complete {
			reason = fmt.Errorf("%w: mission %d complete", ErrTargetLocked, m.ID)
		}
		return domain.Target{}, &RejectedError{TargetID: opts.ID, Err: reason}
	}
	if opts.Notes != nil {
		t.Notes = *opts.Notes
	}
	if opts.Complete != nil {
		t.Complete = *opts.Complete
	}
	if err := e.Repo.UpdateTargetTx(ctx, tx, t); err != nil {
		return domain.Target{}, fmt.Errorf("update target: %w", err)
	}
	if err := e.recomputeTx(ctx, tx, t.MissionID); err != nil {
		return domain.Target{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Target{}, err
	}
	return t, nil
}
