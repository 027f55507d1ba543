package repo

import (
	"context"
	"database/sql"

	"spycats/internal/domain"
)

func scanMission(row rowScanner) (domain.Mission, error) {
	var m domain.Mission
	var catID sql.NullInt64
	err := row.Scan(&m.ID, &catID, &m.Complete)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.CatID = idPtr(catID)
	return m, nil
}

// InsertMissionTx creates an unassigned, incomplete mission row.
func (r Repo) InsertMissionTx(ctx context.Context, tx *sql.Tx) (domain.Mission, error) {
	m := domain.Mission{Targets: []domain.Target{}}
	err := tx.QueryRowContext(ctx, `INSERT INTO missions(cat_id, complete) VALUES (NULL, FALSE) RETURNING id`).Scan(&m.ID)
	return m, err
}

// GetMission loads a mission with its assigned cat and ordered targets.
func (r Repo) GetMission(ctx context.Context, id int64) (domain.Mission, error) {
	return r.getMission(ctx, r.DB, id)
}

func (r Repo) GetMissionTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Mission, error) {
	return r.getMission(ctx, tx, id)
}

func (r Repo) getMission(ctx context.Context, q queryer, id int64) (domain.Mission, error) {
	m, err := scanMission(q.QueryRowContext(ctx, r.q(`SELECT id,cat_id,complete FROM missions WHERE id=?`), id))
	if err != nil {
		return m, err
	}
	if err := r.loadRelations(ctx, q, &m); err != nil {
		return m, err
	}
	return m, nil
}

// LockMissionTx reads the bare mission row and holds it until the transaction ends.
func (r Repo) LockMissionTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Mission, error) {
	return scanMission(tx.QueryRowContext(ctx, r.q(`SELECT id,cat_id,complete FROM missions WHERE id=?`+r.Dialect.ForUpdate()), id))
}

func (r Repo) loadRelations(ctx context.Context, q queryer, m *domain.Mission) error {
	targets, err := r.listTargets(ctx, q, m.ID)
	if err != nil {
		return err
	}
	m.Targets = targets
	m.Cat = nil
	if m.CatID != nil {
		c, err := r.getCat(ctx, q, *m.CatID, false)
		if err == nil {
			m.Cat = &c
		} else if err != ErrNotFound {
			return err
		}
	}
	return nil
}

// ListMissions returns missions in creation order within the skip/limit window.
func (r Repo) ListMissions(ctx context.Context, skip, limit int) ([]domain.Mission, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,cat_id,complete FROM missions ORDER BY id ASC LIMIT ? OFFSET ?`), limit, skip)
	if err != nil {
		return nil, err
	}
	res := []domain.Mission{}
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range res {
		if err := r.loadRelations(ctx, r.DB, &res[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ActiveMissionIDTx returns an incomplete mission assigned to the cat other than exclude.
func (r Repo) ActiveMissionIDTx(ctx context.Context, tx *sql.Tx, catID, exclude int64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, r.q(`SELECT id FROM missions WHERE cat_id=? AND complete=FALSE AND id<>? ORDER BY id ASC LIMIT 1`),
		catID, exclude).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

func (r Repo) SetMissionCatTx(ctx context.Context, tx *sql.Tx, missionID int64, catID *int64) error {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE missions SET cat_id=? WHERE id=?`), nullableID(catID), missionID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// UnassignCatTx clears the cat from every mission it holds, complete or not.
func (r Repo) UnassignCatTx(ctx context.Context, tx *sql.Tx, catID int64) (int64, error) {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE missions SET cat_id=NULL WHERE cat_id=?`), catID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) SetMissionCompleteTx(ctx context.Context, tx *sql.Tx, missionID int64, complete bool) error {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE missions SET complete=? WHERE id=?`), complete, missionID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// DeleteMissionTx removes the mission's targets and then the mission itself.
func (r Repo) DeleteMissionTx(ctx context.Context, tx *sql.Tx, missionID int64) error {
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM targets WHERE mission_id=?`), missionID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM missions WHERE id=?`), missionID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}
