package repo

import (
	"context"
	"database/sql"

	"spycats/internal/domain"
)

const targetColumns = `id,mission_id,name,country,notes,complete`

func scanTarget(row rowScanner) (domain.Target, error) {
	var t domain.Target
	err := row.Scan(&t.ID, &t.MissionID, &t.Name, &t.Country, &t.Notes, &t.Complete)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) InsertTargetTx(ctx context.Context, tx *sql.Tx, missionID int64, nt domain.NewTarget) (domain.Target, error) {
	t := domain.Target{
		MissionID: missionID,
		Name:      nt.Name,
		Country:   nt.Country,
		Notes:     nt.Notes,
	}
	err := tx.QueryRowContext(ctx, r.q(`INSERT INTO targets(mission_id,name,country,notes,complete) VALUES (?,?,?,?,FALSE) RETURNING id`),
		t.MissionID, t.Name, t.Country, t.Notes).Scan(&t.ID)
	return t, err
}

func (r Repo) GetTarget(ctx context.Context, id int64) (domain.Target, error) {
	return scanTarget(r.DB.QueryRowContext(ctx, r.q(`SELECT `+targetColumns+` FROM targets WHERE id=?`), id))
}

// LockTargetTx reads the target and holds its row until the transaction ends.
func (r Repo) LockTargetTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Target, error) {
	return scanTarget(tx.QueryRowContext(ctx, r.q(`SELECT `+targetColumns+` FROM targets WHERE id=?`+r.Dialect.ForUpdate()), id))
}

// ListTargets returns a mission's targets in creation order.
func (r Repo) ListTargets(ctx context.Context, missionID int64) ([]domain.Target, error) {
	return r.listTargets(ctx, r.DB, missionID)
}

func (r Repo) ListTargetsTx(ctx context.Context, tx *sql.Tx, missionID int64) ([]domain.Target, error) {
	return r.listTargets(ctx, tx, missionID)
}

func (r Repo) listTargets(ctx context.Context, q queryer, missionID int64) ([]domain.Target, error) {
	rows, err := q.QueryContext(ctx, r.q(`SELECT `+targetColumns+` FROM targets WHERE mission_id=? ORDER BY id ASC`), missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Target{}
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// UpdateTargetTx persists the mutable fields of a target.
func (r Repo) UpdateTargetTx(ctx context.Context, tx *sql.Tx, t domain.Target) error {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE targets SET notes=?, complete=? WHERE id=?`), t.Notes, t.Complete, t.ID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}
