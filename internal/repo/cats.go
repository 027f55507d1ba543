package repo

import (
	"context"
	"database/sql"

	"spycats/internal/domain"
)

const catColumns = `id,name,years_of_experience,breed,salary`

func scanCat(row rowScanner) (domain.Cat, error) {
	var c domain.Cat
	err := row.Scan(&c.ID, &c.Name, &c.YearsOfExperience, &c.Breed, &c.Salary)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func scanCats(rows *sql.Rows) ([]domain.Cat, error) {
	defer rows.Close()
	res := []domain.Cat{}
	for rows.Next() {
		c, err := scanCat(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertCat(ctx context.Context, c domain.Cat) (domain.Cat, error) {
	err := r.DB.QueryRowContext(ctx, r.q(`INSERT INTO cats(name,years_of_experience,breed,salary) VALUES (?,?,?,?) RETURNING id`),
		c.Name, c.YearsOfExperience, c.Breed, c.Salary).Scan(&c.ID)
	return c, err
}

func (r Repo) GetCat(ctx context.Context, id int64) (domain.Cat, error) {
	return r.getCat(ctx, r.DB, id, false)
}

func (r Repo) GetCatTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Cat, error) {
	return r.getCat(ctx, tx, id, false)
}

// LockCatTx reads the cat and holds its row until the transaction ends.
func (r Repo) LockCatTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Cat, error) {
	return r.getCat(ctx, tx, id, true)
}

func (r Repo) getCat(ctx context.Context, q queryer, id int64, lock bool) (domain.Cat, error) {
	query := `SELECT ` + catColumns + ` FROM cats WHERE id=?`
	if lock {
		query += r.Dialect.ForUpdate()
	}
	return scanCat(q.QueryRowContext(ctx, r.q(query), id))
}

// ListCats returns cats in creation order within the skip/limit window.
func (r Repo) ListCats(ctx context.Context, skip, limit int) ([]domain.Cat, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT `+catColumns+` FROM cats ORDER BY id ASC LIMIT ? OFFSET ?`), limit, skip)
	if err != nil {
		return nil, err
	}
	return scanCats(rows)
}

// ListAvailableCats returns cats without an incomplete mission assigned to them.
func (r Repo) ListAvailableCats(ctx context.Context) ([]domain.Cat, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+catColumns+` FROM cats c
WHERE NOT EXISTS (
	SELECT 1 FROM missions m WHERE m.cat_id = c.id AND m.complete = FALSE
)
ORDER BY c.id ASC`)
	if err != nil {
		return nil, err
	}
	return scanCats(rows)
}

func (r Repo) UpdateCatSalary(ctx context.Context, id int64, salary float64) error {
	res, err := r.DB.ExecContext(ctx, r.q(`UPDATE cats SET salary=? WHERE id=?`), salary, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) DeleteCatTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM cats WHERE id=?`), id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}
