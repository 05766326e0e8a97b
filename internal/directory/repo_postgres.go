package directory

import (
	"context"
	"database/sql"
	"fmt"

	"callcenter-platform/pkg/utils"
)

// NOTE: This repository assumes the tables in migrations/001_init.sql:
// - centers
// - users (login_token UNIQUE, center_id REFERENCES centers ON DELETE RESTRICT)
// - profiles (email UNIQUE)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

/* ===================== CENTERS ===================== */

func (r *PostgresRepo) InsertCenter(ctx context.Context, c Center) error {
	const q = `
INSERT INTO centers (id, name, timezone, address, phone, created_at)
VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6)
`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.Name, c.Timezone, c.Address, c.Phone, c.CreatedAt)
	return err
}

func (r *PostgresRepo) UpdateCenter(ctx context.Context, c Center) error {
	const q = `
UPDATE centers
SET name = $2, timezone = $3, address = NULLIF($4,''), phone = NULLIF($5,'')
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, c.ID, c.Name, c.Timezone, c.Address, c.Phone)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *PostgresRepo) DeleteCenter(ctx context.Context, id string) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the center so no user can be assigned between the check and the delete.
		const lockQ = `SELECT id FROM centers WHERE id = $1 FOR UPDATE`
		var got string
		if err := tx.QueryRowContext(ctx, lockQ, id).Scan(&got); err != nil {
			if utils.IsNoRows(err) {
				return ErrNotFound
			}
			return err
		}

		const countQ = `SELECT count(*) FROM users WHERE center_id = $1`
		var n int
		if err := tx.QueryRowContext(ctx, countQ, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrCenterInUse
		}

		const delQ = `DELETE FROM centers WHERE id = $1`
		if _, err := tx.ExecContext(ctx, delQ, id); err != nil {
			if utils.IsForeignKeyViolation(err) {
				return ErrCenterInUse
			}
			return err
		}
		return nil
	})
}

func (r *PostgresRepo) GetCenter(ctx context.Context, id string) (Center, error) {
	const q = `
SELECT id, name, timezone, COALESCE(address,''), COALESCE(phone,''), created_at
FROM centers
WHERE id = $1
`
	var c Center
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.Timezone, &c.Address, &c.Phone, &c.CreatedAt); err != nil {
		if utils.IsNoRows(err) {
			return Center{}, ErrNotFound
		}
		return Center{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListCenters(ctx context.Context) ([]Center, error) {
	const q = `
SELECT id, name, timezone, COALESCE(address,''), COALESCE(phone,''), created_at
FROM centers
ORDER BY name ASC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Center, 0)
	for rows.Next() {
		var c Center
		if err := rows.Scan(&c.ID, &c.Name, &c.Timezone, &c.Address, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

/* ===================== USERS ===================== */

func (r *PostgresRepo) InsertUser(ctx context.Context, u User) error {
	const q = `
INSERT INTO users (id, full_name, login_token, center_id, created_at)
VALUES ($1, $2, $3, NULLIF($4,'')::uuid, $5)
`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.FullName, u.LoginToken, u.CenterID, u.CreatedAt)
	return mapWriteErr(err)
}

func (r *PostgresRepo) UpdateUser(ctx context.Context, u User) error {
	const q = `
UPDATE users
SET full_name = $2, login_token = $3, center_id = NULLIF($4,'')::uuid
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, u.ID, u.FullName, u.LoginToken, u.CenterID)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepo) DeleteUser(ctx context.Context, id string) error {
	const q = `DELETE FROM users WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepo) GetUser(ctx context.Context, id string) (User, error) {
	const q = `
SELECT id, full_name, login_token, COALESCE(center_id::text,''), created_at
FROM users
WHERE id = $1
`
	var u User
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.FullName, &u.LoginToken, &u.CenterID, &u.CreatedAt); err != nil {
		if utils.IsNoRows(err) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepo) ListUsers(ctx context.Context, f UserFilter) ([]User, error) {
	const q = `
SELECT id, full_name, login_token, COALESCE(center_id::text,''), created_at
FROM users
WHERE ($1 = '' OR center_id::text = $1)
  AND ($2 = '' OR full_name ILIKE '%' || $2 || '%')
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`
	rows, err := r.db.QueryContext(ctx, q, f.CenterID, f.Search, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.FullName, &u.LoginToken, &u.CenterID, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) AccountByToken(ctx context.Context, token string) (Account, error) {
	const q = `
SELECT u.id, u.full_name, u.login_token, COALESCE(u.center_id::text,''), u.created_at, COALESCE(c.timezone,'')
FROM users u
LEFT JOIN centers c ON c.id = u.center_id
WHERE u.login_token = $1
`
	var a Account
	if err := r.db.QueryRowContext(ctx, q, token).Scan(
		&a.ID,
		&a.FullName,
		&a.LoginToken,
		&a.CenterID,
		&a.CreatedAt,
		&a.Timezone,
	); err != nil {
		if utils.IsNoRows(err) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

/* ===================== PROFILES ===================== */

func (r *PostgresRepo) InsertProfile(ctx context.Context, p Profile) error {
	const q = `
INSERT INTO profiles (id, email, full_name, role, center_id, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5,'')::uuid, $6)
`
	_, err := r.db.ExecContext(ctx, q, p.ID, p.Email, p.FullName, p.Role, p.CenterID, p.CreatedAt)
	return mapWriteErr(err)
}

func (r *PostgresRepo) UpdateProfile(ctx context.Context, p Profile) error {
	const q = `
UPDATE profiles
SET full_name = $2, role = $3, center_id = NULLIF($4,'')::uuid
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, p.ID, p.FullName, p.Role, p.CenterID)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepo) GetProfile(ctx context.Context, id string) (Profile, error) {
	const q = `
SELECT id, email, full_name, role, COALESCE(center_id::text,''), created_at
FROM profiles
WHERE id = $1
`
	var p Profile
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.CenterID, &p.CreatedAt); err != nil {
		if utils.IsNoRows(err) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

func (r *PostgresRepo) ListProfiles(ctx context.Context) ([]Profile, error) {
	const q = `
SELECT id, email, full_name, role, COALESCE(center_id::text,''), created_at
FROM profiles
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Profile, 0)
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.CenterID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case utils.IsUniqueViolation(err, ""):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case utils.IsForeignKeyViolation(err), utils.IsNoRows(err):
		// Unknown center id.
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return err
	}
}
