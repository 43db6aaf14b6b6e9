package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/user"
)

const userColumns = "id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           int            `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return wrapErr(err, msg)
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	ids := make([]int64, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, int64(u.ID))
	}

	var rows []userRow
	err := sqlx.SelectContext(ctx, extContext(repo.db, exec), &rows,
		`SELECT `+userColumns+` FROM users WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3))`,
		null.NewString(username, username != ""), null.NewString(email, email != ""), pq.Int64Array(ids),
	)
	if err != nil {
		return wrapErr(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if username != "" && r.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := toUserRow(usr)
	err := sqlx.GetContext(ctx, extContext(repo.db, exec), &row.ID,
		`INSERT INTO users (name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		return user.User{}, wrapErr(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var where string
	var arg interface{}
	switch {
	case filter.ID != 0:
		where, arg = "id = $1", filter.ID
	case filter.Username != "":
		where, arg = "username = $1", filter.Username
	case filter.Email != "":
		where, arg = "email = $1", filter.Email
	case filter.UsernameOrEmail != "":
		where, arg = "(username = $1 OR email = $1)", filter.UsernameOrEmail
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := sqlx.GetContext(ctx, extContext(repo.db, exec), &row, `SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`, arg); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := toUserRow(usr)
	var updated userRow
	err := sqlx.GetContext(ctx, extContext(repo.db, exec), &updated,
		`UPDATE users SET name = $2, username = $3, email = $4, is_active = $5, roles = $6, password_hash = $7,
		updated_at = $8, last_login = $9 WHERE id = $1 RETURNING `+userColumns,
		row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return updated.user(), nil
}
