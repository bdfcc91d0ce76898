package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tutoria/tutoria/core/user"
)

var userColumns = []string{"id", "name", "email", "password_hash", "role", "created_at"}

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
		Role:         usr.Role,
		CreatedAt:    usr.CreatedAt.UTC(),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	const q = `INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES (:id, :name, :email, :password_hash, :role, :created_at)`
	if err := repo.db.namedExec(ctx, q, newUserRow(usr)); err != nil {
		return user.User{}, translate(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) getUser(ctx context.Context, where sq.Sqlizer, msg string) (user.User, error) {
	var row userRow
	q := psql.Select(userColumns...).From("users").Where(where).OrderBy("created_at", "id").Limit(1)
	if err := repo.db.get(ctx, &row, q); err != nil {
		return user.User{}, trapNoRows(err, msg, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, sq.Eq{"id": id}, "finding user by ID")
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"email": email}, "finding user by email")
}

func (repo userRepository) GetUserByName(ctx context.Context, name string) (user.User, error) {
	return repo.getUser(ctx, sq.Expr("lower(name) = lower(?)", name), "finding user by name")
}

func (repo userRepository) queryUsers(ctx context.Context, where sq.Sqlizer) ([]user.User, error) {
	var rows []userRow
	q := psql.Select(userColumns...).From("users").OrderBy("lower(name)", "created_at")
	if where != nil {
		q = q.Where(where)
	}
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	return repo.queryUsers(ctx, nil)
}

func (repo userRepository) QueryUsersByRole(ctx context.Context, role string) ([]user.User, error) {
	return repo.queryUsers(ctx, sq.Eq{"role": role})
}

func (repo userRepository) DeleteUser(ctx context.Context, id string) error {
	if !isUUID(id) {
		return user.ErrNotFound
	}
	n, err := repo.db.exec(ctx, psql.Delete("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return translateDelete(err, "deleting user", user.ErrUserInUse)
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
