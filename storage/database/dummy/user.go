package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/tutoria/tutoria/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	for _, u := range t.users {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	t.users = append(t.users, usr)
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	defer repo.db.lock(ctx)()
	if i := repo.db.t.userIdx(id); i >= 0 {
		return repo.db.t.users[i], nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	defer repo.db.lock(ctx)()
	for _, u := range repo.db.t.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByName(ctx context.Context, name string) (user.User, error) {
	defer repo.db.lock(ctx)()
	var (
		found user.User
		ok    bool
	)
	for _, u := range repo.db.t.users {
		if lowerEq(u.Name, name) && (!ok || u.CreatedAt.Before(found.CreatedAt)) {
			found, ok = u, true
		}
	}
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return found, nil
}

func (repo *userRepository) query(filter func(u user.User) bool) []user.User {
	users := make([]user.User, 0, len(repo.db.t.users))
	for _, u := range repo.db.t.users {
		if filter == nil || filter(u) {
			users = append(users, u)
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		ni, nj := strings.ToLower(users[i].Name), strings.ToLower(users[j].Name)
		if ni != nj {
			return ni < nj
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	defer repo.db.lock(ctx)()
	return repo.query(nil), nil
}

func (repo *userRepository) QueryUsersByRole(ctx context.Context, role string) ([]user.User, error) {
	defer repo.db.lock(ctx)()
	return repo.query(func(u user.User) bool { return u.Role == role }), nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	i := t.userIdx(id)
	if i < 0 {
		return user.ErrNotFound
	}
	if t.userReferenced(id) {
		return user.ErrUserInUse
	}

	t.users = append(t.users[:i:i], t.users[i+1:]...)
	teachers := t.teachers[:0:0]
	for _, m := range t.teachers {
		if m.TeacherID != id {
			teachers = append(teachers, m)
		}
	}
	students := t.students[:0:0]
	for _, m := range t.students {
		if m.StudentID != id {
			students = append(students, m)
		}
	}
	preferences := t.preferences[:0:0]
	for _, p := range t.preferences {
		if p.StudentID != id {
			preferences = append(preferences, p)
		}
	}
	t.teachers, t.students, t.preferences = teachers, students, preferences
	return nil
}

// userReferenced reports whether a restrict rule blocks the deletion of the user.
func (t *tables) userReferenced(id string) bool {
	for _, c := range t.classrooms {
		if c.CreatedBy == id {
			return true
		}
	}
	for _, s := range t.subjects {
		if s.CreatedBy == id {
			return true
		}
	}
	for _, d := range t.documents {
		if d.UploadedBy == id {
			return true
		}
	}
	for _, s := range t.chats {
		if s.StudentID == id {
			return true
		}
	}
	for _, e := range t.evaluations {
		if e.EvaluatorID == id {
			return true
		}
	}
	for _, s := range t.scores {
		if s.StudentID == id {
			return true
		}
	}
	for _, a := range t.attachments {
		if a.OwnerID == id {
			return true
		}
	}
	return false
}
