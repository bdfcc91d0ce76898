package user

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tutoria/tutoria/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("user")
	ErrEmailExists = core.NewConflictError("a user with this email already exists")
	ErrUserInUse   = core.NewReferentialIntegrityError("user is referenced by classrooms, subjects, chats, evaluations, progress or attachments")
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// GetUserByName matches case-insensitively; the oldest user wins on homonyms.
		GetUserByName(ctx context.Context, name string) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		QueryUsersByRole(ctx context.Context, role string) ([]User, error)
		// DeleteUser returns ErrUserInUse when a restrict rule blocks the deletion.
		DeleteUser(ctx context.Context, id string) error
	}

	Service struct {
		repo      Repository
		validator *core.Validator
	}
)

func NewService(repo Repository, validator *core.Validator) *Service {
	return &Service{repo: repo, validator: validator}
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validator); err != nil {
		return User{}, err
	}
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: core.NowFunc(),
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

// QueryByRole lists the users of the given role ordered by name.
func (svc *Service) QueryByRole(ctx context.Context, role string) ([]User, error) {
	role = core.CleanString(role, true /* lower */)
	if !IsValidRole(role) {
		return nil, core.NewFieldError("role", roleText)
	}
	return svc.repo.QueryUsersByRole(ctx, role)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// GetByLogin looks a user up by email first, then by name.
func (svc *Service) GetByLogin(ctx context.Context, login string) (User, error) {
	login = core.CleanString(login)
	if login == "" {
		return User{}, ErrNotFound
	}
	usr, err := svc.GetByEmail(ctx, login)
	if err == nil || !core.IsNotFound(err) {
		return usr, err
	}
	return svc.repo.GetUserByName(ctx, login)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUser(ctx, id)
}
