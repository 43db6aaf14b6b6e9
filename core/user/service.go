package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrUsernameExists       = errors.New("a user with this username already exists")
	ErrAuthenticationFailed = errors.New("please enter a correct username and password")
	ErrAccountDeactivated   = errors.New("this account is inactive")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user
		// (not in excludedUsers) already holds the username or email.
		CheckUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create creates a new active User from validated NewUser data.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := nowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     cleanRoles(nu.Roles),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// Authenticate checks the credentials and records the login time.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin = nowFunc().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// SetPassword replaces the password of the given User.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// UpdateOrCreate saves usr, creating it when it has no ID yet.
func (svc *Service) UpdateOrCreate(ctx context.Context, usr User) (User, error) {
	now := nowFunc().UTC()
	usr.UpdatedAt = now
	if usr.ID == 0 {
		usr.CreatedAt = now
		return svc.repo.CreateUser(ctx, usr)
	}
	return svc.repo.UpdateUser(ctx, usr)
}
