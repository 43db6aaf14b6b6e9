package inmemdb

import (
	"context"
	"sort"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	excluded := make(map[int]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}

	var err error
	repo.db.read(exec, func(t tables) {
		for _, usr := range sortedUsers(t) {
			if excluded[usr.ID] {
				continue
			}
			if username != "" && usr.Username == username {
				err = user.ErrUsernameExists
				return
			}
			if email != "" && usr.Email == email {
				err = user.ErrEmailExists
				return
			}
		}
	})
	return err
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	repo.db.write(exec, func(t tables) {
		usr.ID = t.nextID("users")
		t.users[usr.ID] = usr
	})
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var found user.User
	var ok bool
	repo.db.read(exec, func(t tables) {
		if filter.ID != 0 {
			found, ok = t.users[filter.ID]
			return
		}
		for _, usr := range sortedUsers(t) {
			switch {
			case filter.Username != "":
				ok = usr.Username == filter.Username
			case filter.Email != "":
				ok = usr.Email == filter.Email
			case filter.UsernameOrEmail != "":
				ok = usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail
			}
			if ok {
				found = usr
				return
			}
		}
	})
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return found, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	var ok bool
	repo.db.write(exec, func(t tables) {
		if _, ok = t.users[usr.ID]; ok {
			t.users[usr.ID] = usr
		}
	})
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func sortedUsers(t tables) []user.User {
	users := make([]user.User, 0, len(t.users))
	for _, u := range t.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}
