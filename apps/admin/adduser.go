package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/user"
)

// addUser creates a user.User, or updates the password & roles of an existing one.
func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()

	uname := nu.Username
	if uname == "" {
		uname = nu.Email
	}
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return core.TranslateValidationErrors(err, cli.translator)
		}
		if usr, err = cli.usrSvc.Create(ctx, nu); err != nil {
			return err
		}
		cli.println(fmt.Sprintf("created user %q (id %d)", usr.DisplayName(), usr.ID))
		return nil
	}

	if nu.Password != nu.PasswordConfirm {
		return errPwdMismatch
	}
	if nu.Name = core.CleanString(nu.Name); nu.Name != "" {
		usr.Name = nu.Name
	}
	for _, role := range nu.Roles {
		usr.AddRole(role)
	}
	usr.IsActive = true
	if err = usr.SetPassword(nu.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if usr, err = cli.usrSvc.UpdateOrCreate(ctx, usr); err != nil {
		return err
	}
	cli.println(fmt.Sprintf("updated user %q (id %d)", usr.DisplayName(), usr.ID))
	return nil
}
