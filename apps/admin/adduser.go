package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/user"
)

// addUser updates or creates an active user.User with the given roles & password.
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = uname
	}
	for _, role := range roles {
		if user.RolePriority(role) == 0 {
			return errors.Errorf("unknown role %q", role)
		}
	}

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, lookup)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return errors.Wrap(err, "finding user")
		}
		if err = cli.usrSvc.CheckUniqueness(ctx, uname, email); err != nil {
			return err
		}
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{Name: name, Username: uname, Email: email, Password: pwd, Roles: roles})
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		fmt.Fprintf(cli.out, "created user %s (%s)\n", usr.Username, usr.ID)
		return nil
	}

	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	fmt.Fprintf(cli.out, "updated user %s (%s)\n", usr.Username, usr.ID)
	return nil
}
