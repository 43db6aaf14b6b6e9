package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// importRoster creates a course from a class list, as the course upload page does.
func (cli *commandLine) importRoster(instructor, path string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, instructor)
	if err != nil {
		return err
	}
	if !usr.IsStaff() {
		return errors.Errorf("%s is not a staff user", usr.DisplayName())
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening class list")
	}
	defer f.Close()

	crs, err := cli.courseSvc.Import(ctx, usr, filepath.Base(path), f)
	if err != nil {
		return err
	}
	cli.println(fmt.Sprintf("imported %s %q (%s): %d student(s), course id %d", crs.Code, crs.Title, crs.Term, crs.NumStudents, crs.ID))
	if cli.staleCache > 0 {
		cli.println(fmt.Sprintf("warning: redis.url is not set, running web servers may list the instructor's old courses for up to %s", cli.staleCache))
	}
	return nil
}
