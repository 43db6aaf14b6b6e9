package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/wartburg/mcsp/core/course"
	"github.com/wartburg/mcsp/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errPwdMismatch = errors.New("passwords do not match")
	errNoDatabase  = errors.New("migrations need a postgres database (database.inMemory is set)")
)

type commandLine struct {
	db         *sql.DB // nil in database.inMemory mode
	validate   *validator.Validate
	translator ut.Translator
	usrSvc     *user.Service
	courseSvc  *course.Service
	out        io.Writer
	// set when the course cache is local to this process: the web app's cached
	// course lists are not invalidated and may stay stale this long
	staleCache time.Duration
}

func (cli *commandLine) printUsage() {
	cli.println("Usage:")
	cli.println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) over the embedded migrations")
	cli.println("  adduser -username USERNAME -email EMAIL [-name NAME] [-staff] [-admin] - create or update a user")
	cli.println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	cli.println("  importroster -instructor USERNAME|EMAIL -file PATH - create a course from a registrar class list")
}

func (cli *commandLine) println(a ...interface{}) {
	_, _ = fmt.Fprintln(cli.output(), a...)
}

func (cli *commandLine) output() io.Writer {
	if cli.out == nil {
		return os.Stdout
	}
	return cli.out
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	_, _ = fmt.Fprint(cli.output(), prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.println()
	return string(pwd), err
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.output())
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := cli.newFlagSet("adduser")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserStaff := addUserCmd.Bool("staff", true, "Grant access to the teacher pages.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")

	resetPasswordCmd := cli.newFlagSet("resetpassword")
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	importRosterCmd := cli.newFlagSet("importroster")
	importRosterInstr := importRosterCmd.String("instructor", "", "The instructor's username or email.")
	importRosterFile := importRosterCmd.String("file", "", "Path to the class list (.xls) exported from the registrar.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := parseFlags(addUserCmd, args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		confirm, err := cli.readPassword("Confirm password:")
		if err != nil {
			return err
		}
		roles := make([]string, 0, 2)
		if *addUserStaff {
			roles = append(roles, user.RoleStaff)
		}
		if *addUserAdmin {
			roles = append(roles, user.RoleAdmin)
		}
		return cli.addUser(user.NewUser{
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Password:        pwd,
			PasswordConfirm: confirm,
			Roles:           roles,
		})

	case "resetpassword":
		if err := parseFlags(resetPasswordCmd, args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "importroster":
		if err := parseFlags(importRosterCmd, args[2:]); err != nil {
			return err
		}
		if *importRosterInstr == "" || *importRosterFile == "" {
			importRosterCmd.Usage()
			return errHelp
		}
		return cli.importRoster(*importRosterInstr, *importRosterFile)

	default:
		cli.printUsage()
		return errHelp
	}
}
