package main

import "github.com/wartburg/mcsp/storage/database"

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}
