package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
	"github.com/wartburg/mcsp/core/user"
	cachesvc "github.com/wartburg/mcsp/services/cache"
	emailsvc "github.com/wartburg/mcsp/services/email"
	logsvc "github.com/wartburg/mcsp/services/logger"
	"github.com/wartburg/mcsp/storage/database"
	inmemdb "github.com/wartburg/mcsp/storage/database/inmem"
	sqlxrepos "github.com/wartburg/mcsp/storage/database/sqlx"
	"github.com/wartburg/mcsp/storage/files"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.New("ADMIN : ", conf)
	core.ParseEmailTemplates(logger)

	var (
		db         *sql.DB
		tx         core.Transactor
		usrRepo    user.Repository
		courseRepo course.Repository
	)
	if conf.Database.InMemory {
		mem := inmemdb.Open()
		tx, usrRepo, courseRepo = mem, inmemdb.NewUserRepository(mem), inmemdb.NewCourseRepository(mem)
	} else {
		ctx := context.Background()
		errAndDie(database.CreateIfNotExist(ctx, conf))
		sqlxDB, err := database.Open(ctx, conf)
		errAndDie(err)
		defer sqlxDB.Close()
		db = sqlxDB.DB
		tx, usrRepo, courseRepo = database.NewTransactor(sqlxDB), sqlxrepos.NewUserRepository(sqlxDB), sqlxrepos.NewCourseRepository(sqlxDB)
	}

	fileStorage, err := files.New(conf)
	errAndDie(err)
	cache, err := cachesvc.New(conf)
	errAndDie(err)

	translator := core.NewTranslator()
	validate := core.NewValidate(translator)
	user.InitValidators(validate, translator)

	cli := commandLine{
		db:         db,
		validate:   validate,
		translator: translator,
		usrSvc:     user.NewService(usrRepo),
		courseSvc:  course.NewService(conf, courseRepo, tx, fileStorage, cache, emailsvc.NewConsoleService(conf), logger),
	}
	if conf.Redis.URL == "" {
		cli.staleCache = conf.Redis.CourseCacheTTL
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			printError(err)
		}
		os.Exit(1)
	}
}

func printError(err error) {
	if vErr, ok := errors.Cause(err).(*core.ValidationError); ok && len(vErr.Fields) > 0 {
		fmt.Fprintln(os.Stderr, "\nerror:")
		for _, f := range vErr.Fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Field, f.Error)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
