// Package di builds the web app dependency graph with dig.
package di

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoweb "github.com/wartburg/mcsp/apps/web/echo"
	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
	"github.com/wartburg/mcsp/core/user"
	cachesvc "github.com/wartburg/mcsp/services/cache"
	emailsvc "github.com/wartburg/mcsp/services/email"
	"github.com/wartburg/mcsp/services/jobs"
	logsvc "github.com/wartburg/mcsp/services/logger"
	"github.com/wartburg/mcsp/storage/database"
	inmemdb "github.com/wartburg/mcsp/storage/database/inmem"
	sqlxrepos "github.com/wartburg/mcsp/storage/database/sqlx"
	"github.com/wartburg/mcsp/storage/files"
)

type (
	// DBCloser closes the database connection pool.
	DBCloser func() error

	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	storageResult struct {
		dig.Out
		Tx         core.Transactor
		UserRepo   user.Repository
		CourseRepo course.Repository
		Close      DBCloser
	}
)

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New("WEB : ", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New("DB : ", conf, log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) (storageResult, error) {
	if conf.Database.InMemory {
		loggerParam.Logger.Info("using the in-memory database")
		db := inmemdb.Open()
		return storageResult{
			Tx:         db,
			UserRepo:   inmemdb.NewUserRepository(db),
			CourseRepo: inmemdb.NewCourseRepository(db),
			Close:      func() error { return nil },
		}, nil
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return storageResult{}, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return storageResult{}, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return storageResult{}, errors.Wrap(err, "migrating database")
	}
	loggerParam.Logger.Info(fmt.Sprintf("connected to %s on %s", conf.Database.Name, conf.Database.Address()))

	return storageResult{
		Tx:         database.NewTransactor(db),
		UserRepo:   sqlxrepos.NewUserRepository(db),
		CourseRepo: sqlxrepos.NewCourseRepository(db),
		Close:      db.Close,
	}, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidate(translator ut.Translator) *validator.Validate {
	validate := core.NewValidate(translator)
	user.InitValidators(validate, translator)
	return validate
}

func newSweeper(svc *course.Service) jobs.Sweeper {
	return svc
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(files.New))
	must(c.Provide(cachesvc.New))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(newSweeper))
	must(c.Provide(jobs.NewScheduler))
	must(c.Provide(echoweb.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
