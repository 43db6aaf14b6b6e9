package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	"github.com/wartburg/mcsp/apps/web/di"
	echoweb "github.com/wartburg/mcsp/apps/web/echo"
	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/services/jobs"
)

func main() {
	c := di.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		dbLoggerParam di.DBLoggerParam,
		closeDB di.DBCloser,
		scheduler *jobs.Scheduler,
		server *echoweb.Server,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(logger)

		defer func() {
			if err := closeDB(); err != nil {
				dbLoggerParam.Logger.Error(fmt.Sprintf("failed to close: %v", err), err)
			}
		}()
		defer logger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start Jobs & Web Service

		scheduler.Start()
		logger.Info(fmt.Sprintf("scheduler started with %d job(s)", scheduler.Jobs()))

		go func() {
			server.Start()
		}()
		logger.Info(fmt.Sprintf("listening on %s", conf.Server.Addr))

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			logger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}

		// let a running sweep finish
		<-scheduler.Stop().Done()
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
