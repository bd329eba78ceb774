package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	echoapi "github.com/trezcool/halaqat/apps/api/echo"
	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/certificate"
	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/message"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/report"
	"github.com/trezcool/halaqat/core/roster"
	googlesvc "github.com/trezcool/halaqat/services/google"
	logsvc "github.com/trezcool/halaqat/services/logger"
	messagingsvc "github.com/trezcool/halaqat/services/messaging"
	metricsvc "github.com/trezcool/halaqat/services/metrics"
	"github.com/trezcool/halaqat/storage/database"
	inmemdb "github.com/trezcool/halaqat/storage/database/inmem"
	pgdb "github.com/trezcool/halaqat/storage/database/postgres"
)

// demo accounts of the memory engine share this password unless SEED_PASSWORD is set
const defaultSeedPassword = "halaqat-demo"

type repositories struct {
	org         org.Repository
	roster      roster.Repository
	recitation  recitation.Repository
	message     message.Repository
	integration integration.Repository
	close       func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up storage
	repos, err := setUpStorage(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	org.InitValidators(validate, translator)
	roster.InitValidators(validate, translator)
	message.InitValidators(validate, translator)

	// set up services
	metrics := metricsvc.New(conf.Build)
	var messenger core.Messenger
	if conf.Debug {
		messenger = messagingsvc.NewConsoleMessenger()
	} else {
		messenger = messagingsvc.New(conf)
	}
	records := metrics.InstrumentRecords(repos.recitation)

	orgSvc := org.NewService(repos.org, validate)
	rosterSvc := roster.NewService(repos.roster, orgSvc, validate, conf)
	messageSvc := message.NewService(repos.message, metrics.InstrumentMessenger(messenger), rosterSvc, validate, logger)
	recitationSvc := recitation.NewService(records, rosterSvc, messageSvc)
	integrationSvc := integration.NewService(
		repos.integration,
		metrics.InstrumentGoogle(googlesvc.New(conf)),
		rosterSvc, orgSvc, validate, conf,
	)
	reportSvc := report.NewService(rosterSvc, records, orgSvc)
	certificateSvc := certificate.NewService(rosterSvc, orgSvc, reportSvc, validate)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("db_engine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Metrics:        metrics,
			Validate:       validate,
			Translator:     translator,
			OrgSvc:         orgSvc,
			RosterSvc:      rosterSvc,
			RecitationSvc:  recitationSvc,
			MessageSvc:     messageSvc,
			IntegrationSvc: integrationSvc,
			ReportSvc:      reportSvc,
			CertificateSvc: certificateSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpStorage opens the configured engine. The memory engine starts from the demo fixtures.
func setUpStorage(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.Open()
		pwd := os.Getenv("SEED_PASSWORD")
		if pwd == "" {
			pwd = defaultSeedPassword
		}
		if err := inmemdb.Seed(db, pwd, core.Today()); err != nil {
			return repositories{}, err
		}
		return repositories{
			org:         inmemdb.NewOrgRepository(db),
			roster:      inmemdb.NewRosterRepository(db),
			recitation:  inmemdb.NewRecitationRepository(db),
			message:     inmemdb.NewMessageRepository(db),
			integration: inmemdb.NewIntegrationRepository(db),
			close:       func() error { return nil },
		}, nil
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	return repositories{
		org:         pgdb.NewOrgRepository(db),
		roster:      pgdb.NewRosterRepository(db),
		recitation:  pgdb.NewRecitationRepository(db),
		message:     pgdb.NewMessageRepository(db),
		integration: pgdb.NewIntegrationRepository(db),
		close:       db.Close,
	}, nil
}
