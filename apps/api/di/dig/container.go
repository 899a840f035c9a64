package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/approvals/apps/api/echo"
	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/user"
	"github.com/trezcool/approvals/core/workflow"
	cachesvc "github.com/trezcool/approvals/services/cache"
	emailsvc "github.com/trezcool/approvals/services/email"
	logsvc "github.com/trezcool/approvals/services/logger"
	metricsvc "github.com/trezcool/approvals/services/metrics"
	"github.com/trezcool/approvals/storage/database"
	sqlxrepos "github.com/trezcool/approvals/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ShutdownChannel receives the signal that stops the API.
type ShutdownChannel chan os.Signal

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stderr, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(ctx, db); err != nil {
			return nil, err
		}
		if err = database.Migrate(db, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newEngine() *workflow.Engine {
	return workflow.NewEngine(workflow.DefaultRolePolicy())
}

func newStatsCache(conf *core.Config, logger core.Logger) workflow.StatsCache {
	cache := cachesvc.NewRedisStatsCache(cachesvc.NewRedisClient(conf), conf)
	if err := cache.Ping(context.Background()); err != nil {
		// stats are then computed on every read
		logger.Warn(fmt.Sprintf("redis unavailable: %v", err), err)
	}
	return cache
}

func newMetrics() *metricsvc.Metrics {
	m := metricsvc.New()
	m.RegisterCollectors(prometheus.DefaultRegisterer)
	return m
}

func newWorkflowMetrics(m *metricsvc.Metrics) workflow.Metrics {
	return m
}

func newShutdownChannel() ShutdownChannel {
	return make(ShutdownChannel, 1)
}

type serverParams struct {
	dig.In
	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	UserSvc     user.Service
	WorkflowSvc workflow.Service
	Metrics     *metricsvc.Metrics
	Shutdown    ShutdownChannel
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Address:     p.Conf.Server.Address(),
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		WorkflowSvc: p.WorkflowSvc,
		Metrics:     p.Metrics,
		SignalShutdown: func() {
			p.Shutdown <- syscall.SIGTERM
		},
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewRecordRepository))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(newEngine))
	must(c.Provide(newStatsCache))
	must(c.Provide(newMetrics))
	must(c.Provide(newWorkflowMetrics))
	must(c.Provide(workflow.NewService))
	must(c.Provide(newShutdownChannel))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
