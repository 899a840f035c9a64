package main

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/user"
	"github.com/trezcool/approvals/core/workflow"
	logsvc "github.com/trezcool/approvals/services/logger"
	"github.com/trezcool/approvals/storage/database"
	sqlxrepos "github.com/trezcool/approvals/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stderr, conf)
	logger.Enable(false)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = database.Ping(ctx, db)
	cancel()
	if err != nil {
		logger.Fatal("pinging database", err)
	}

	// set up services
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	wfSvc := workflow.NewService(
		workflow.NewEngine(workflow.DefaultRolePolicy()),
		sqlxrepos.NewRecordRepository(db),
		validator.New(),
		usrSvc,
		nil, /* mailSvc */
		nil, /* cache */
		nil, /* metrics */
		logger,
	)

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		wfSvc:   wfSvc,
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
		}
		os.Exit(1)
	}
}
