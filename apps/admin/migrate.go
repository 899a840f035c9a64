package main

import (
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/approvals/fs"
)

var gooseRunFunc = goose.RunFS // mockable

const migrationsDir = "migrations"

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, appfs.FS, migrationsDir, args[1:]...)
}
