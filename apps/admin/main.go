package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/storage/database"
	inmemdb "github.com/trezcool/halaqat/storage/database/inmem"
	pgdb "github.com/trezcool/halaqat/storage/database/postgres"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	validate, translator := core.NewValidator()
	org.InitValidators(validate, translator)

	cli := commandLine{}
	if conf.Database.Engine == "memory" {
		logger.Println("memory engine: changes are lost on exit")
		cli.orgSvc = org.NewService(inmemdb.NewOrgRepository(inmemdb.Open()), validate)
	} else {
		ctx := context.Background()
		errAndDie(database.CreateIfNotExist(ctx, conf))
		db, err := database.Open(ctx, conf)
		errAndDie(err)
		defer db.Close()

		cli.db = db.DB
		cli.orgSvc = org.NewService(pgdb.NewOrgRepository(db), validate)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
