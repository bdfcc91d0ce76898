package main

import (
	"log"
	"os"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/user"
	logsvc "github.com/tutoria/tutoria/services/logger"
	"github.com/tutoria/tutoria/storage/database"
	sqlxrepos "github.com/tutoria/tutoria/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	validator := core.NewValidator(user.InitValidators)
	cli := commandLine{
		db:     db.DB,
		engine: conf.Database.Engine,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(sqlxrepos.NewDB(db)), validator),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
