package main

import (
	"context"
	"os"

	"github.com/pixil98/go-log"
	"github.com/pixil98/go-plaza/cmd/plaza/command"
	"github.com/pixil98/go-plaza/internal/logging"
	"github.com/pixil98/go-service"
)

func main() {
	logger := logging.New(logging.Config{}, os.Stderr)

	app, err := service.NewApp(&command.Config{}, func(config interface{}) (service.WorkerList, error) {
		return command.BuildWorkers(config, logger)
	})
	if err != nil {
		logger.WithError(err).Fatal("creating application")
	}

	err = app.Run(log.SetLogger(context.Background(), logger))
	if err != nil {
		logger.WithError(err).Fatal("running application")
	}

	logger.Info("exiting")
}
