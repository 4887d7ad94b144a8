package main

import (
	"context"
	"os"
	"time"

	"github.com/giongto35/proctor/pkg/config"
	"github.com/giongto35/proctor/pkg/examiner"
	"github.com/giongto35/proctor/pkg/logger"
	xos "github.com/giongto35/proctor/pkg/os"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf, err := config.NewExaminerConfig(config.ConfigPath(os.Args[1:]))
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}
	conf.WithFlags(flag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Examiner.Debug, "e", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	app, err := examiner.NewApp(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("examiner init")
	}
	app.Start()

	select {
	case <-xos.ExpectTermination():
	case <-app.Done():
		log.Error().Err(app.Err()).Msg("hub connection is over")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown errors")
	}
}
