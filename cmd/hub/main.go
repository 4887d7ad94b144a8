package main

import (
	"context"
	"os"
	"time"

	"github.com/giongto35/proctor/pkg/config"
	"github.com/giongto35/proctor/pkg/hub"
	"github.com/giongto35/proctor/pkg/logger"
	xos "github.com/giongto35/proctor/pkg/os"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf, err := config.NewHubConfig(config.ConfigPath(os.Args[1:]))
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}
	conf.WithFlags(flag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Hub.Debug, "h", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	srv, err := hub.NewServer(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("hub init")
	}
	srv.Start()
	<-xos.ExpectTermination()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
