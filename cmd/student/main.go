package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/giongto35/proctor/pkg/config"
	"github.com/giongto35/proctor/pkg/logger"
	xos "github.com/giongto35/proctor/pkg/os"
	"github.com/giongto35/proctor/pkg/student"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf, err := config.NewStudentConfig(config.ConfigPath(os.Args[1:]))
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}
	conf.WithFlags(flag.CommandLine)
	flags := flag.Bool("flags", false, "Report each stdin line as a visited disallowed site")
	flag.Parse()

	log := logger.NewConsole(conf.Student.Debug, "s", false)
	log.Info().Msgf("version %s", Version)

	app, err := student.NewApp(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("student init")
	}
	app.Start()

	if *flags {
		go func() {
			lines := bufio.NewScanner(os.Stdin)
			for lines.Scan() {
				if site := strings.TrimSpace(lines.Text()); site != "" {
					if err := app.ReportFlag(site); err != nil {
						log.Warn().Err(err).Msg("flag")
					}
				}
			}
		}()
	}

	select {
	case <-xos.ExpectTermination():
	case <-app.Done():
		log.Error().Err(app.Err()).Msg("hub connection is over")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown errors")
	}
}
