package main

import (
	"context"
	goflag "flag"

	flag "github.com/spf13/pflag"

	"github.com/syncpad/syncpad/pkg/config"
	"github.com/syncpad/syncpad/pkg/logger"
	"github.com/syncpad/syncpad/pkg/os"
	"github.com/syncpad/syncpad/pkg/server"
)

var Version = "?"

func main() {
	var conf config.Config
	if err := config.LoadConfig(&conf, ""); err != nil {
		panic(err)
	}
	conf.AddFlags(flag.CommandLine)
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Debug, "s", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	s, err := server.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("server init failed")
	}
	s.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := s.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
