package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/payjoin-network/payjoin/internal/config"
	webservice "github.com/payjoin-network/payjoin/internal/interface/web"
	log "github.com/sirupsen/logrus"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.Debugf("config: %s", cfg)

	appSvc, err := cfg.AppService()
	if err != nil {
		log.Fatal(err)
	}

	svcConfig := webservice.Config{
		Port:   cfg.Port,
		NoCORS: cfg.NoCORS,
	}
	svc, err := webservice.NewService(svcConfig, appSvc)
	if err != nil {
		log.Fatal(err)
	}

	log.RegisterExitHandler(svc.Stop)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
}
