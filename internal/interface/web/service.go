package webservice

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/payjoin-network/payjoin/internal/core/application"
	interfaces "github.com/payjoin-network/payjoin/internal/interface"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port   uint32
	NoCORS bool
}

func (c Config) Validate() error {
	lis, err := net.Listen("tcp", c.address())
	if err != nil {
		return fmt.Errorf("invalid port: %s", err)
	}
	// nolint:all
	defer lis.Close()
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}

type service struct {
	config Config
	appSvc application.Service
	server *http.Server
}

func NewService(
	svcConfig Config, appSvc application.Service,
) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}

	handler := NewRouter(appSvc)
	if !svcConfig.NoCORS {
		handler = cors.New(cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type"},
		}).Handler(handler)
	}

	server := &http.Server{
		Addr:    svcConfig.address(),
		Handler: handler,
	}

	return &service{svcConfig, appSvc, server}, nil
}

func (s *service) Start() error {
	if err := s.appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	log.Info("started app service")

	// nolint:all
	go s.server.ListenAndServe()
	log.Infof("started listening at %s", s.server.Addr)

	return nil
}

func (s *service) Stop() {
	s.appSvc.Stop()
	log.Info("stopped app service")

	// nolint:all
	s.server.Shutdown(context.Background())
	log.Info("stopped server")
}
