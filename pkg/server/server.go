// Package server assembles the relay: the websocket endpoint, the
// document engine with its snapshot store, and the optional monitoring
// sidecar, run as one service group.
package server

import (
	"context"
	"net/http"

	"github.com/syncpad/syncpad/pkg/config"
	"github.com/syncpad/syncpad/pkg/document"
	"github.com/syncpad/syncpad/pkg/hub"
	"github.com/syncpad/syncpad/pkg/logger"
	"github.com/syncpad/syncpad/pkg/monitoring"
	"github.com/syncpad/syncpad/pkg/network/httpx"
	"github.com/syncpad/syncpad/pkg/service"
	"github.com/syncpad/syncpad/pkg/storage"
)

type Server struct {
	conf     config.Config
	services service.Group
	store    *storage.Sqlite
	log      *logger.Logger
}

func New(conf config.Config, log *logger.Logger) (*Server, error) {
	s := &Server{conf: conf, log: log}

	var docStore document.Store
	if conf.Storage.Path != "" {
		db, err := storage.New(conf.Storage.Path)
		if err != nil {
			return nil, err
		}
		s.store = db
		docStore = db
		log.Info().Msgf("Snapshot persistence at %v", conf.Storage.Path)
	} else {
		log.Info().Msg("Snapshot persistence is off")
	}

	docs := document.NewEngine(docStore, log)
	rooms := hub.New(conf, docs, log)

	address := conf.Server.Address
	if conf.Server.Https {
		address = conf.Server.Tls.Address
	}
	srv, err := httpx.NewServer(
		address,
		func(*httpx.Server) httpx.Handler {
			h := http.NewServeMux()
			h.HandleFunc("/ws", rooms.Handler())
			h.HandleFunc("/health", func(w httpx.ResponseWriter, _ *httpx.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			return h
		},
		httpx.WithServerConfig(conf.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	s.services.Add(srv)
	s.services.AddIf(conf.Monitoring.IsEnabled(), monitoring.New(conf.Monitoring, "mon", log))
	return s, nil
}

func (s *Server) Run() { s.services.Start() }

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.services.Shutdown(ctx)
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
