package exporter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	metricsPath     = "/metrics"
	healthzPath     = "/healthz"
	shutdownTimeout = 5 * time.Second
)

type Server struct {
	listenAddress string
	httpServer    *http.Server
	listener      net.Listener
}

// NewServerWithContext builds a server exposing collector on /metrics. Requests
// are logged with the logger carried by ctx.
func NewServerWithContext(ctx context.Context, listenAddress string, collector prometheus.Collector) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	registry.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc(healthzPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		listenAddress: listenAddress,
		httpServer: &http.Server{
			Handler:           NewHTTPLogger(ctx)(mux),
			ReadHeaderTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr is the bound address once the server has started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.listenAddress
	}
	return s.listener.Addr().String()
}

// StartWithContext listens and serves in a new goroutine. Serving errors are
// sent to httpErrChan.
func (s *Server) StartWithContext(ctx context.Context, httpErrChan chan error) error {
	logger := zerolog.Ctx(ctx)

	listener, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		logger.Err(err).Msg(fmt.Sprintf("couldn't listen %s", s.listenAddress))
		return err
	}
	s.listener = listener

	go func() {
		logger.Info().Msg(fmt.Sprintf("start listening %s", listener.Addr()))
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Err(serveErr).Msg("error received from http server")
			httpErrChan <- serveErr
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
