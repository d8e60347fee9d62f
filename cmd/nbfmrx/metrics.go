package main

import (
	"context"
	"errors"
	"expvar"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const metricsShutdownTimeout = time.Second

// metricsServer serves expvar counters on /debug/vars.
type metricsServer struct {
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

func serveMetrics(addr string, l logrus.FieldLogger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	s := &metricsServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: metricsShutdownTimeout,
		},
		ln:   ln,
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.WithError(err).Warn("metrics server stopped")
		}
	}()
	return s, nil
}

// URL returns the address of the counters.
func (s *metricsServer) URL() string {
	return "http://" + s.ln.Addr().String() + "/debug/vars"
}

// Close shuts the server down and waits for it to return.
func (s *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
