// Package server exposes the admission HTTP API: creating
// and deleting stores, and reading back their current state and event log.
// It never performs side effects itself — every request is translated into
// calls against provisioning.Admission or provisioning.Repo.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Jainayushgit/store-provisioner/logger"
	"github.com/Jainayushgit/store-provisioner/provisioning"
)

// Server is the admission HTTP API.
type Server struct {
	admission *provisioning.Admission
	repo      *provisioning.Repo
	httpSrv   *http.Server
}

// New constructs a Server bound to addr ("host:port").
func New(addr string, admission *provisioning.Admission, repo *provisioning.Repo) *Server {
	s := &Server{admission: admission, repo: repo}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /stores", s.handleCreate)
	mux.HandleFunc("GET /stores", s.handleList)
	mux.HandleFunc("GET /stores/{id}", s.handleGet)
	mux.HandleFunc("DELETE /stores/{id}", s.handleDelete)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.HTTPInfow("admission API listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.HTTPInfow("admission API shutting down")
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// callerIdentity resolves the caller identity for the limiter: first token of
// X-Forwarded-For, else the request's peer host, else "unknown".
func callerIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}
