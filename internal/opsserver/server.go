/*
Copyright 2024.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package opsserver exposes the daemon's operational surface: a gRPC
// health endpoint for liveness probes, reflection for ad-hoc debugging,
// and a JSON introspection dump of every manager's live static routes.
package opsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/freepik-company/staticroute/pkg/staticroute"
)

// Config configures Server.
type Config struct {
	GRPCAddr string
	HTTPAddr string
}

// DefaultConfig returns sane listen addresses for local development.
func DefaultConfig() *Config {
	return &Config{GRPCAddr: ":9090", HTTPAddr: ":9091"}
}

// Server is the daemon's operational surface: a gRPC health service and an
// HTTP debug-dump endpoint, both read-only.
type Server struct {
	cfg         *Config
	logger      *zap.Logger
	grpcServer  *grpc.Server
	healthSrv   *health.Server
	httpServer  *http.Server
	managers    map[string]*staticroute.StaticRouteManager
}

// NewServer returns a Server ready to have its managers registered and
// Start called.
func NewServer(cfg *Config, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	healthSrv := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		grpcServer: grpcServer,
		healthSrv:  healthSrv,
		managers:   make(map[string]*staticroute.StaticRouteManager),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/static-routes", s.handleDebugDump)
	s.httpServer = &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	return s
}

// RegisterManager makes mgr's live matches visible under name at
// /debug/static-routes and flips the gRPC health status to SERVING for it.
func (s *Server) RegisterManager(name string, mgr *staticroute.StaticRouteManager) {
	s.managers[name] = mgr
	s.healthSrv.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
}

// Start runs both the gRPC and HTTP listeners until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("opsserver: listen %s: %w", s.cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("starting ops gRPC server", zap.String("addr", s.cfg.GRPCAddr))
		if err := s.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("opsserver: grpc serve: %w", err)
		}
	}()
	go func() {
		s.logger.Info("starting ops http server", zap.String("addr", s.cfg.HTTPAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("opsserver: http serve: %w", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down ops server")
		s.grpcServer.GracefulStop()
		_ = s.httpServer.Close()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

type debugEntry struct {
	Prefix       string   `json:"prefix"`
	Nexthop      string   `json:"nexthop"`
	RouteTargets []string `json:"routeTargets"`
	PathCount    int      `json:"pathCount"`
	Deleted      bool     `json:"deleted"`
	Unregistered bool     `json:"unregistered"`
}

func (s *Server) handleDebugDump(w http.ResponseWriter, r *http.Request) {
	dump := make(map[string][]debugEntry, len(s.managers))
	for name, mgr := range s.managers {
		entries := make([]debugEntry, 0)
		for prefix, match := range mgr.StaticRouteMap() {
			rtargets := make([]string, 0, len(match.RouteTargets()))
			for _, rt := range match.RouteTargets() {
				rtargets = append(rtargets, rt.String())
			}
			entries = append(entries, debugEntry{
				Prefix:       prefix.String(),
				Nexthop:      match.Nexthop().String(),
				RouteTargets: rtargets,
				PathCount:    len(match.PathIDs()),
				Deleted:      match.Deleted(),
				Unregistered: match.Unregistered(),
			})
		}
		dump[name] = entries
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(dump); err != nil {
		s.logger.Error("failed to encode debug dump", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
