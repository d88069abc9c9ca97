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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/freepik-company/staticroute/internal/opsserver"
	"github.com/freepik-company/staticroute/pkg/ribtable"
	"github.com/freepik-company/staticroute/pkg/routeconfig"
	"github.com/freepik-company/staticroute/pkg/staticroute"
)

func main() {
	var (
		routesDir  string
		grpcAddr   string
		httpAddr   string
		debug      bool
		debounce   time.Duration
	)

	flag.StringVar(&routesDir, "routes-dir", "/etc/staticroute/conf.d", "Directory of static-route configuration files to watch")
	flag.StringVar(&grpcAddr, "ops-grpc-addr", ":9090", "Address to listen on for the ops gRPC health/reflection server")
	flag.StringVar(&httpAddr, "ops-http-addr", ":9091", "Address to listen on for the debug-dump HTTP server")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.DurationVar(&debounce, "resolve-debounce", staticroute.DefaultResolveDebounce, "How long to coalesce config file changes before reconciling")
	flag.Parse()

	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.TimeKey = "timestamp"
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := logConfig.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	listener := ribtable.NewListener()

	loader := routeconfig.NewLoader(routesDir, logger)
	if err := loader.Load(); err != nil {
		logger.Fatal("failed to load static route configuration", zap.Error(err))
	}

	ops := opsserver.NewServer(&opsserver.Config{GRPCAddr: grpcAddr, HTTPAddr: httpAddr}, logger)

	var (
		mu       sync.Mutex
		managers = make(map[string]*staticroute.StaticRouteManager)
		wg       sync.WaitGroup
	)

	ensureManager := func(instanceName string) *staticroute.StaticRouteManager {
		mu.Lock()
		defer mu.Unlock()
		if mgr, ok := managers[instanceName]; ok {
			return mgr
		}

		instance := ribtable.NewInstance(instanceName)
		instance.AddTable(ribtable.NewTable(instanceName+".inet.0", staticroute.FamilyInetUnicast, listener))

		mgr, err := staticroute.NewStaticRouteManager(staticroute.ManagerOptions{
			Instance:        instance,
			Family:          staticroute.FamilyInetUnicast,
			Listener:        listener,
			Logger:          logger,
			ResolveDebounce: debounce,
		})
		if err != nil {
			logger.Error("failed to create static route manager", zap.String("routing_instance", instanceName), zap.Error(err))
			return nil
		}

		managers[instanceName] = mgr
		ops.RegisterManager(instanceName, mgr)

		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Run(ctx.Done())
		}()
		return mgr
	}

	for _, instanceName := range loader.Instances() {
		if mgr := ensureManager(instanceName); mgr != nil {
			mgr.UpdateStaticRouteConfig(loader.Configs(instanceName))
		}
	}

	if err := loader.Watch(func(instanceName string, configs []staticroute.StaticRouteConfig) {
		mgr := ensureManager(instanceName)
		if mgr == nil {
			return
		}
		logger.Info("static route configuration reloaded",
			zap.String("routing_instance", instanceName),
			zap.Int("routes", len(configs)),
		)
		mgr.UpdateStaticRouteConfig(configs)
	}); err != nil {
		logger.Warn("failed to start config watcher", zap.Error(err))
	}
	defer loader.Close()

	logger.Info("starting staticrouted",
		zap.String("routes_dir", routesDir),
		zap.String("ops_grpc_addr", grpcAddr),
		zap.String("ops_http_addr", httpAddr),
		zap.Duration("resolve_debounce", debounce),
	)

	if err := ops.Start(ctx); err != nil {
		logger.Error("ops server error", zap.Error(err))
	}

	mu.Lock()
	for _, mgr := range managers {
		mgr.Shutdown()
	}
	mu.Unlock()
	wg.Wait()
}
