package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TomasB/whatcountry/internal/config"
	"github.com/TomasB/whatcountry/internal/data"
	"github.com/TomasB/whatcountry/internal/flags"
	"github.com/TomasB/whatcountry/internal/geo"
	grpchandler "github.com/TomasB/whatcountry/internal/handler/grpc"
	"github.com/TomasB/whatcountry/internal/handler/health"
	"github.com/TomasB/whatcountry/internal/handler/lookup"
	"github.com/TomasB/whatcountry/internal/handler/socket"
	"github.com/TomasB/whatcountry/internal/metrics"
	"github.com/TomasB/whatcountry/internal/resolve"
	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logLevel := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("service starting", "log_level", logLevel.String(), "resolver", cfg.Resolver)

	// Load MaxMind MMDB
	store, err := data.OpenStore(cfg.MmdbPath)
	if err != nil {
		slog.Error("failed to open MMDB", "path", cfg.MmdbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	slog.Info("MMDB loaded", "path", cfg.MmdbPath)

	catalog, err := flags.Load(cfg.FlagsPath)
	if err != nil {
		slog.Error("failed to load flag table", "path", cfg.FlagsPath, "error", err)
		os.Exit(1)
	}

	resolver, err := resolve.New(resolve.Options{
		Backend:     cfg.Resolver,
		Nameservers: cfg.Nameservers,
		Command:     cfg.ResolveCommand,
		Timeout:     cfg.ResolveTimeout,
		CacheSize:   cfg.CacheSize,
		CacheTTL:    cfg.CacheTTL,
	})
	if err != nil {
		slog.Error("failed to create resolver", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	svc := geo.NewService(resolver, geo.NewLocator(store, catalog), cfg.ResolveTimeout, m)

	ln, err := socket.Listen(cfg.SocketPath, os.FileMode(cfg.SocketMode))
	if err != nil {
		slog.Error("failed to listen on socket", "path", cfg.SocketPath, "error", err)
		os.Exit(1)
	}
	socketServer := socket.NewServer(socket.NewHandler(svc, socket.Options{
		MaxRequestBytes: cfg.MaxRequestBytes,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		Metrics:         m,
	}), cfg.MaxConnections)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("service started", "socket", cfg.SocketPath, "flags", catalog.Len())
		return socketServer.Serve(gctx, ln)
	})

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: newRouter(logger, logLevel, svc, store, cfg.SocketPath, m),
		}
		g.Go(func() error {
			slog.Info("http api started", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			slog.Error("failed to listen for gRPC", "addr", cfg.GRPCAddr, "error", err)
			os.Exit(1)
		}
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(grpchandler.UnaryLogger(logger)))
		grpchandler.Register(grpcServer, grpchandler.NewHandler(svc, m))
		g.Go(func() error {
			slog.Info("grpc api started", "addr", cfg.GRPCAddr)
			return grpcServer.Serve(grpcListener)
		})
	}

	if cfg.WatchMmdb {
		watcher, err := data.NewWatcher(cfg.MmdbPath, store)
		if err != nil {
			slog.Warn("MMDB hot reload disabled", "error", err)
		} else {
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}

	// Wait for interrupt signal or a failed server, then shut everything down
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("service shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := socketServer.Shutdown(shutdownCtx)
		if httpServer != nil {
			err = multierr.Append(err, httpServer.Shutdown(shutdownCtx))
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("service stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("service stopped")
}

func newRouter(logger *slog.Logger, logLevel slog.Level, svc *geo.Service, store *data.Store, socketPath string, m *metrics.Metrics) *gin.Engine {
	// Set Gin mode based on log level
	if logLevel == slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	healthHandler := health.NewHandler(
		health.Check{Name: "mmdb", Fn: store.Ready},
		health.Check{Name: "socket", Fn: func() error { return socketPresent(socketPath) }},
	)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	lookupHandler := lookup.NewHandler(svc, store, m)
	router.GET("/what-is-country/:domain", lookupHandler.WhatIsCountry)
	api := router.Group("/api/v1")
	{
		api.GET("/country/:ip", lookupHandler.Country)
	}
	return router
}

// socketPresent reports whether the unix socket file still exists.
func socketPresent(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return errors.New("not a socket: " + path)
	}
	return nil
}

// ginLogger creates a Gin middleware that logs using slog
func ginLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request
		duration := time.Since(start)
		statusCode := c.Writer.Status()

		attrs := []any{
			"method", method,
			"path", path,
			"status", statusCode,
			"duration_ms", duration.Milliseconds(),
		}

		if len(c.Errors) > 0 {
			logger.Error("request completed with errors", append(attrs, "errors", c.Errors.String())...)
		} else if statusCode >= 500 {
			logger.Error("request completed", attrs...)
		} else if statusCode >= 400 {
			logger.Warn("request completed", attrs...)
		} else {
			logger.Info("request completed", attrs...)
		}
	}
}
