package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ehrlich-b/reactorhttp"
	"github.com/ehrlich-b/reactorhttp/internal/config"
	"github.com/ehrlich-b/reactorhttp/internal/logging"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1", "IPv4 address to bind")
		port    = flag.Uint("port", 8080, "TCP port to bind")
		root    = flag.String("root", "", "filesystem root served at the catch-all static route")
		workers = flag.Int("workers", reactorhttp.DefaultWorkers, "number of I/O worker goroutines")
		routes  = flag.String("routes", "", "optional routes.yaml declaring extra static mounts")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *port > 65535 {
		log.Fatalf("invalid port %d", *port)
	}

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logging.Init(level)
	logger := logging.Default()

	opts := reactorhttp.Options{
		Workers: *workers,
		Root:    *root,
		Logger:  logger,
	}

	srv, err := reactorhttp.NewServer(opts)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if *routes != "" {
		rc, err := config.LoadRoutes(*routes)
		if err != nil {
			logger.Error("failed to load routes file", "error", err)
			os.Exit(1)
		}
		for _, m := range rc.Mounts {
			if err := srv.MountStatic(m.Pattern, m.Root); err != nil {
				logger.Error("failed to mount static route", "pattern", m.Pattern, "root", m.Root, "error", err)
				os.Exit(1)
			}
			logger.Info("mounted static route", "pattern", m.Pattern, "root", m.Root)
		}
	}

	logger.Info("starting server", "addr", *addr, "port", *port, "workers", *workers)
	fmt.Printf("reactorhttpd listening on %s:%d\n", *addr, *port)
	fmt.Printf("Press Ctrl+C to stop...\n")

	ctx, cancel := context.WithCancel(context.Background())
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- srv.Start(ctx, *addr, uint16(*port))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-serveErrCh:
		if err != nil {
			logger.Error("server exited with error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	cancel()

	select {
	case <-serveErrCh:
	case <-time.After(1 * time.Second):
		logger.Info("shutdown timeout, forcing exit")
	}

	logger.Info("server stopped")
}
