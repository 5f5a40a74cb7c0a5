package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ortho-mapper/config"
	"ortho-mapper/internal/api/httpapi"
	app "ortho-mapper/internal/application"
	"ortho-mapper/internal/container"
	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/logging"
)

func main() {
	input := flag.String("input", "", "directory of tile detections to map once and exit")
	label := flag.String("label", "", "label of the one-shot run")
	serve := flag.Bool("serve", false, "run the HTTP API, queue consumer and bot")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.NewLogger("ortho-mapper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}
	defer c.Close()

	switch {
	case *input != "":
		rec, err := c.RunService.Execute(ctx, app.RunRequest{InputDir: *input, Label: *label})
		if err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		fmt.Printf("run %s: %s, %d features, %d paths -> %s\n",
			rec.ID, rec.Status, rec.FeatureCount, rec.PathCount, rec.GeoJSONPath)
		if rec.Status == entity.OutcomeFailed {
			c.Close()
			os.Exit(1)
		}
	case *serve:
		if err := runServer(ctx, c, cfg, logger); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runServer(ctx context.Context, c *container.Container, cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	if c.Consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Consumer.Run(ctx)
		}()
	}
	if c.Bot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Bot.Run(ctx); err != nil {
				logger.Error("bot stopped", "error", err)
			}
		}()
	}

	server := httpapi.NewServer(cfg.HTTPAddr, c.HTTP)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	wg.Wait()
	logger.Info("stopped")
	return serveErr
}
