// Package main runs the chess server: the REST API, computer move workers,
// optional SQLite persistence and the optional web UI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webchess/cmd/chess-server/cli"
	"webchess/internal/server/config"
	"webchess/internal/server/http"
	"webchess/internal/server/processor"
	"webchess/internal/server/service"
	"webchess/internal/server/storage"
	"webchess/internal/server/webserver"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const gracefulShutdownTimeout = 5 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "db" {
		if err := cli.Run(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "CLI error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		config.Usage(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	log := cfg.Logger(os.Stderr)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if cfg.PIDPath != "" {
		cleanup, err := managePIDFile(cfg.PIDPath, cfg.PIDLock)
		if err != nil {
			return fmt.Errorf("pid file: %w", err)
		}
		defer cleanup()
		log.Info().Str("path", cfg.PIDPath).Bool("lock", cfg.PIDLock).Msg("PID file created")
	}

	// Storage is optional; the service closes it on shutdown
	var store *storage.Store
	if cfg.StoragePath != "" {
		var err error
		store, err = storage.NewStore(cfg.StoragePath, cfg.Dev, log)
		if err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		if err := store.InitDB(); err != nil {
			store.Close()
			return fmt.Errorf("initialize schema: %w", err)
		}
		log.Info().Str("path", cfg.StoragePath).Msg("persistent storage enabled")
	} else {
		log.Info().Msg("persistent storage disabled (use --storage-path to enable)")
	}

	svc := service.New(store, cfg.ServiceConfig(), log)
	proc := processor.New(svc, cfg.ProcessorConfig(), log)
	api := http.NewFiberApp(proc, svc, cfg.Dev, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svc.RunCleanupJob(gctx, service.CleanupJobInterval)
		return nil
	})

	g.Go(func() error {
		log.Info().
			Str("addr", "http://"+cfg.APIAddr()).
			Bool("dev", cfg.Dev).
			Int("workers", cfg.Workers).
			Int("maxComputerGames", cfg.MaxComputerGames).
			Msg("API server listening")
		if err := api.Listen(cfg.APIAddr()); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	servers := []interface {
		ShutdownWithContext(context.Context) error
	}{api}

	if cfg.Serve {
		web, err := webserver.New("http://"+cfg.APIAddr(), log)
		if err != nil {
			return err
		}
		servers = append(servers, web)

		g.Go(func() error {
			log.Info().Str("addr", "http://"+cfg.WebAddr()).Msg("web UI listening")
			if err := web.Listen(cfg.WebAddr()); err != nil {
				return fmt.Errorf("web server: %w", err)
			}
			return nil
		})
	}

	// Shutdown on signal or when a listener fails
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		var errs []error
		for _, s := range servers {
			if err := s.ShutdownWithContext(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := proc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("processor: %w", err))
		}
		if err := svc.Shutdown(gracefulShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("service: %w", err))
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	log.Info().Msg("servers exited")
	return err
}
