// Package main runs the clever-bank API server together with the interest
// accrual loop.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-petr/clever-bank/cmd/httpserver"
	"github.com/go-petr/clever-bank/internal/memstore"
	"github.com/go-petr/clever-bank/internal/middleware"
	"github.com/go-petr/clever-bank/pkg/configpkg"
	"github.com/go-petr/clever-bank/pkg/dbpkg"

	_ "github.com/lib/pq"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)

	if err := run(config, logger); err != nil {
		logger.Fatal().Err(err).Send()
	}
}

func run(config configpkg.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithContext(ctx)

	stores, closeStores, err := openStores(config)
	if err != nil {
		return err
	}
	defer closeStores()

	gin.SetMode(gin.ReleaseMode)

	server, err := httpserver.New(stores, logger, config)
	if err != nil {
		return fmt.Errorf("cannot create server: %w", err)
	}

	rate, err := config.AccrualRate()
	if err != nil {
		return err
	}

	accrual, err := server.Accrual.Start(ctx, config.AccrualInterval, rate)
	if err != nil {
		return fmt.Errorf("cannot start accrual loop: %w", err)
	}

	httpServer := &http.Server{
		Addr:    config.ServerAddress,
		Handler: server,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("address", config.ServerAddress).
			Str("store_backend", config.StoreBackend).
			Msg("CLEVER BANK API SERVER HAS STARTED")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("cannot start server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		accrual.Stop()
		logger.Info().Int64("passes", accrual.Passes()).Msg("accrual loop stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStores(config configpkg.Config) (httpserver.Stores, func(), error) {
	switch config.StoreBackend {
	case configpkg.BackendMemory:
		return httpserver.MemoryStores(memstore.New()), func() {}, nil
	case configpkg.BackendPostgres:
		db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
		if err != nil {
			return httpserver.Stores{}, nil, fmt.Errorf("cannot connect to database: %w", err)
		}

		return httpserver.PostgresStores(db), closer(db), nil
	}

	return httpserver.Stores{}, nil, fmt.Errorf("unknown store backend %q", config.StoreBackend)
}

func closer(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("cannot close database")
		}
	}
}
