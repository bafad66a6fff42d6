package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/avstrong/reservation/internal/availability"
	"github.com/avstrong/reservation/internal/config"
	idgen "github.com/avstrong/reservation/internal/idgen/uuid"
	"github.com/avstrong/reservation/internal/inventory"
	"github.com/avstrong/reservation/internal/logger"
	"github.com/avstrong/reservation/internal/migration"
	"github.com/avstrong/reservation/internal/query"
	"github.com/avstrong/reservation/internal/reservation"
	"github.com/avstrong/reservation/internal/storage/memory"
	"github.com/avstrong/reservation/internal/storage/postgres"
	"github.com/avstrong/reservation/internal/storage/sqlite"
	"github.com/avstrong/reservation/internal/transport/web"
)

func openLedger(ctx context.Context, l *logger.Logger, conf config.Config) (reservation.Ledger, func(), error) {
	switch {
	case conf.DBDSN != "":
		store, err := postgres.Open(ctx, conf.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres ledger: %w", err)
		}

		l.LogInfo("Using postgres reservation ledger")

		return store, store.Close, nil
	case conf.DBPath != "":
		store, err := sqlite.Open(conf.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite ledger at %v: %w", conf.DBPath, err)
		}

		l.LogInfo("Using sqlite reservation ledger at %v", conf.DBPath)

		return store, func() { _ = store.Close() }, nil
	default:
		l.LogInfo("Using in-memory reservation ledger")

		return memory.New(memory.Config{L: l}), func() {}, nil
	}
}

func Run(l *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	conf, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	catalog := inventory.NewMemory()
	migration.Up(l, catalog)

	rooms := inventory.NewStore(catalog)

	ledger, closeLedger, err := openLedger(ctx, l, conf)
	if err != nil {
		return err
	}

	defer closeLedger()

	index := availability.New(availability.Config{
		L:        l,
		Rooms:    rooms,
		LockWait: conf.LockWait,
	})

	engine := reservation.New(l, ledger, index, idgen.New(), reservation.Conf{
		PendingTTL:      conf.PendingTTL,
		ConflictRetries: conf.ConflictRetries,
	})

	if err := engine.RestoreIndex(ctx); err != nil {
		return fmt.Errorf("restore availability index: %w", err)
	}

	go engine.RunSweeper(ctx, conf.SweepInterval)

	facade := query.New(l, index, engine)

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      log.Default(),
		Host:              conf.Host,
		Port:              conf.Port,
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		LivenessEndpoint:  conf.LivenessEndpoint,
	}

	srv, err := web.New(ctx, webConf, engine, facade)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:gomnd
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v...", webConf.Host, webConf.Port)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()
	}

	l.LogInfo("Application stopped gracefully")

	return nil
}
