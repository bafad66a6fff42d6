package cli

import (
	"fmt"
	"time"

	"github.com/avstrong/reservation/internal/availability"
	"github.com/avstrong/reservation/internal/config"
	idgen "github.com/avstrong/reservation/internal/idgen/uuid"
	"github.com/avstrong/reservation/internal/inventory"
	"github.com/avstrong/reservation/internal/logger"
	"github.com/avstrong/reservation/internal/reservation"
	"github.com/avstrong/reservation/internal/storage/postgres"
	"github.com/avstrong/reservation/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

// newSweepCmd runs a single expiry pass against a durable ledger. Useful
// as a cron job or for reclaiming holds after an unclean shutdown; the
// serve command runs the same sweep continuously.
func newSweepCmd(l *logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale pending reservations in a durable ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()

			var ledger reservation.Ledger

			switch {
			case conf.DBDSN != "":
				store, err := postgres.Open(ctx, conf.DBDSN)
				if err != nil {
					return fmt.Errorf("open postgres ledger: %w", err)
				}

				defer store.Close()

				ledger = store
			case conf.DBPath != "":
				store, err := sqlite.Open(conf.DBPath)
				if err != nil {
					return fmt.Errorf("open sqlite ledger at %v: %w", conf.DBPath, err)
				}

				defer func() { _ = store.Close() }()

				ledger = store
			default:
				return fmt.Errorf("sweep requires RESERVE_DB_DSN or RESERVE_DB_PATH")
			}

			// The sweep only transitions ledger rows and releases the
			// holds it restored itself, so total room counts are never
			// consulted here.
			index := availability.New(availability.Config{
				L:        l,
				Rooms:    inventory.NewStore(inventory.NewMemory()),
				LockWait: conf.LockWait,
			})

			engine := reservation.New(l, ledger, index, idgen.New(), reservation.Conf{
				PendingTTL:      conf.PendingTTL,
				ConflictRetries: conf.ConflictRetries,
			})

			if err := engine.RestoreIndex(ctx); err != nil {
				return fmt.Errorf("restore availability index: %w", err)
			}

			swept, err := engine.SweepExpired(ctx, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("sweep expired reservations: %w", err)
			}

			l.LogInfo("Expired %v stale pending reservations", swept)

			return nil
		},
	}
}
