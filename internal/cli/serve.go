package cli

import (
	"github.com/avstrong/reservation/internal/app"
	"github.com/avstrong/reservation/internal/logger"
	"github.com/spf13/cobra"
)

func newServeCmd(l *logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, coordination engine, and expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(l)
		},
	}
}
