// Package cli wires the cobra command tree for the reservation service.
package cli

import (
	"log"

	"github.com/avstrong/reservation/internal/logger"
	"github.com/spf13/cobra"
)

func NewRoot() *cobra.Command {
	l := logger.New(log.Default())

	cmd := &cobra.Command{
		Use:   "reservation",
		Short: "Hotel reservation and availability coordination engine",
	}

	cmd.AddCommand(newServeCmd(l))
	cmd.AddCommand(newSweepCmd(l))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
