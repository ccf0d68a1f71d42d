package main

import (
	"github.com/spf13/cobra"

	"github.com/itohio/goscale/pkg/board"
)

func NewPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ports",
		Short:   "List serial ports",
		GroupID: gMaintenance,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := board.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				cmd.Println("No serial ports found")
				return nil
			}
			for _, p := range ports {
				cmd.Printf("  %s\n", bold("%s", p.Description))
			}
			return nil
		},
	}
}
