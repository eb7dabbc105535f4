package main

import (
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/replx/internal/mockeval"
	"pkt.systems/replx/internal/portfile"
)

func newMockServerCmd() *cobra.Command {
	var addr string
	var portFilePath string
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a mock evaluator for tests and demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)

			srv, err := mockeval.Listen(addr, logger)
			if err != nil {
				return err
			}
			if portFilePath != "" {
				if err := portfile.Write(portFilePath, srv.Port()); err != nil {
					_ = srv.Close()
					return err
				}
				defer func() { _ = os.Remove(portFilePath) }()
			}
			logger.Info("mock evaluator listening", "addr", addr, "port", srv.Port(), "port_file", portFilePath)

			go func() {
				<-ctx.Done()
				_ = srv.Close()
			}()
			return srv.Serve()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:0", "listen address")
	cmd.Flags().StringVar(&portFilePath, "port-file", portfile.DefaultName, "port file to write (empty to skip)")
	return cmd
}
