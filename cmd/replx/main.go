package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("replx command failed")
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "replx",
		Short:         "Interactive evaluation client",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newConnectCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newLoadFileCmd())
	root.AddCommand(newNSCmd())
	root.AddCommand(newNSListCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newMacroexpandCmd())
	root.AddCommand(newTranspileCmd())
	root.AddCommand(newFindDefCmd())
	root.AddCommand(newCompleteCmd())
	root.AddCommand(newProtocolsCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newMockServerCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newInitConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}
