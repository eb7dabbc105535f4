package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/pslog"
	"pkt.systems/replx"
	"pkt.systems/replx/internal/appconfig"
	"pkt.systems/replx/internal/console"
	"pkt.systems/replx/internal/launcher"
	"pkt.systems/replx/schema"
	"pkt.systems/replx/sshserver"
)

func newConnectCmd() *cobra.Command {
	var f connFlags
	var startServer bool
	var serveSSH bool
	var noAltScreen bool
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open an interactive console to an evaluator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			logger := pslog.Ctx(ctx)

			cfg, err := appconfig.Load(f.cfgPath)
			if err != nil {
				return err
			}

			if startServer {
				proc, err := launcher.Start(ctx, launcher.Options{
					Command:     cfg.Launch.Command,
					Args:        cfg.Launch.Args,
					Env:         cfg.Launch.Env,
					Dir:         cfg.Launch.Dir,
					PortFile:    cfg.Connect.PortFile,
					StartupWait: cfg.Launch.StartupWait(),
				}, logger)
				if err != nil {
					return err
				}
				defer func() { _ = proc.Stop() }()
				f.port = proc.Port
			}

			host, port, err := resolveTarget(cfg, &f)
			if err != nil {
				return err
			}

			var opts []replx.ClientOption
			if serveSSH {
				opts = append(opts, replx.WithSSH())
			}
			client, err := replx.NewClient(replx.ClientConfig{
				Engine: cfg.EngineConfig(),
				SSH: sshserver.Config{
					Addr:               cfg.SSH.Addr,
					HostKeyPath:        cfg.SSH.HostKeyPath,
					AuthorizedKeysPath: cfg.SSH.AuthorizedKeys,
				},
			}, replx.ClientDeps{Logger: logger}, opts...)
			if err != nil {
				return err
			}
			if err := client.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Stop(stopCtx)
			}()

			resp, err := client.Service().Connect(ctx, schema.ConnectRequest{Host: host, Port: port})
			if err != nil {
				return err
			}

			ui := console.New(client.Service(), client.Bus(), resp.Conn.ID, os.Stdin, os.Stdout, logger)
			ui.UseAltScreen(!noAltScreen)

			fd := int(os.Stdin.Fd())
			if term.IsTerminal(fd) {
				state, err := term.MakeRaw(fd)
				if err != nil {
					return err
				}
				defer func() { _ = term.Restore(fd, state) }()
				if w, h, err := term.GetSize(fd); err == nil {
					ui.SetSize(w, h)
				}
				winch := make(chan os.Signal, 1)
				signal.Notify(winch, syscall.SIGWINCH)
				defer signal.Stop(winch)
				go func() {
					for range winch {
						if w, h, err := term.GetSize(fd); err == nil {
							ui.SetSize(w, h)
						}
					}
				}()
			}

			runErr := ui.Run(ctx)
			disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancelDisconnect()
			_, _ = client.Service().Disconnect(disconnectCtx, schema.DisconnectRequest{Conn: resp.Conn.ID})
			return runErr
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&startServer, "start-server", false, "launch the configured evaluator and connect to it")
	cmd.Flags().BoolVar(&serveSSH, "ssh", false, "also serve the console over SSH")
	cmd.Flags().BoolVar(&noAltScreen, "no-alt-screen", false, "draw in the main screen buffer")
	return cmd
}
