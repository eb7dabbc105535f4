package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/replx/core"
	"pkt.systems/replx/internal/appconfig"
	"pkt.systems/replx/internal/portfile"
	"pkt.systems/replx/schema"
)

// connFlags are the flags every peer-reaching command shares.
type connFlags struct {
	cfgPath  string
	host     string
	port     int
	portFile string
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&f.host, "host", "", "evaluator host (default from config)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "evaluator port (default from config or port file)")
	cmd.Flags().StringVar(&f.portFile, "port-file", "", "port file name to search for")
}

// resolveTarget turns flags, config, and the port-file search into a
// concrete host:port. Precedence: flag, config, port file walk from the
// working directory.
func resolveTarget(cfg appconfig.Config, f *connFlags) (string, int, error) {
	host := f.host
	if host == "" {
		host = cfg.Connect.Host
	}
	if f.port > 0 {
		return host, f.port, nil
	}
	if cfg.Connect.Port > 0 {
		return host, cfg.Connect.Port, nil
	}
	name := f.portFile
	if name == "" {
		name = cfg.Connect.PortFile
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", 0, err
	}
	port, err := portfile.Find(cwd, name)
	if err != nil {
		if errors.Is(err, schema.ErrNoPortFile) {
			return "", 0, fmt.Errorf("no port given and no %s found: %w", name, err)
		}
		return "", 0, err
	}
	return host, port, nil
}

// withConn runs fn against a fresh single-connection engine and tears
// it down afterward. One-shot commands use this.
func withConn(cmd *cobra.Command, f *connFlags, fn func(ctx context.Context, svc core.Service, conn schema.ConnID) error) error {
	ctx := cmd.Context()
	logger := pslog.Ctx(ctx)

	cfg, err := appconfig.Load(f.cfgPath)
	if err != nil {
		return err
	}
	host, port, err := resolveTarget(cfg, f)
	if err != nil {
		return err
	}

	engine, err := core.NewEngine(cfg.EngineConfig(), core.EngineDeps{Logger: logger})
	if err != nil {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer engine.Shutdown(shutdownCtx)

	resp, err := engine.Connect(ctx, schema.ConnectRequest{Host: host, Port: port})
	if err != nil {
		return err
	}
	return fn(ctx, engine, resp.Conn.ID)
}
