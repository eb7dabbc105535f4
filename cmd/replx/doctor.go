package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/pslog"
	"pkt.systems/replx/core"
	"pkt.systems/replx/internal/appconfig"
	"pkt.systems/replx/schema"
)

func newDoctorCmd() *cobra.Command {
	var f connFlags
	var showConfig bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run connectivity and configuration diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)

			configPath := f.cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)

			cfg, err := appconfig.Load(f.cfgPath)
			if err != nil {
				return err
			}
			logger.Info("doctor config ok", "version", cfg.ConfigVersion)

			if showConfig {
				rendered, err := yaml.Marshal(cfg)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), string(rendered))
			}

			if cfg.SSH.Addr != "" {
				checkFile(logger, "ssh host key", cfg.SSH.HostKeyPath)
				checkFile(logger, "ssh authorized keys", cfg.SSH.AuthorizedKeys)
			}

			host, port, err := resolveTarget(cfg, &f)
			if err != nil {
				logger.Warn("doctor no evaluator target", "err", err)
				return err
			}
			logger.Info("doctor target resolved", "host", host, "port", port)

			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.ListNamespaces(ctx, schema.ListNamespacesRequest{Conn: conn})
				if err != nil {
					return fmt.Errorf("namespace probe failed: %w", err)
				}
				logger.Info("doctor peer ok", "namespaces", len(resp.Namespaces), "current", resp.Current)
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&showConfig, "show-config", false, "print the effective configuration")
	return cmd
}

func checkFile(logger pslog.Logger, label, path string) {
	if strings.TrimSpace(path) == "" {
		logger.Warn("path empty", "name", label)
		return
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("path missing", "name", label, "path", path, "err", err)
		return
	}
	logger.Info("path ok", "name", label, "path", path)
}
