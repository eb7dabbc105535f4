package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/replx/core"
	"pkt.systems/replx/schema"
)

func newEvalCmd() *cobra.Command {
	var f connFlags
	var ns string
	cmd := &cobra.Command{
		Use:   "eval <form>",
		Short: "Evaluate one form and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.Eval(ctx, schema.EvalRequest{Conn: conn, Code: args[0], NS: schema.Namespace(ns)})
				if err != nil {
					return err
				}
				if resp.Incomplete {
					return fmt.Errorf("incomplete form: %s", resp.Err)
				}
				if resp.Err != "" {
					return fmt.Errorf("evaluation failed: %s", resp.Err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Value)
				return err
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&ns, "ns", "", "namespace to evaluate in")
	return cmd
}

func newLoadFileCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "load-file <path>",
		Short: "Evaluate a whole file on the peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.LoadFile(ctx, schema.LoadFileRequest{Conn: conn, Path: args[0]})
				if err != nil {
					return err
				}
				if resp.Err != "" {
					return fmt.Errorf("load failed: %s", resp.Err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Value)
				return err
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newNSCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "ns <namespace>",
		Short: "Verify the peer accepts a namespace switch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.SetNamespace(ctx, schema.SetNamespaceRequest{Conn: conn, NS: schema.Namespace(args[0])})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.NS)
				return err
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newNSListCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "ns-list",
		Short: "List namespaces known to the peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.ListNamespaces(ctx, schema.ListNamespacesRequest{Conn: conn})
				if err != nil {
					return err
				}
				for _, ns := range resp.Namespaces {
					marker := " "
					if schema.Namespace(ns) == resp.Current {
						marker = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, ns)
				}
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newInfoCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "info <symbol>",
		Short: "Print symbol metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.SymbolInfo(ctx, schema.SymbolInfoRequest{Conn: conn, Symbol: args[0]})
				if err != nil {
					return err
				}
				info := resp.Info
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s/%s  %s\n", info.NS, info.Name, info.Type)
				if len(info.Arglists) > 0 {
					fmt.Fprintf(out, "arglists: %s\n", strings.Join(info.Arglists, " "))
				}
				if info.Doc != "" {
					fmt.Fprintln(out, info.Doc)
				}
				if info.Source.File != "" {
					fmt.Fprintf(out, "defined at %s:%d\n", info.Source.File, info.Source.Line)
				}
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newMacroexpandCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "macroexpand <form>",
		Short: "Print the macroexpansion of a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.Macroexpand(ctx, schema.MacroexpandRequest{Conn: conn, Code: args[0]})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Expansion)
				return err
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newTranspileCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "transpile <form>",
		Short: "Print the generated target-language source for a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.Transpile(ctx, schema.TranspileRequest{Conn: conn, Code: args[0]})
				if err != nil {
					return err
				}
				if resp.Target != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "; target: %s\n", resp.Target)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Source)
				return err
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newFindDefCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "find-def <symbol>",
		Short: "Print where a symbol is defined",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.FindDef(ctx, schema.FindDefRequest{Conn: conn, Symbol: args[0]})
				if err != nil {
					return err
				}
				loc := resp.Location
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s:%d:%d\n", loc.File, loc.Line, loc.Col)
				return err
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newCompleteCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "complete <prefix>",
		Short: "Print completion candidates for a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.Complete(ctx, schema.CompleteRequest{Conn: conn, Prefix: args[0]})
				if err != nil {
					return err
				}
				for _, candidate := range resp.Completions {
					fmt.Fprintln(cmd.OutOrStdout(), candidate)
				}
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newProtocolsCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "protocols",
		Short: "List protocols known to the peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.Protocols(ctx, schema.ProtocolsRequest{Conn: conn})
				if err != nil {
					return err
				}
				names := make([]string, 0, len(resp.Protocols))
				for name := range resp.Protocols {
					names = append(names, name)
				}
				sort.Strings(names)
				out := cmd.OutOrStdout()
				for _, name := range names {
					info := resp.Protocols[name]
					tag := ""
					if info.Structural {
						tag = " (structural)"
					}
					fmt.Fprintf(out, "%s%s: %s\n", name, tag, strings.Join(info.Methods, " "))
				}
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newInspectCmd() *cobra.Command {
	var f connFlags
	cmd := &cobra.Command{
		Use:   "inspect <form>",
		Short: "Evaluate a form and print its inspection summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(cmd, &f, func(ctx context.Context, svc core.Service, conn schema.ConnID) error {
				resp, err := svc.InspectStart(ctx, schema.InspectStartRequest{Conn: conn, Code: args[0]})
				if err != nil {
					return err
				}
				for _, line := range resp.Inspector.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				_, err = svc.InspectQuit(ctx, schema.InspectQuitRequest{Conn: conn})
				return err
			})
		},
	}
	f.register(cmd)
	return cmd
}
