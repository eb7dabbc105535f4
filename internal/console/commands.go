package console

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pkt.systems/replx/schema"
)

// runCommand executes a slash command typed at the prompt. It returns
// true when the console should exit.
func (c *Console) runCommand(ctx context.Context, line string) bool {
	name, rest := splitCommand(line)
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		c.status = helpLines()
	case "/ns":
		if rest == "" {
			c.status = []string{"usage: /ns <namespace>"}
			break
		}
		resp, err := c.svc.SetNamespace(ctx, schema.SetNamespaceRequest{Conn: c.conn, NS: schema.Namespace(rest)})
		if err != nil {
			c.do(err)
			break
		}
		c.status = []string{"namespace: " + string(resp.NS)}
	case "/nss":
		resp, err := c.svc.ListNamespaces(ctx, schema.ListNamespacesRequest{Conn: c.conn})
		if err != nil {
			c.do(err)
			break
		}
		c.status = []string{fmt.Sprintf("namespaces: %s (current %s)", strings.Join(resp.Namespaces, " "), resp.Current)}
	case "/conns":
		resp, err := c.svc.ListConns(ctx, schema.ListConnsRequest{})
		if err != nil {
			c.do(err)
			break
		}
		c.status = nil
		for _, conn := range resp.Conns {
			marker := " "
			if conn.Active {
				marker = "*"
			}
			c.status = append(c.status, fmt.Sprintf("%s %s %s:%d ns=%s pending=%d",
				marker, conn.ID, conn.Host, conn.Port, conn.Namespace, conn.Pending))
		}
		if len(c.status) == 0 {
			c.status = []string{"no connections"}
		}
	case "/load":
		if rest == "" {
			c.status = []string{"usage: /load <path>"}
			break
		}
		resp, err := c.svc.LoadFile(ctx, schema.LoadFileRequest{Conn: c.conn, Path: rest})
		switch {
		case err != nil:
			c.do(err)
		case resp.Err != "":
			c.status = []string{"load error: " + resp.Err}
		default:
			c.status = []string{fmt.Sprintf("loaded %s => %s", rest, resp.Value)}
		}
	case "/info":
		if rest == "" {
			c.status = []string{"usage: /info <symbol>"}
			break
		}
		resp, err := c.svc.SymbolInfo(ctx, schema.SymbolInfoRequest{Conn: c.conn, Symbol: rest})
		if err != nil {
			c.do(err)
			break
		}
		c.status = infoLines(resp.Info)
	case "/def":
		if rest == "" {
			c.status = []string{"usage: /def <symbol>"}
			break
		}
		resp, err := c.svc.FindDef(ctx, schema.FindDefRequest{Conn: c.conn, Symbol: rest})
		if err != nil {
			c.do(err)
			break
		}
		loc := resp.Location
		c.status = []string{fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Col)}
	case "/macro":
		if rest == "" {
			c.status = []string{"usage: /macro <form>"}
			break
		}
		resp, err := c.svc.Macroexpand(ctx, schema.MacroexpandRequest{Conn: c.conn, Code: rest})
		if err != nil {
			c.do(err)
			break
		}
		c.status = []string{"expansion: " + resp.Expansion}
	case "/transpile":
		if rest == "" {
			c.status = []string{"usage: /transpile <form>"}
			break
		}
		resp, err := c.svc.Transpile(ctx, schema.TranspileRequest{Conn: c.conn, Code: rest})
		if err != nil {
			c.do(err)
			break
		}
		header := "source:"
		if resp.Target != "" {
			header = resp.Target + " source:"
		}
		c.status = append([]string{header}, strings.Split(resp.Source, "\n")...)
	case "/protocols":
		resp, err := c.svc.Protocols(ctx, schema.ProtocolsRequest{Conn: c.conn})
		if err != nil {
			c.do(err)
			break
		}
		c.status = protocolLines(resp.Protocols)
	case "/inspect":
		if rest == "" {
			c.status = []string{"usage: /inspect <form>"}
			break
		}
		resp, err := c.svc.InspectStart(ctx, schema.InspectStartRequest{Conn: c.conn, Code: rest})
		if err != nil {
			c.do(err)
			break
		}
		c.inspector = resp.Inspector
		c.status = nil
	case "/nav":
		if rest == "" {
			c.status = []string{"usage: /nav <index-or-key>"}
			break
		}
		resp, err := c.svc.InspectNav(ctx, schema.InspectNavRequest{Conn: c.conn, Segment: rest})
		if err != nil {
			c.do(err)
			break
		}
		c.inspector = resp.Inspector
	case "/back":
		resp, err := c.svc.InspectBack(ctx, schema.InspectBackRequest{Conn: c.conn})
		if err != nil {
			c.do(err)
			break
		}
		c.inspector = resp.Inspector
	case "/iq":
		resp, err := c.svc.InspectQuit(ctx, schema.InspectQuitRequest{Conn: c.conn})
		if err != nil {
			c.do(err)
			break
		}
		c.inspector = resp.Inspector
		c.status = nil
	case "/use":
		if rest == "" {
			c.status = []string{"usage: /use <conn-id>"}
			break
		}
		resp, err := c.svc.ActivateConn(ctx, schema.ActivateConnRequest{Conn: schema.ConnID(rest)})
		if err != nil {
			c.do(err)
			break
		}
		c.conn = resp.Conn.ID
		c.inspector = schema.InspectorSnapshot{}
		c.status = []string{"active: " + string(resp.Conn.ID)}
	default:
		c.status = []string{"unknown command " + name + " (/help lists commands)"}
	}
	return false
}

func splitCommand(line string) (string, string) {
	fields := strings.SplitN(line, " ", 2)
	name := fields[0]
	rest := ""
	if len(fields) == 2 {
		rest = strings.TrimSpace(fields[1])
	}
	return name, rest
}

func helpLines() []string {
	return []string{
		"/ns <ns>  /nss  /load <path>  /info <sym>  /def <sym>",
		"/macro <form>  /transpile <form>  /protocols",
		"/inspect <form>  /nav <seg>  /back  /iq",
		"/conns  /use <conn-id>  /quit",
	}
}

func infoLines(info schema.SymbolInfo) []string {
	lines := []string{fmt.Sprintf("%s/%s  %s", info.NS, info.Name, info.Type)}
	if len(info.Arglists) > 0 {
		lines = append(lines, "arglists: "+strings.Join(info.Arglists, " "))
	}
	if info.Doc != "" {
		lines = append(lines, info.Doc)
	}
	if info.Protocol != "" {
		lines = append(lines, "protocol: "+info.Protocol)
	}
	if info.Source.File != "" {
		lines = append(lines, fmt.Sprintf("defined at %s:%d", info.Source.File, info.Source.Line))
	}
	return lines
}

func protocolLines(protocols map[string]schema.ProtocolInfo) []string {
	if len(protocols) == 0 {
		return []string{"no protocols"}
	}
	names := make([]string, 0, len(protocols))
	for name := range protocols {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		info := protocols[name]
		tag := ""
		if info.Structural {
			tag = " (structural)"
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s", name, tag, strings.Join(info.Methods, " ")))
	}
	return lines
}
